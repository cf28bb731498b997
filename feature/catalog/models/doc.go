// Package models defines the service catalog record types.
//
// ServiceRecord is the canonical, persisted shape. RawRecord is the input
// union accepted by the normalizer (FlatShape, NestedShape, MixedShape) and
// LegacyRecord is the consumer view with a nested details object.
package models
