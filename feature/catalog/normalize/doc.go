// Package normalize converts service records between the flat and nested
// shapes and keeps the serialized detail blob consistent with the flat
// fields. It has no dependencies beyond the models.
package normalize
