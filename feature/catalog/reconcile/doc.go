// Package reconcile adapts service records to the generic reconcile engine.
package reconcile
