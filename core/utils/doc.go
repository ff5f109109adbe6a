// Package utils provides common utility functions for the profile store.
// It includes loose type conversion helpers used when decoding records that
// arrive from schemaless stores, where numbers, flags and timestamps may come
// back in several shapes.
package utils
