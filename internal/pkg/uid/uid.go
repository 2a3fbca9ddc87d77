// Package uid generates identifiers for correlation ids and lock tokens.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
