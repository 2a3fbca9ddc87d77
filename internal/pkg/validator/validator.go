// Package validator checks structs tagged with `validate`.
package validator

// Validator validates structs annotated with `validate` tags.
type Validator interface {
	Validate(data any) error
}
