package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("resource not found")

// Type is the broad class of an Error.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

var typeNames = map[Type]string{
	TypeServer:     "server",
	TypeBusiness:   "business",
	TypeValidation: "validation",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Code selects the HTTP status an Error is rendered with.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeBadRequest
	CodeTooManyRequest
	CodeMethodNotAllowed
)

var codeStatus = map[Code]int{
	CodeInternal:         http.StatusInternalServerError,
	CodeInvalidFormat:    http.StatusBadRequest,
	CodeInvalidInput:     http.StatusBadRequest,
	CodeBadRequest:       http.StatusBadRequest,
	CodeTooManyRequest:   http.StatusTooManyRequests,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
}

func (c Code) String() string {
	return http.StatusText(c.status())
}

func (c Code) status() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error carries a caller-facing message and details next to the internal
// cause, which is only ever logged.
type Error struct {
	cause   error
	msg     string
	kind    Type
	code    Code
	details map[string]any
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil:
		return e.cause.Error()
	case e.msg != "":
		return e.msg
	default:
		return e.kind.String() + " error"
	}
}

// String is the verbose form used in logs.
func (e *Error) String() string {
	return fmt.Sprintf("type=%s code=%s msg=%q cause=%v", e.kind, e.code, e.msg, e.cause)
}

func (e *Error) Msg() string             { return e.msg }
func (e *Error) Type() Type              { return e.kind }
func (e *Error) Code() Code              { return e.code }
func (e *Error) Details() map[string]any { return e.details }
func (e *Error) Unwrap() error           { return e.cause }

// StatusCode is the HTTP status for the error envelope.
func (e *Error) StatusCode() int {
	return e.code.status()
}

// details turns alternating key/value arguments into a map. Non-string keys
// and a trailing key without value are skipped.
func details(kv []any) map[string]any {
	if len(kv) < 2 {
		return nil
	}

	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			m[key] = kv[i+1]
		}
	}
	return m
}

// NewServer hides err behind a generic internal error message.
func NewServer(err error) error {
	return &Error{cause: err, msg: "Internal server error", kind: TypeServer, code: CodeInternal}
}

// NewServerMessage is NewServer with a caller-facing message and details.
func NewServerMessage(err error, msg string, kv ...any) error {
	return &Error{cause: err, msg: msg, kind: TypeServer, code: CodeInternal, details: details(kv)}
}

// NewBusiness reports a rule the request broke, e.g. an expired code.
func NewBusiness(msg string, code Code, kv ...any) error {
	return &Error{msg: msg, kind: TypeBusiness, code: code, details: details(kv)}
}

// NewInvalidInput wraps a validator error. Field messages are rendered by
// the router from the wrapped error.
func NewInvalidInput(err error) error {
	return &Error{cause: err, msg: "Validation error", kind: TypeValidation, code: CodeInvalidInput}
}

// NewInvalidFormat reports a body or field that cannot be parsed.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &Error{msg: msg, kind: TypeValidation, code: CodeInvalidFormat}
}
