package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotConfigured is returned by Send when provider credentials are missing.
var ErrNotConfigured = errors.New("sms: provider credentials are not configured")

// Message is an SMS payload.
type Message struct {
	// To is the recipient in international digits without a leading plus.
	To string
	// Text is the message body.
	Text string
}

// Result is what the provider answered for an accepted message.
type Result struct {
	StatusCode int
	Body       string
}

// DeliveryError reports a message the provider did not accept.
type DeliveryError struct {
	StatusCode int
	// Body is the raw provider response.
	Body string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sms: delivery rejected with status %d: %s", e.StatusCode, e.Body)
}

// SMS abstracts an SMS gateway.
type SMS interface {
	io.Closer
	// Configured reports whether credentials are present right now.
	Configured() bool
	// Send delivers msg. A provider rejection is reported as *DeliveryError.
	Send(ctx context.Context, msg Message) (*Result, error)
}
