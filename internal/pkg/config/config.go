// Package config reads service settings by dotted key, e.g. "sms.timeout_seconds".
package config

import (
	"io"
	"time"
)

// Config is the read side of the service configuration. Missing keys yield
// the zero value of the requested type.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetFloat64(key string) float64

	// GetSecond and GetMillisecond read an integer and scale it to a duration.
	GetSecond(key string) time.Duration
	GetMillisecond(key string) time.Duration

	// GetBinary base64-decodes the value.
	GetBinary(key string) []byte

	// GetArray accepts a YAML list or a comma separated string.
	GetArray(key string) []string
}
