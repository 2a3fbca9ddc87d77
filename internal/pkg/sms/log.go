package sms

import (
	"context"
	"log/slog"
	"net/http"
)

// Log is a dry-run gateway that only logs messages. It is meant for local
// development where no provider account exists.
type Log struct{}

// NewLog constructs a dry-run gateway.
func NewLog() *Log {
	return &Log{}
}

func (*Log) Configured() bool { return true }

func (*Log) Send(ctx context.Context, msg Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "sms dry-run", "to", msg.To, "text", msg.Text)

	return &Result{StatusCode: http.StatusOK, Body: "OK"}, nil
}

func (*Log) Close() error { return nil }
