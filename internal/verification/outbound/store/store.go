package store

import (
	"context"
	"errors"

	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DriverMemory keeps records in process memory.
	DriverMemory = "memory"
	// DriverRedis keeps records in redis hashes.
	DriverRedis = "redis"
	// DriverPostgres keeps records in the verification_codes table.
	DriverPostgres = "postgres"
)

type spanner struct {
	ins    instrument.Instrumentation
	driver string
}

func (s spanner) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("verification.outbound.store").Start(ctx, name,
		trace.WithAttributes(attribute.String("store.driver", s.driver)))
}

func (s spanner) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
