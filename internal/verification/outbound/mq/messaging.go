package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/pkg/messaging"
	"github.com/shandysiswandi/smsotp/internal/shared/event"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
	"github.com/shandysiswandi/smsotp/internal/verification/usecase"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishVerificationIssued(ctx context.Context, msg usecase.VerificationIssuedEvent) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishVerificationIssued")
	defer span.End()

	return m.publish(ctx, span, event.VerificationIssuedDestination, msg.UserID, event.VerificationIssuedMessage{
		UserID:      msg.UserID,
		PhoneNumber: entity.MaskPhone(msg.PhoneNumber),
		ExpiresAt:   msg.ExpiresAt.Unix(),
	})
}

func (m *Messaging) PublishPhoneVerified(ctx context.Context, msg usecase.PhoneVerifiedEvent) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishPhoneVerified")
	defer span.End()

	return m.publish(ctx, span, event.PhoneVerifiedDestination, msg.UserID, event.PhoneVerifiedMessage{
		UserID:      msg.UserID,
		PhoneNumber: msg.PhoneNumber,
		VerifiedAt:  msg.VerifiedAt.Unix(),
	})
}

func (m *Messaging) publish(ctx context.Context, span trace.Span, dest, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, dest, messaging.Message{
		Key:     []byte(key),
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: instrument.GetCorrelationID(ctx)},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
