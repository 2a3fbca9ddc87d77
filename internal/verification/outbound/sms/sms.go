package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shandysiswandi/smsotp/internal/pkg/config"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	pkgsms "github.com/shandysiswandi/smsotp/internal/pkg/sms"
	"github.com/shandysiswandi/smsotp/internal/verification/usecase"
	"go.opentelemetry.io/otel/codes"
)

const defaultBrand = "gigsplan"

type SMS struct {
	client pkgsms.SMS
	cfg    config.Config
	ins    instrument.Instrumentation
}

func New(client pkgsms.SMS, cfg config.Config, ins instrument.Instrumentation) *SMS {
	return &SMS{client: client, cfg: cfg, ins: ins}
}

func (s *SMS) Configured() bool {
	return s.client.Configured()
}

func (s *SMS) SendVerificationCode(ctx context.Context, msg usecase.VerificationSMS) error {
	ctx, span := s.ins.Tracer("verification.outbound.sms").Start(ctx, "SendVerificationCode")
	defer span.End()

	if _, err := s.client.Send(ctx, pkgsms.Message{
		To:   msg.PhoneNumber,
		Text: s.text(msg.Code, msg.ValidFor),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (s *SMS) text(code string, validFor time.Duration) string {
	brand := strings.TrimSpace(s.cfg.GetString("modules.verification.brand"))
	if brand == "" {
		brand = defaultBrand
	}

	minutes := int((validFor + time.Minute - 1) / time.Minute)
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}

	return fmt.Sprintf("Your %s verification code is: %s. Valid for %d %s. Do not share this code.",
		brand, code, minutes, unit)
}
