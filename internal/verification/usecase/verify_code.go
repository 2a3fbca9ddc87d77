package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/keylock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type VerifyCodeInput struct {
	UserID string `validate:"required"`
	Code   string `validate:"required,otpcode"`
}

type VerifyCodeOutput struct {
	PhoneNumber string
}

func (s *Usecase) VerifyCode(ctx context.Context, in VerifyCodeInput) (*VerifyCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	var out *VerifyCodeOutput
	err := keylock.WithLock(ctx, s.locker, in.UserID, func(ctx context.Context) error {
		phone, err := s.verifyLocked(ctx, in)
		if err != nil {
			return err
		}

		out = &VerifyCodeOutput{PhoneNumber: phone}
		return nil
	})
	if err != nil {
		return nil, s.lockOrServerError(ctx, "failed to verify code", in.UserID, err)
	}

	s.count(ctx, s.verifiedCounter)

	verifiedAt := s.clock.Now()
	s.publish(ctx, "phone.verified", func(ctx context.Context) error {
		return s.repoMessaging.PublishPhoneVerified(ctx, PhoneVerifiedEvent{
			UserID:      in.UserID,
			PhoneNumber: out.PhoneNumber,
			VerifiedAt:  verifiedAt,
		})
	})

	return out, nil
}

// verifyLocked runs the record state machine; the caller holds the user lock.
func (s *Usecase) verifyLocked(ctx context.Context, in VerifyCodeInput) (string, error) {
	rec, err := s.repoStore.Get(ctx, in.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		s.countFailure(ctx, "not_found")
		return "", goerror.NewBusiness("No verification code found. Please request a new code.", goerror.CodeBadRequest)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get verification code", "user_id", in.UserID, "error", err)
		return "", goerror.NewServer(err)
	}

	if rec.Expired(s.clock.Now()) {
		if err := s.repoStore.Delete(ctx, in.UserID); err != nil {
			slog.ErrorContext(ctx, "failed to delete expired verification code", "user_id", in.UserID, "error", err)
			return "", goerror.NewServer(err)
		}
		s.countFailure(ctx, "expired")
		return "", goerror.NewBusiness("Verification code has expired. Please request a new code.", goerror.CodeBadRequest)
	}

	maxAttempts := s.maxAttempts()
	if rec.Attempts >= maxAttempts {
		if err := s.repoStore.Delete(ctx, in.UserID); err != nil {
			slog.ErrorContext(ctx, "failed to delete exhausted verification code", "user_id", in.UserID, "error", err)
			return "", goerror.NewServer(err)
		}
		s.countFailure(ctx, "exhausted")
		return "", goerror.NewBusiness("Too many failed attempts. Please request a new code.", goerror.CodeBadRequest)
	}

	if rec.Code == in.Code {
		if err := s.repoStore.Delete(ctx, in.UserID); err != nil {
			slog.ErrorContext(ctx, "failed to consume verification code", "user_id", in.UserID, "error", err)
			return "", goerror.NewServer(err)
		}
		return rec.PhoneNumber, nil
	}

	rec.Attempts++
	remaining := rec.RemainingAttempts(maxAttempts)

	if remaining == 0 {
		err = s.repoStore.Delete(ctx, in.UserID)
	} else {
		err = s.repoStore.Set(ctx, in.UserID, *rec)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to record failed attempt", "user_id", in.UserID, "error", err)
		return "", goerror.NewServer(err)
	}

	slog.WarnContext(ctx, "verification code mismatch", "user_id", in.UserID, "remaining_attempts", remaining)
	s.countFailure(ctx, "mismatch")

	return "", goerror.NewBusiness(
		fmt.Sprintf("Incorrect code. %d %s remaining.", remaining, pluralize(remaining, "attempt")),
		goerror.CodeBadRequest,
		"remaining_attempts", remaining,
	)
}

func (s *Usecase) countFailure(ctx context.Context, reason string) {
	s.count(ctx, s.failedCounter, metric.WithAttributes(attribute.String("reason", reason)))
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
