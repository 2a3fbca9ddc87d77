package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/keylock"
	"github.com/shandysiswandi/smsotp/internal/pkg/sms"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
)

type IssueCodeInput struct {
	UserID      string `validate:"required"`
	PhoneNumber string `validate:"required"`
}

type IssueCodeOutput struct {
	// ExpiresIn is the code lifetime in seconds.
	ExpiresIn int
}

func (s *Usecase) IssueCode(ctx context.Context, in IssueCodeInput) (*IssueCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "IssueCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	phone, err := entity.NormalizePhone(in.PhoneNumber)
	if err != nil {
		slog.WarnContext(ctx, "rejected phone number", "user_id", in.UserID)
		return nil, goerror.NewInvalidFormat("Invalid phone number format. Use 233XXXXXXXXX or 0XXXXXXXXX")
	}

	if !s.repoSMS.Configured() {
		slog.ErrorContext(ctx, "sms gateway credentials are missing")
		return nil, goerror.NewServerMessage(nil, "SMS service not configured")
	}

	code, err := s.otp.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate verification code", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	ttl := s.codeTTL()
	rec := entity.Record{
		Code:        code,
		PhoneNumber: phone,
		ExpiresAt:   now.Add(ttl),
		Attempts:    0,
	}

	err = keylock.WithLock(ctx, s.locker, in.UserID, func(ctx context.Context) error {
		return s.repoStore.Set(ctx, in.UserID, rec)
	})
	if err != nil {
		return nil, s.lockOrServerError(ctx, "failed to store verification code", in.UserID, err)
	}

	// The sweep runs outside any user lock. A verify racing it may write back a
	// record the sweep just removed; that record is already expired, so the
	// next verify reports it expired and deletes it.
	if n, err := s.repoStore.SweepExpired(ctx, now); err != nil {
		slog.ErrorContext(ctx, "failed to sweep expired verification codes", "error", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "swept expired verification codes", "count", n)
	}

	if err := s.repoSMS.SendVerificationCode(ctx, VerificationSMS{
		PhoneNumber: phone,
		Code:        code,
		ValidFor:    ttl,
	}); err != nil {
		var derr *sms.DeliveryError
		if errors.As(err, &derr) {
			slog.ErrorContext(ctx, "sms provider rejected verification code", "user_id", in.UserID, "response", derr.Body)
			return nil, goerror.NewServerMessage(err, "Failed to send SMS", "response", derr.Body)
		}

		slog.ErrorContext(ctx, "failed to send verification code", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServerMessage(err, "Failed to send SMS", "response", "SMS provider did not respond")
	}

	s.count(ctx, s.issuedCounter)

	s.publish(ctx, "verification.issued", func(ctx context.Context) error {
		return s.repoMessaging.PublishVerificationIssued(ctx, VerificationIssuedEvent{
			UserID:      in.UserID,
			PhoneNumber: phone,
			ExpiresAt:   rec.ExpiresAt,
		})
	})

	return &IssueCodeOutput{ExpiresIn: int(ttl.Seconds())}, nil
}

func (s *Usecase) lockOrServerError(ctx context.Context, msg, userID string, err error) error {
	if errors.Is(err, keylock.ErrLockTimeout) {
		slog.WarnContext(ctx, "verification lock is busy", "user_id", userID)
		return goerror.NewBusiness("Another request for this user is in progress. Please try again.", goerror.CodeTooManyRequest)
	}

	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		return err
	}

	slog.ErrorContext(ctx, msg, "user_id", userID, "error", err)
	return goerror.NewServer(err)
}
