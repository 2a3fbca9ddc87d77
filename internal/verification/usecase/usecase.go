package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/smsotp/internal/pkg/clock"
	"github.com/shandysiswandi/smsotp/internal/pkg/config"
	"github.com/shandysiswandi/smsotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/pkg/keylock"
	"github.com/shandysiswandi/smsotp/internal/pkg/otp"
	"github.com/shandysiswandi/smsotp/internal/pkg/validator"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCodeTTL     = 300 * time.Second
	defaultMaxAttempts = 3
)

type VerificationIssuedEvent struct {
	UserID      string
	PhoneNumber string
	ExpiresAt   time.Time
}

type PhoneVerifiedEvent struct {
	UserID      string
	PhoneNumber string
	VerifiedAt  time.Time
}

type VerificationSMS struct {
	PhoneNumber string
	Code        string
	ValidFor    time.Duration
}

type repoMessaging interface {
	PublishVerificationIssued(ctx context.Context, msg VerificationIssuedEvent) error
	PublishPhoneVerified(ctx context.Context, msg PhoneVerifiedEvent) error
}

type repoStore interface {
	Get(ctx context.Context, userID string) (*entity.Record, error)
	Set(ctx context.Context, userID string, rec entity.Record) error
	Delete(ctx context.Context, userID string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type repoSMS interface {
	Configured() bool
	SendVerificationCode(ctx context.Context, msg VerificationSMS) error
}

type Usecase struct {
	repoStore     repoStore
	repoSMS       repoSMS
	repoMessaging repoMessaging
	locker        keylock.Locker
	validator     validator.Validator
	cfg           config.Config
	otp           otp.Generator
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	issuedCounter   metric.Int64Counter
	verifiedCounter metric.Int64Counter
	failedCounter   metric.Int64Counter
}

type Dependency struct {
	RepoStore     repoStore
	RepoSMS       repoSMS
	RepoMessaging repoMessaging
	Locker        keylock.Locker
	Validator     validator.Validator
	Config        config.Config
	OTP           otp.Generator
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	uc := &Usecase{
		repoStore:     dep.RepoStore,
		repoSMS:       dep.RepoSMS,
		repoMessaging: dep.RepoMessaging,
		locker:        dep.Locker,
		validator:     dep.Validator,
		cfg:           dep.Config,
		otp:           dep.OTP,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}

	meter := dep.Instrument.Meter("verification.usecase")

	var err error
	if uc.issuedCounter, err = meter.Int64Counter("verification.codes.issued",
		metric.WithDescription("Number of verification codes delivered")); err != nil {
		slog.Error("failed to create issued counter", "error", err)
	}
	if uc.verifiedCounter, err = meter.Int64Counter("verification.codes.verified",
		metric.WithDescription("Number of successful verifications")); err != nil {
		slog.Error("failed to create verified counter", "error", err)
	}
	if uc.failedCounter, err = meter.Int64Counter("verification.codes.failed",
		metric.WithDescription("Number of rejected verification attempts")); err != nil {
		slog.Error("failed to create failed counter", "error", err)
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("verification.usecase").Start(ctx, name)
}

func (s *Usecase) codeTTL() time.Duration {
	if ttl := s.cfg.GetSecond("modules.verification.code_ttl_seconds"); ttl > 0 {
		return ttl
	}
	return defaultCodeTTL
}

func (s *Usecase) maxAttempts() int {
	if n := s.cfg.GetInt("modules.verification.max_attempts"); n > 0 {
		return n
	}
	return defaultMaxAttempts
}

func (s *Usecase) count(ctx context.Context, c metric.Int64Counter, opts ...metric.AddOption) {
	if c != nil {
		c.Add(ctx, 1, opts...)
	}
}

// publish runs fn after the response is decided. The request context may be
// canceled by then, so only its values are kept.
func (s *Usecase) publish(ctx context.Context, name string, fn func(ctx context.Context) error) {
	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to publish event", "event", name, "error", err)
		}
		return nil
	})
}
