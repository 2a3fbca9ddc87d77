package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/smsotp/internal/pkg/clock"
	"github.com/shandysiswandi/smsotp/internal/pkg/config"
	"github.com/shandysiswandi/smsotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/pkg/keylock"
	"github.com/shandysiswandi/smsotp/internal/pkg/messaging"
	"github.com/shandysiswandi/smsotp/internal/pkg/otp"
	"github.com/shandysiswandi/smsotp/internal/pkg/router"
	pkgsms "github.com/shandysiswandi/smsotp/internal/pkg/sms"
	"github.com/shandysiswandi/smsotp/internal/pkg/uid"
	"github.com/shandysiswandi/smsotp/internal/pkg/validator"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
	"github.com/shandysiswandi/smsotp/internal/verification/inbound"
	"github.com/shandysiswandi/smsotp/internal/verification/outbound/mq"
	"github.com/shandysiswandi/smsotp/internal/verification/outbound/sms"
	"github.com/shandysiswandi/smsotp/internal/verification/outbound/store"
	"github.com/shandysiswandi/smsotp/internal/verification/usecase"
)

var (
	ErrUnknownStoreDriver = errors.New("verification: unknown store driver")
	ErrUnknownLockDriver  = errors.New("verification: unknown lock driver")
	ErrRedisRequired      = errors.New("verification: redis connection required")
	ErrPostgresRequired   = errors.New("verification: postgres connection required")
)

type Dependency struct {
	// DBConn and CacheConn are only needed by the drivers that use them.
	DBConn    *pgxpool.Pool
	CacheConn redis.UniversalClient

	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	SMS        pkgsms.SMS                 `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	OTP        otp.Generator              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoStore, err := newStore(dep)
	if err != nil {
		return err
	}

	locker, err := newLocker(dep)
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoStore:     repoStore,
		RepoSMS:       sms.New(dep.SMS, dep.Config, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Locker:        locker,
		Validator:     dep.Validator,
		Config:        dep.Config,
		OTP:           dep.OTP,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

type recordStore interface {
	Get(ctx context.Context, userID string) (*entity.Record, error)
	Set(ctx context.Context, userID string, rec entity.Record) error
	Delete(ctx context.Context, userID string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

func newStore(dep Dependency) (recordStore, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.verification.store.driver")))

	switch driver {
	case "", store.DriverMemory:
		return store.NewMemory(dep.Instrument), nil
	case store.DriverRedis:
		if dep.CacheConn == nil {
			return nil, ErrRedisRequired
		}
		return store.NewRedis(dep.CacheConn, dep.Instrument), nil
	case store.DriverPostgres:
		if dep.DBConn == nil {
			return nil, ErrPostgresRequired
		}
		return store.NewPostgres(dep.DBConn, dep.Instrument), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, driver)
	}
}

func newLocker(dep Dependency) (keylock.Locker, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.verification.lock.driver")))
	wait := dep.Config.GetMillisecond("modules.verification.lock.wait_timeout_ms")

	switch driver {
	case "", "memory":
		return keylock.NewMemory(keylock.WithMemoryWaitTimeout(wait)), nil
	case "redis":
		if dep.CacheConn == nil {
			return nil, ErrRedisRequired
		}
		ttl := dep.Config.GetMillisecond("modules.verification.lock.ttl_ms")
		return keylock.NewRedis(dep.CacheConn, dep.UUID,
			keylock.WithWaitTimeout(wait),
			keylock.WithTTL(ttl),
			keylock.WithPrefix("smsotp:lock:verification:"),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLockDriver, driver)
	}
}
