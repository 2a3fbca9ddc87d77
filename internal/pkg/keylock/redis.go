package keylock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/smsotp/internal/pkg/uid"
)

const (
	defaultLockTTL     = 10 * time.Second
	defaultWaitTimeout = 5 * time.Second
	defaultRetryBase   = 10 * time.Millisecond
	defaultRetryCap    = 200 * time.Millisecond
)

var errLockHeld = errors.New("keylock: lock held")

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX with a per-acquisition token.
type Redis struct {
	client      redis.UniversalClient
	uuid        uid.StringID
	prefix      string
	ttl         time.Duration
	waitTimeout time.Duration
}

// RedisOption customizes a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets how long a lock survives if its holder never releases it.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithWaitTimeout bounds how long Lock retries before giving up.
func WithWaitTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.waitTimeout = d
		}
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis constructs a distributed Locker.
func NewRedis(client redis.UniversalClient, uuid uid.StringID, opts ...RedisOption) *Redis {
	r := &Redis{
		client:      client,
		uuid:        uuid,
		prefix:      "keylock:",
		ttl:         defaultLockTTL,
		waitTimeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Lock retries SET NX with capped exponential backoff until it wins, the wait
// timeout elapses, or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	fk := r.prefix + key
	token := r.uuid.Generate()

	b := retry.NewExponential(defaultRetryBase)
	b = retry.WithCappedDuration(defaultRetryCap, b)
	b = retry.WithMaxDuration(r.waitTimeout, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		ok, err := r.client.SetNX(ctx, fk, token, r.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}

		return nil
	})
	if errors.Is(err, errLockHeld) {
		return nil, ErrLockTimeout
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// the request context may already be canceled; release must still run
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		if err := releaseScript.Run(relCtx, r.client, []string{fk}, token).Err(); err != nil {
			slog.WarnContext(ctx, "failed to release redis lock", "key", fk, "error", err)
		}
	}, nil
}
