package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
)

const (
	defaultRedisPrefix = "smsotp:verification:"

	fieldCode        = "code"
	fieldPhoneNumber = "phone_number"
	fieldExpiresAt   = "expires_at"
	fieldAttempts    = "attempts"

	// Keys outlive their logical expiry so a late verify still reports
	// "expired" instead of "not found".
	expiredRetention = time.Hour
)

// sweepScript deletes records listed in the expiry index whose stored
// expiry is still before the cutoff. Expiries are compared as decimal
// strings because Lua numbers cannot hold unix nanoseconds exactly.
//
// KEYS[1] expiry index, ARGV[1] cutoff unix ns, ARGV[2] highest index score
// to scan, ARGV[3] record key prefix.
var sweepScript = redis.NewScript(`
local function before(a, b)
	if #a ~= #b then
		return #a < #b
	end
	return a < b
end

local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local n = 0
for _, id in ipairs(ids) do
	local key = ARGV[3] .. id
	local exp = redis.call("HGET", key, "expires_at")
	if not exp then
		redis.call("ZREM", KEYS[1], id)
	elseif before(exp, ARGV[1]) then
		redis.call("DEL", key)
		redis.call("ZREM", KEYS[1], id)
		n = n + 1
	end
end
return n
`)

// Redis stores one hash per user plus a sorted set indexing expiry times.
type Redis struct {
	spanner

	client   redis.UniversalClient
	prefix   string
	indexKey string
}

func NewRedis(client redis.UniversalClient, ins instrument.Instrumentation) *Redis {
	return &Redis{
		spanner:  spanner{ins: ins, driver: DriverRedis},
		client:   client,
		prefix:   defaultRedisPrefix,
		indexKey: defaultRedisPrefix + "expiry",
	}
}

func (r *Redis) key(userID string) string {
	return r.prefix + "user:" + userID
}

func (r *Redis) Get(ctx context.Context, userID string) (_ *entity.Record, err error) {
	ctx, span := r.startSpan(ctx, "Get")
	defer func() { r.endSpan(span, err) }()

	values, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, goerror.ErrNotFound
	}

	expNs, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("store: corrupt expires_at for %s: %w", userID, err)
	}
	attempts, err := strconv.Atoi(values[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("store: corrupt attempts for %s: %w", userID, err)
	}

	return &entity.Record{
		Code:        values[fieldCode],
		PhoneNumber: values[fieldPhoneNumber],
		ExpiresAt:   time.Unix(0, expNs),
		Attempts:    attempts,
	}, nil
}

func (r *Redis) Set(ctx context.Context, userID string, rec entity.Record) (err error) {
	ctx, span := r.startSpan(ctx, "Set")
	defer func() { r.endSpan(span, err) }()

	key := r.key(userID)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCode, rec.Code,
			fieldPhoneNumber, rec.PhoneNumber,
			fieldExpiresAt, rec.ExpiresAt.UnixNano(),
			fieldAttempts, rec.Attempts,
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt.Add(expiredRetention))
		pipe.ZAdd(ctx, r.indexKey, redis.Z{Score: float64(ceilMilli(rec.ExpiresAt)), Member: userID})
		return nil
	})

	return err
}

func (r *Redis) Delete(ctx context.Context, userID string) (err error) {
	ctx, span := r.startSpan(ctx, "Delete")
	defer func() { r.endSpan(span, err) }()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(userID))
		pipe.ZRem(ctx, r.indexKey, userID)
		return nil
	})

	return err
}

func (r *Redis) SweepExpired(ctx context.Context, now time.Time) (_ int, err error) {
	ctx, span := r.startSpan(ctx, "SweepExpired")
	defer func() { r.endSpan(span, err) }()

	n, err := sweepScript.Run(ctx, r.client,
		[]string{r.indexKey},
		strconv.FormatInt(now.UnixNano(), 10),
		strconv.FormatInt(ceilMilli(now), 10),
		r.prefix+"user:",
	).Int()
	if err != nil {
		return 0, err
	}

	return n, nil
}

// ceilMilli rounds t up to whole unix milliseconds, keeping index scores
// exact in a float64.
func ceilMilli(t time.Time) int64 {
	ns := t.UnixNano()
	ms := ns / int64(time.Millisecond)
	if ns%int64(time.Millisecond) > 0 {
		ms++
	}
	return ms
}
