package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), ts}
`

// Limit is a refill rate in tokens per second and a burst capacity.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) validate() error {
	if l.Rate <= 0 || math.IsNaN(l.Rate) || math.IsInf(l.Rate, 0) || l.Burst <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

// ttl keeps an idle bucket around for twice its full refill time.
func (l Limit) ttl() time.Duration {
	seconds := math.Max(1, math.Ceil(float64(l.Burst)/l.Rate*2))
	return time.Duration(seconds) * time.Second
}

var (
	ErrInvalidLimit       = errors.New("invalid_rate_limit")
	ErrBucketUnconfigured = errors.New("rate_limiter_unconfigured")
	ErrEmptyBucketKey     = errors.New("empty_rate_limit_key")
)

// TokenBucket is a Redis-backed bucket refilled continuously. State lives
// in a hash so every replica shares it.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

// RateLimitResult describes one bucket decision. Limit is the burst capacity.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key. The result is never nil.
func (t *TokenBucket) Allow(ctx context.Context, key string, limit Limit) (*RateLimitResult, error) {
	denied := &RateLimitResult{Allowed: false, Limit: limit.Burst}
	switch {
	case t == nil || t.client == nil:
		return denied, ErrBucketUnconfigured
	case key == "":
		return denied, ErrEmptyBucketKey
	}
	if err := limit.validate(); err != nil {
		return denied, err
	}

	res, err := t.script.Run(ctx, t.client, []string{key},
		limit.Rate, limit.Burst, limit.ttl().Milliseconds(),
	).Slice()
	if err != nil {
		return denied, err
	}
	if len(res) < 3 {
		return denied, fmt.Errorf("token bucket %s: unexpected script reply of %d values", key, len(res))
	}

	allowed := toInt64(res[0]) == 1
	remaining := toFloat64(res[1])
	refilledAt := time.UnixMilli(toInt64(res[2]))

	var retryAfter time.Duration
	if !allowed && remaining < 1 {
		retryAfter = time.Duration((1 - remaining) / limit.Rate * float64(time.Second))
	}

	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      limit.Burst,
		Remaining:  int(remaining),
		ResetTime:  refilledAt.Add(retryAfter),
		RetryAfter: retryAfter,
	}, nil
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

// toFloat64 reads the token count, which the script returns as a string
// so the fractional part survives the Lua to RESP conversion.
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case int64:
		return float64(val)
	default:
		return 0
	}
}
