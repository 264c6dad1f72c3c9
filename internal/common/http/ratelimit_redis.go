package http

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/trackfit/backend/internal/common/constants"
	"github.com/trackfit/backend/internal/common/logger"
)

// fixedWindowScript counts a hit and gives the key a TTL in one step. A key
// found without a TTL gets one again, so a counter can never outlive its window.
const fixedWindowLua = `
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var fixedWindowScript = redis.NewScript(fixedWindowLua)

// RedisRateLimiter is a fixed-window counter shared by every API replica.
// Redis failures let the request through.
type RedisRateLimiter struct {
	client  redis.Scripter
	log     *logger.Logger
	prefix  string
	limit   int64
	window  time.Duration
	timeout time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisRateLimiter(client redis.Scripter, log *logger.Logger, name string, limit int, window time.Duration) *RedisRateLimiter {
	if window <= 0 {
		window = constants.RateLimitRedisWindow
	}
	return &RedisRateLimiter{
		client:  client,
		log:     log,
		prefix:  "trackfit:ratelimit:" + name + ":",
		limit:   int64(limit),
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

func (rl *RedisRateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	counter, err := fixedWindowScript.Run(ctx, rl.client, []string{rl.prefix + key}, rl.window.Milliseconds()).Int64()
	if err != nil {
		rl.logRedisError("incr", err)
		return true
	}

	return counter <= rl.limit
}

func (rl *RedisRateLimiter) logRedisError(op string, err error) {
	if rl.log == nil {
		return
	}
	rl.log.WithFields(context.Background(), logger.Fields{
		"op":     op,
		"action": "redis_rate_limiter_error",
	}).Errorf("redis rate limiter error: %v", err)
}

func NewRedisStrictRateLimiter(client *redis.Client, log *logger.Logger, errs *ErrorHandler) *StrictRateLimiter {
	perWindow := func(rps float64) int {
		return int(rps * constants.RateLimitRedisWindow.Seconds())
	}
	return NewStrictRateLimiter(
		NewRedisRateLimiter(client, log, "login", perWindow(constants.RateLimitLoginRequestsPerSecond), constants.RateLimitRedisWindow),
		NewRedisRateLimiter(client, log, "register", perWindow(constants.RateLimitRegisterRequestsPerSecond), constants.RateLimitRedisWindow),
		NewRedisRateLimiter(client, log, "general", perWindow(constants.RateLimitGeneralRequestsPerSecond), constants.RateLimitRedisWindow),
		errs,
	)
}
