package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles failed login attempts per email address.
type LoginLimiter interface {
	// Allow reports whether a login attempt for the email may proceed.
	Allow(ctx context.Context, email string) (bool, error)

	// RecordFailure registers a failed attempt for the email.
	RecordFailure(ctx context.Context, email string) error

	// Reset clears the failure counter after a successful login.
	Reset(ctx context.Context, email string) error
}

// RedisLoginLimiter counts failed logins per email in Redis with a fixed
// window. Redis errors fail open: an unreachable limiter never locks
// everyone out.
type RedisLoginLimiter struct {
	client      *redis.Client
	maxFailures int
	window      time.Duration
	logger      *slog.Logger
}

// NewRedisLoginLimiter creates a limiter allowing maxFailures failed attempts
// per email within the window.
func NewRedisLoginLimiter(client *redis.Client, maxFailures int, window time.Duration, logger *slog.Logger) *RedisLoginLimiter {
	return &RedisLoginLimiter{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
		logger:      logger,
	}
}

func (l *RedisLoginLimiter) key(email string) string {
	return "login_attempts:" + strings.ToLower(email)
}

// Allow reports whether a login attempt for the email may proceed.
func (l *RedisLoginLimiter) Allow(ctx context.Context, email string) (bool, error) {
	count, err := l.client.Get(ctx, l.key(email)).Int()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		l.logger.WarnContext(ctx, "login limiter unavailable, failing open",
			slog.String("error", err.Error()),
		)
		return true, nil
	}
	return count < l.maxFailures, nil
}

// RecordFailure registers a failed attempt. The window starts at the first
// failure and is not extended by subsequent ones.
func (l *RedisLoginLimiter) RecordFailure(ctx context.Context, email string) error {
	key := l.key(email)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("increment login failures: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("set login failure window: %w", err)
		}
	}

	return nil
}

// Reset clears the failure counter after a successful login.
func (l *RedisLoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.client.Del(ctx, l.key(email)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
