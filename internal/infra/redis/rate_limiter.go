package redis

import (
	"context"
	"fmt"
	"time"
)

// Counter is the subset of RedisClient a fixed-window limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

type RateLimiter struct {
	client Counter
}

func NewRateLimiter(client Counter) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit on key and reports whether it is within limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func UploadKey(clientIP string) string {
	return fmt.Sprintf("rate_limit:upload:%s", clientIP)
}
