package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/auth"
)

// RateLimiter provides per-user rate limiting backed by Redis.
type RateLimiter struct {
	redis             *redis.Client
	logger            *zap.Logger
	requestsPerMinute int
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(redisClient *redis.Client, requestsPerMinute int, logger *zap.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		redis:             redisClient,
		logger:            logger,
		requestsPerMinute: requestsPerMinute,
	}
}

// Middleware returns the HTTP middleware function. It uses a fixed
// one-minute window per user; a Redis failure fails open so the limiter
// never takes the API down with it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		principal, ok := auth.PrincipalFromContext(ctx)
		if !ok {
			// Auth middleware rejects unauthenticated requests; nothing to
			// key the limit on here.
			next.ServeHTTP(w, r)
			return
		}

		window := time.Now().Unix() / 60
		key := fmt.Sprintf("ratelimit:user:%s:%d", principal.UserID, window)

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warn("Rate limiter unavailable, failing open", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, 2*time.Minute)
		}

		remaining := int64(rl.requestsPerMinute) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.requestsPerMinute) {
			rl.logger.Debug("Rate limit exceeded",
				zap.String("user_id", principal.UserID),
				zap.Int64("count", count),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
