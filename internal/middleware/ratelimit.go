package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/internal/pkg/response"
)

// RateLimitPrefix prefixes the Redis counter keys.
const RateLimitPrefix = "ratelimit:ingest"

// RateLimit ограничивает число запросов с одного IP за окно. С Redis
// счётчики общие для всех реплик; при недоступности Redis счёт временно
// ведётся локально и запросы не блокируются.
func RateLimit(limit int, window time.Duration, redisClient *redis.Client) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	}
	if redisClient != nil {
		opts = append(opts, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    redisClient,
			PrefixKey: RateLimitPrefix,
			OnError: func(err error) {
				logrus.WithError(err).Warn("rate limiter redis error")
			},
			OnFallbackChange: func(activated bool) {
				logrus.WithField("local", activated).Warn("rate limiter counter switched")
			},
		}))
	}
	return httprate.Limit(limit, window, opts...)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	response.RespondWithCode(w, http.StatusTooManyRequests, "too_many_requests", "Too many requests.", nil)
}
