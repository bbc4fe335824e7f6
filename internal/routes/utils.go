package routes

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/config"
	"github.com/evn/fleet_tracker/internal/middleware"
)

const (
	rateWindow = time.Minute
	lockTTL    = 5 * time.Second
)

// rateLimit returns nil when INGEST_RATE_LIMIT is 0.
func rateLimit(cfg *config.Config, redisClient *redis.Client) func(http.Handler) http.Handler {
	if cfg.IngestRateLimit <= 0 {
		logrus.Warn("ingest rate limit disabled")
		return nil
	}
	return middleware.RateLimit(cfg.IngestRateLimit, rateWindow, redisClient)
}

func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}
