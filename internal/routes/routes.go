package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/redis/go-redis/v9"

	"github.com/evn/fleet_tracker/config"
	dashboardHandlers "github.com/evn/fleet_tracker/internal/handlers/dashboard"
	geoHandlers "github.com/evn/fleet_tracker/internal/handlers/geo"
	mapHandlers "github.com/evn/fleet_tracker/internal/handlers/map"
	"github.com/evn/fleet_tracker/internal/middleware"
	"github.com/evn/fleet_tracker/internal/pkg/response"
	"github.com/evn/fleet_tracker/internal/repositories"
	"github.com/evn/fleet_tracker/internal/services/feed"
	"github.com/evn/fleet_tracker/internal/services/ingest"
	"github.com/evn/fleet_tracker/internal/services/live"
	"github.com/evn/fleet_tracker/internal/services/stats"
	"github.com/evn/fleet_tracker/internal/services/tracker"
)

const requestTimeout = 30 * time.Second

// Setup инициализирует и возвращает настроенный маршрутизатор и хаб
// живых обновлений, который нужно закрыть при остановке.
func Setup(cfg *config.Config, store repositories.Store, redisClient *redis.Client) (*chi.Mux, *live.Hub) {
	jwtAuth := jwtauth.New("HS256", []byte(cfg.JwtSecret), nil)

	var tr *tracker.Tracker
	if redisClient != nil {
		tr = tracker.New(store, tracker.NewRedisLocker(redisClient, lockTTL))
	} else {
		tr = tracker.New(store)
	}

	ingestSvc := ingest.NewService(store, tr, cfg.Location)
	feeds := feed.NewBuilder(store, store, cfg.Location, cfg.RouteMaxPoints)
	statsSvc := stats.NewService(store)

	locationHandler := geoHandlers.NewLocationHandler(ingestSvc)
	mapHandler := mapHandlers.NewMapHandler(store, feeds)
	hub := live.NewHub(mapHandler.LiveFeed, cfg.LivePushInterval)
	mapHandler.WithHub(hub)
	dashboardHandler := dashboardHandlers.NewDashboardHandler(store, feeds, statsSvc)

	router := chi.NewRouter()

	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Трекеры: без JWT, с ограничением частоты по IP
	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))
		if limiter := rateLimit(cfg, redisClient); limiter != nil {
			r.Use(limiter)
		}
		r.Post("/api/bus-locations", locationHandler.PostBusLocation)
		r.Post("/api/vehicle-locations", locationHandler.PostVehicleLocation)
	})

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))
		r.Use(jwtauth.Verifier(jwtAuth))
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Use(middleware.RequireAccount())

		r.Get("/api/monitoring/positions", mapHandler.GetPositions)
		r.Get("/api/history/positions", mapHandler.GetDeviceHistory)
		r.Get("/api/history/positions-by-tags", mapHandler.GetRoutesByTags)
		r.Get("/api/tags", mapHandler.GetTags)

		r.Get("/api/dashboard", dashboardHandler.GetDashboard)
		r.Get("/api/stats", dashboardHandler.GetStats)
		r.Get("/api/stats/export", dashboardHandler.ExportStats)
	})

	// Браузер не может передать заголовок при открытии websocket
	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verify(jwtAuth, tokenFromQuery, jwtauth.TokenFromHeader))
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Use(middleware.RequireAccount())

		r.Get("/api/live/ws", mapHandler.LiveSocket)
	})

	return router, hub
}
