package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/config"
	"github.com/evn/fleet_tracker/db"
	"github.com/evn/fleet_tracker/internal/pkg/logging"
	"github.com/evn/fleet_tracker/internal/repositories"
	"github.com/evn/fleet_tracker/internal/routes"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	router, hub := routes.Setup(cfg, store, redisClient)
	defer hub.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"driver":   cfg.DatabaseDriver,
			"timezone": cfg.Timezone,
			"redis":    redisClient != nil,
		}).Info("🚀 Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// websocket-соединения сервер не закрывает сам
	hub.Close()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (repositories.Store, func(), error) {
	if cfg.DatabaseDriver == db.DriverMemory {
		logrus.Warn("using in-memory store, data is lost on restart")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	database, err := db.InitDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			logrus.WithError(err).Warn("close database")
		}
	}
	return repositories.NewSQLStore(database, db.Dialect(cfg.DatabaseDriver)), closeDB, nil
}
