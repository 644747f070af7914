package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/calendarfeed"
	"github.com/example/office-calendar/internal/config"
	httptransport "github.com/example/office-calendar/internal/http"
	"github.com/example/office-calendar/internal/jobs"
	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/logging"
	"github.com/example/office-calendar/internal/participation"
	"github.com/example/office-calendar/internal/persistence/sqlite"
)

const feedDomain = "office-calendar"

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger = logging.New(os.Stdout, level)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("calendar API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLitePath})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	services, err := newServices(store, cfg, time.Now, logger)
	if err != nil {
		return err
	}

	sweeper, err := jobs.NewSweeper(jobs.Config{
		SessionSchedule:       cfg.SessionSweepSchedule,
		NotificationSchedule:  cfg.NotificationSweepSchedule,
		NotificationRetention: cfg.NotificationRetention,
		Location:              cfg.Location,
	}, services.Auth, services.Notifications, logger)
	if err != nil {
		return err
	}
	sweeper.Start()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(services, store, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("calendar API listening", "addr", server.Addr, "timezone", cfg.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to shutdown server", "error", err)
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop sweeper", "error", err)
	}
	logger.Info("calendar API stopped")
	return nil
}

func newServices(store *sqlite.Store, cfg config.Config, now func() time.Time, logger *slog.Logger) (application.Services, error) {
	locks, err := lockset.New(cfg.LockRegistrySize)
	if err != nil {
		return application.Services{}, fmt.Errorf("lock registry: %w", err)
	}
	return application.NewServices(newRepositories(store), application.ServiceOptions{
		Locks:          locks,
		Policy:         participation.Policy{AllowDirectJoin: cfg.AllowDirectJoin},
		Feed:           calendarfeed.NewEncoder(feedDomain, "Office calendar", now),
		Location:       cfg.Location,
		SessionTTL:     cfg.SessionTTL,
		Now:            now,
		IDGenerator:    uuid.NewString,
		TokenGenerator: func() string { return randomHex(32) },
		Logger:         logger,
	}), nil
}

func newHandler(services application.Services, store httptransport.Pinger, cfg config.Config, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(services.Auth, cfg.CookieSecure, logger),
		Users:          httptransport.NewUserHandler(services.Users, logger),
		Rooms:          httptransport.NewRoomHandler(services.Rooms, logger),
		Events:         httptransport.NewEventHandler(services.Events, cfg.Location, logger),
		Notifications:  httptransport.NewNotificationHandler(services.Notifications, logger),
		Health:         httptransport.NewHealthHandler(store, logger),
		Sessions:       services.Auth,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
