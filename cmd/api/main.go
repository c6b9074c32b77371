// Package main provides the entry point for the API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/scholarsync/collab-plane/internal/api"
	"github.com/scholarsync/collab-plane/internal/auth"
	"github.com/scholarsync/collab-plane/internal/chat"
	"github.com/scholarsync/collab-plane/internal/notify"
	"github.com/scholarsync/collab-plane/internal/realtime"
	"github.com/scholarsync/collab-plane/internal/shutdown"
	pgstore "github.com/scholarsync/collab-plane/internal/store/postgres"
	"github.com/scholarsync/collab-plane/pkg/config"
	"github.com/scholarsync/collab-plane/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(slog.LevelInfo, true)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database store
	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	st, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Run schema migrations
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgstore.Migrate(migrateCtx, st.DB()); err != nil {
		cancelMigrate()
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	cancelMigrate()

	// Messaging provider client
	provider := chat.NewHTTPProvider(chat.HTTPProviderConfig{
		BaseURL:        cfg.Chat.BaseURL,
		APIKey:         cfg.Chat.APIKey,
		RequestTimeout: cfg.Chat.RequestTimeout,
	}, log.Logger)
	coordinator := chat.NewCoordinator(provider, log.Logger)

	// Realtime hub. Room addresses are joinable only by the room's
	// current participants.
	hub := realtime.NewHub(realtime.AuthorizerFunc(func(userID, address string) bool {
		roomID := strings.TrimPrefix(address, "room_")
		if roomID == address {
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		room, err := st.Rooms().Get(ctx, roomID)
		if err != nil || room == nil {
			return false
		}
		return room.HasParticipant(userID)
	}), cfg.Realtime, log.Logger)

	// Notification fan-out
	notifySvc := notify.NewService(st, hub, log.Logger)

	// Initialize auth service
	authCfg := &auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}
	authService := auth.NewService(authCfg, log.Logger)

	// Create the API server
	server := api.NewServer(cfg, st, coordinator, hub, notifySvc, authService, log.Logger)

	// Setup graceful shutdown
	coord := shutdown.NewCoordinator(shutdown.WithLogger(log.Logger))
	coord.Register(shutdown.NewCloserComponent("store", st))
	coord.Register(shutdown.NewFuncComponent("notify", func(ctx context.Context) error {
		notifySvc.Close()
		return nil
	}))
	coord.Register(shutdown.NewFuncComponent("api-server", server.Shutdown))

	// Start the server
	log.Info("starting API server",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
	)

	go func() {
		if err := server.Start(context.Background()); err != nil {
			log.Error("server error", "error", err)
			coord.Shutdown()
		}
	}()

	go coord.WaitForSignal()
	coord.Wait()

	log.Info("server stopped")
	os.Exit(coord.ExitCode())
}
