package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"emotional-cup-backend/config"
	"emotional-cup-backend/internal/api"
	"emotional-cup-backend/internal/db"
	"emotional-cup-backend/internal/mw"
	"emotional-cup-backend/internal/notification"
	"emotional-cup-backend/internal/parse"
	"emotional-cup-backend/internal/remotesync"
	"emotional-cup-backend/internal/rollover"
	"emotional-cup-backend/internal/room"
	"emotional-cup-backend/internal/store"
	"emotional-cup-backend/internal/vessel"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "cup-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("no configuration file at %s, using defaults", configPath)
		cfg = config.Default()
	case err != nil:
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	default:
		logger.Printf("configuration loaded successfully from %s", configPath)
	}

	// Local storage
	localDB, err := db.InitLocal(&cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to initialize local database: %v", err)
	}
	localStore := store.NewGormStore(localDB)
	logger.Printf("local store opened at %s", cfg.Storage.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Room identity
	persistedID, err := localStore.RoomID(ctx)
	if err != nil {
		logger.Printf("failed to read persisted room id: %v", err)
	}
	roomID, generated := room.ResolveRoomID(cfg.Session.RoomURL, persistedID, room.NewRoomID)
	if generated || roomID != persistedID {
		if err := localStore.SaveRoomID(ctx, roomID); err != nil {
			logger.Printf("failed to persist room id: %v", err)
		}
	}
	shareURL := parse.ShareURL(cfg.Session.ShareBaseURL, roomID)
	logger.Printf("room %s, share link: %s", roomID, shareURL)

	// Initial document
	today := vessel.Today(time.Now().In(cfg.Session.Location))
	initial, err := store.LoadRoom(ctx, localStore, today)
	if err != nil {
		logger.Printf("failed to read local state, starting fresh: %v", err)
		initial = room.Bootstrap(today)
	}

	// Remote document store
	var remote remotesync.RemoteStore
	if cfg.Remote.Enabled() {
		remoteDB, dsn, err := db.InitRemote(&cfg.Remote)
		if err != nil {
			logger.Printf("remote store unavailable, running local-only: %v", err)
		} else {
			remote = remotesync.NewPostgresStore(remoteDB, dsn)
			logger.Println("remote store connected")
		}
	} else {
		logger.Println("remote store not configured, running local-only")
	}
	adapter := remotesync.NewAdapter(remote, roomID, cfg.Remote.Debounce, cfg.Remote.WriteTimeout)

	rooms := room.NewStore(initial, localStore, adapter, room.WithLocation(cfg.Session.Location))

	// Red-zone alerts
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, localDB, webpushOptions)
		rooms.OnChange(pool.OnChange)
		pool.Start(ctx)
		logger.Printf("alert worker pool started with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured, red-zone alerts disabled")
	}

	// Initialize router
	handler := api.NewHandler(rooms, adapter, localStore, webpushOptions, shareURL)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		Burst:     cfg.Server.RateLimitBurst,
		Cache:     mw.NewResponseCache(cfg.Server.CacheTTL),
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Decay runs before the first request is served.
	daily := rollover.NewService(rooms, cfg.Session.Location, cfg.Session.RolloverEnabled())
	daily.TickOnce(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := adapter.Run(gctx, rooms); err != nil {
			logger.Printf("remote subscription stopped: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		daily.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Println("Shutdown signal received, stopping services...")

		// Create a deadline to wait for.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		adapter.Close(shutdownCtx)
		handler.Hub().Close()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server stopped with error: %v", err)
	}
	logger.Println("Server gracefully stopped")
}
