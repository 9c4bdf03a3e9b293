package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"quizdash-server/internal/database"
	"quizdash-server/internal/server"
)

// shutdownTimeout gives every game time to write a final snapshot and
// notify its players before the process exits.
const shutdownTimeout = 30 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("graceful shutdown complete")
}

func run(ctx context.Context) error {
	cfg := server.LoadConfig()
	log := slog.Default()

	if cfg.DatabaseUrl == "" {
		return errors.New("DATABASE_URL is required")
	}
	if err := database.RunMigrations(ctx, cfg.DatabaseUrl); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	db, err := database.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	store := server.NewPostgresStore(db.Pool())

	var pins server.PinIndex
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		pins = server.NewRedisPinIndex(client)
	} else {
		log.Warn("REDIS_ADDR not set, PIN lookups are process-local")
		pins = server.NewMemoryPinIndex()
	}

	srv := server.New(cfg, db, store, pins, log)
	httpServer := srv.HTTPServer()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		srv.CleanupLoop(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received")

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(drainCtx); err != nil {
			log.Error("http server shutdown", "error", err)
		}
		srv.Shutdown()
		return nil
	})

	return g.Wait()
}
