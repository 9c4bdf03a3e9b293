package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"quizdash-server/internal/database"
)

const (
	// snapshotRetention keeps finished games around long enough for players
	// to revisit the podium before the hourly cleanup removes them.
	snapshotRetention = 24 * time.Hour
	cleanupInterval   = time.Hour

	// Read-loop limits per connection.
	maxMessageBytes   = 64 * 1024
	messagesPerSecond = 30
)

// Server owns the HTTP surface: game creation, PIN resolution, health and
// the websocket upgrade that hands sockets to their game coordinator.
type Server struct {
	port    int
	log     *slog.Logger
	db      *database.Service
	store   SnapshotStore
	pins    PinIndex
	manager *GameManager
	limiter *RateLimiter
}

// New assembles a Server. db may be nil when running on the in-memory
// store; health reporting degrades accordingly.
func New(cfg Config, db *database.Service, store SnapshotStore, pins PinIndex, log *slog.Logger) *Server {
	return &Server{
		port:    cfg.Port,
		log:     log,
		db:      db,
		store:   store,
		pins:    pins,
		manager: NewGameManager(store, pins, log),
		limiter: NewRateLimiter(messagesPerSecond, time.Second),
	}
}

// HTTPServer returns the configured listener. The write timeout does not
// constrain websocket traffic; upgraded connections are hijacked away from
// the HTTP server's deadlines.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// CleanupLoop runs the hourly maintenance pass until ctx is cancelled:
// expired snapshots of finished games are deleted, idle coordinators are
// evicted and the rate limiter forgets dead connections.
func (s *Server) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Server) runCleanup(ctx context.Context) {
	cutoff := time.Now().Add(-snapshotRetention)
	deleted, err := s.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("snapshot cleanup failed", "error", err)
	} else if deleted > 0 {
		s.log.Info("old snapshots deleted", "count", deleted)
	}

	reaped := s.manager.ReapIdle(ctx)
	if reaped > 0 {
		s.log.Info("idle games evicted", "count", reaped)
	}

	s.limiter.Cleanup()
}

// Shutdown stops every coordinator: each writes one final snapshot and
// closes its sockets. Call after the HTTP listener has stopped accepting.
func (s *Server) Shutdown() {
	s.manager.StopAll()
	s.log.Info("all games stopped")
}
