package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service wraps the shared connection pool. Stores take the pool; the
// health endpoint reads the stats.
type Service struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection with a ping.
func New(ctx context.Context, dsn string) (*Service, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Service{pool: pool}, nil
}

func (s *Service) Pool() *pgxpool.Pool {
	return s.pool
}

// Health reports reachability and pool pressure as a flat string map,
// ready to be marshalled by the health endpoint.
func (s *Service) Health(ctx context.Context) map[string]string {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	health := make(map[string]string)
	if err := s.pool.Ping(pingCtx); err != nil {
		health["status"] = "down"
		health["error"] = err.Error()
		return health
	}

	stat := s.pool.Stat()
	health["status"] = "up"
	health["total_conns"] = strconv.Itoa(int(stat.TotalConns()))
	health["idle_conns"] = strconv.Itoa(int(stat.IdleConns()))
	health["acquired_conns"] = strconv.Itoa(int(stat.AcquiredConns()))
	return health
}

func (s *Service) Close() {
	s.pool.Close()
}
