package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizdash-server/internal/quiz"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists for the
// game id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists the full GameState of a session as one document
// per game id. The coordinator is the only writer for its id, so saves
// never race.
type SnapshotStore interface {
	Load(ctx context.Context, gameId string) (*quiz.GameState, error)
	Save(ctx context.Context, gameId string, state *quiz.GameState) error
	Delete(ctx context.Context, gameId string) error
	// DeleteFinishedBefore removes snapshots of finished games last
	// touched before the cutoff. Returns how many rows went away.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresStore keeps one JSONB row per game.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, gameId string) (*quiz.GameState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM game_snapshots WHERE game_id = $1`, gameId,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", gameId, err)
	}

	var state quiz.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", gameId, err)
	}
	return &state, nil
}

func (s *PostgresStore) Save(ctx context.Context, gameId string, state *quiz.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", gameId, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_snapshots (game_id, state, phase, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id) DO UPDATE
		SET state = EXCLUDED.state, phase = EXCLUDED.phase, updated_at = now()`,
		gameId, data, string(state.Phase),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", gameId, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, gameId string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM game_snapshots WHERE game_id = $1`, gameId,
	); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", gameId, err)
	}
	return nil
}

func (s *PostgresStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM game_snapshots WHERE phase = $1 AND updated_at < $2`,
		string(quiz.PhaseFinished), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up finished games: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryStore is the in-process SnapshotStore used by unit tests and
// nothing else. Snapshots round-trip through JSON so tests exercise the
// same serialization the Postgres store does.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	phases    map[string]quiz.Phase
	updated   map[string]time.Time
	saves     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
		phases:    make(map[string]quiz.Phase),
		updated:   make(map[string]time.Time),
	}
}

func (s *MemoryStore) Load(ctx context.Context, gameId string) (*quiz.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.snapshots[gameId]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	var state quiz.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", gameId, err)
	}
	return &state, nil
}

func (s *MemoryStore) Save(ctx context.Context, gameId string, state *quiz.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", gameId, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[gameId] = data
	s.phases[gameId] = state.Phase
	s.updated[gameId] = time.Now()
	s.saves++
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, gameId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, gameId)
	delete(s.phases, gameId)
	delete(s.updated, gameId)
	return nil
}

func (s *MemoryStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, phase := range s.phases {
		if phase == quiz.PhaseFinished && s.updated[id].Before(cutoff) {
			delete(s.snapshots, id)
			delete(s.phases, id)
			delete(s.updated, id)
			deleted++
		}
	}
	return deleted, nil
}

// Saves reports how many successful saves happened; tests use it to check
// persist-per-mutation behavior.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
