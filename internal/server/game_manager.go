package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrGameNotFound means no live coordinator and no snapshot exist for the
// requested game id.
var ErrGameNotFound = errors.New("GAME_NOT_FOUND: Game not found")

// GameManager maps game ids to live coordinators. Games are created
// explicitly over HTTP; any other id is only served when a persisted
// snapshot can revive it.
type GameManager struct {
	mu    sync.RWMutex
	games map[string]*Coordinator

	store SnapshotStore
	pins  PinIndex
	log   *slog.Logger
	tm    timings
}

func NewGameManager(store SnapshotStore, pins PinIndex, log *slog.Logger) *GameManager {
	return &GameManager{
		games: make(map[string]*Coordinator),
		store: store,
		pins:  pins,
		log:   log,
		tm:    defaultTimings(),
	}
}

// CreateGame mints a fresh game id, allocates a PIN and registers the new
// coordinator. The returned coordinator is already running.
func (gm *GameManager) CreateGame(ctx context.Context) (*Coordinator, string, error) {
	gameId := uuid.NewString()
	c, err := NewCoordinator(ctx, gameId, gm.store, gm.pins, gm.log, gm.tm)
	if err != nil {
		return nil, "", fmt.Errorf("creating game: %w", err)
	}
	gm.mu.Lock()
	gm.games[gameId] = c
	gm.mu.Unlock()
	gm.log.Info("game created", "game", gameId, "pin", c.Pin())
	return c, gameId, nil
}

// Get returns the live coordinator for gameId, reviving it from its
// snapshot when the server restarted since the game was created.
func (gm *GameManager) Get(ctx context.Context, gameId string) (*Coordinator, error) {
	gm.mu.RLock()
	c, ok := gm.games[gameId]
	gm.mu.RUnlock()
	if ok {
		return c, nil
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()
	if c, ok := gm.games[gameId]; ok {
		return c, nil
	}
	if _, err := gm.store.Load(ctx, gameId); err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("loading game %s: %w", gameId, err)
	}
	c, err := NewCoordinator(ctx, gameId, gm.store, gm.pins, gm.log, gm.tm)
	if err != nil {
		return nil, err
	}
	gm.games[gameId] = c
	gm.log.Info("game revived", "game", gameId, "pin", c.Pin())
	return c, nil
}

// Count reports how many coordinators are resident.
func (gm *GameManager) Count() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.games)
}

// ReapIdle evicts finished games nobody is connected to. Their snapshots
// stay in the store until the retention cleanup deletes them, so a late
// spectator can still revive the podium.
func (gm *GameManager) ReapIdle(ctx context.Context) int {
	gm.mu.RLock()
	candidates := make(map[string]*Coordinator, len(gm.games))
	for id, c := range gm.games {
		candidates[id] = c
	}
	gm.mu.RUnlock()

	reaped := 0
	for id, c := range candidates {
		idle, err := c.Idle(ctx)
		if err != nil || !idle {
			continue
		}
		c.Stop()
		gm.mu.Lock()
		delete(gm.games, id)
		gm.mu.Unlock()
		reaped++
		gm.log.Info("idle game evicted", "game", id)
	}
	return reaped
}

// StopAll shuts every coordinator down in parallel and waits. Each one
// writes a final snapshot and closes its sockets.
func (gm *GameManager) StopAll() {
	gm.mu.Lock()
	games := make([]*Coordinator, 0, len(gm.games))
	for _, c := range gm.games {
		games = append(games, c)
	}
	gm.games = make(map[string]*Coordinator)
	gm.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range games {
		wg.Add(1)
		go func(c *Coordinator) {
			defer wg.Done()
			c.Stop()
		}(c)
	}
	wg.Wait()
}
