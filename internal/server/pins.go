package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizdash-server/internal/quiz"
)

// pinTTL matches the lifetime of a session's PIN mapping. Stale games lose
// their PIN a day after creation; the snapshot cleanup runs on the same
// horizon.
const pinTTL = 24 * time.Hour

var (
	ErrPinTaken    = errors.New("pin already registered")
	ErrPinNotFound = errors.New("pin not found")
)

// PinIndex maps 6-digit game PINs to game ids so players can find a
// session without knowing its UUID.
type PinIndex interface {
	// Register claims pin → gameId atomically. ErrPinTaken on conflict.
	Register(ctx context.Context, pin, gameId string) error
	Resolve(ctx context.Context, pin string) (string, error)
}

// AllocatePin draws fresh PINs until one registers. Collisions are rare
// (900k values) but expected; the coordinator stays agnostic and simply
// receives the reserved PIN.
func AllocatePin(ctx context.Context, index PinIndex, gameId string) (string, error) {
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		pin := quiz.GeneratePin()
		err := index.Register(ctx, pin, gameId)
		if err == nil {
			return pin, nil
		}
		if !errors.Is(err, ErrPinTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free pin after %d attempts", maxAttempts)
}

// RedisPinIndex keeps pin mappings in Redis with a 24-hour expiry.
type RedisPinIndex struct {
	client *redis.Client
}

func NewRedisPinIndex(client *redis.Client) *RedisPinIndex {
	return &RedisPinIndex{client: client}
}

func (r *RedisPinIndex) Register(ctx context.Context, pin, gameId string) error {
	ok, err := r.client.SetNX(ctx, pinKey(pin), gameId, pinTTL).Result()
	if err != nil {
		return fmt.Errorf("registering pin %s: %w", pin, err)
	}
	if !ok {
		return ErrPinTaken
	}
	return nil
}

func (r *RedisPinIndex) Resolve(ctx context.Context, pin string) (string, error) {
	gameId, err := r.client.Get(ctx, pinKey(pin)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrPinNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving pin %s: %w", pin, err)
	}
	return gameId, nil
}

func pinKey(pin string) string {
	return "pin:" + pin
}

// MemoryPinIndex is the fallback for deployments without Redis and for
// tests. Mappings expire on the same 24-hour horizon but do not survive a
// restart.
type MemoryPinIndex struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]pinEntry
}

type pinEntry struct {
	gameId  string
	expires time.Time
}

func NewMemoryPinIndex() *MemoryPinIndex {
	return &MemoryPinIndex{
		ttl:     pinTTL,
		entries: make(map[string]pinEntry),
	}
}

func (m *MemoryPinIndex) Register(ctx context.Context, pin, gameId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[pin]; ok && time.Now().Before(entry.expires) {
		return ErrPinTaken
	}
	m.entries[pin] = pinEntry{gameId: gameId, expires: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryPinIndex) Resolve(ctx context.Context, pin string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[pin]
	if !ok || time.Now().After(entry.expires) {
		delete(m.entries, pin)
		return "", ErrPinNotFound
	}
	return entry.gameId, nil
}
