package server

import (
	"sync"
	"time"
)

// RateLimiter applies a per-connection sliding window: a connection may
// send at most maxRequests messages in any window-sized span. One abusive
// socket never throttles the rest of the room.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow records one message attempt for connectionId and reports whether it
// fits in the window. Timestamps outside the window are discarded as a side
// effect, keeping per-connection memory bounded.
func (r *RateLimiter) Allow(connectionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionId]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionId] = valid
		return false
	}

	r.requests[connectionId] = append(valid, now)
	return true
}

// Cleanup drops connections with no activity inside the window. Called
// periodically so sockets that never hit RemoveConnection cannot leak.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for connectionId, timestamps := range r.requests {
		active := false
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				active = true
				break
			}
		}
		if !active {
			delete(r.requests, connectionId)
		}
	}
}

// RemoveConnection forgets a connection's window immediately, called when
// its websocket closes.
func (r *RateLimiter) RemoveConnection(connectionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionId)
}
