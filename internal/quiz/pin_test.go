package quiz_test

import (
	"strconv"
	"strings"
	"testing"

	"quizdash-server/internal/quiz"
)

func TestGeneratePin(t *testing.T) {
	for i := 0; i < 1000; i++ {
		pin := quiz.GeneratePin()
		if len(pin) != 6 {
			t.Fatalf("pin %q is not 6 digits", pin)
		}
		n, err := strconv.Atoi(pin)
		if err != nil {
			t.Fatalf("pin %q is not numeric: %v", pin, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("pin %d out of range", n)
		}
	}
}

func TestNewPlayerId(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := quiz.NewPlayerId()
		if len(id) != 12 {
			t.Fatalf("id %q is not 12 characters", id)
		}
		for _, ch := range id {
			if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", ch) {
				t.Fatalf("id %q contains invalid character %q", id, ch)
			}
		}
		seen[id] = true
	}
	// Collisions over 1000 draws from a 36^12 space would point at a
	// broken generator.
	if len(seen) < 1000 {
		t.Errorf("expected 1000 unique ids, got %d", len(seen))
	}
}
