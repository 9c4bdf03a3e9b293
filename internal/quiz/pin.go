package quiz

import (
	"math/rand"
	"strconv"
)

const (
	playerIdLength   = 12
	playerIdAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GeneratePin returns a uniformly random 6-digit game PIN. Uniqueness is
// the PIN index's problem, not ours; callers retry on collision.
func GeneratePin() string {
	return strconv.Itoa(100000 + rand.Intn(900000))
}

// NewPlayerId mints a random base36 player id.
func NewPlayerId() string {
	id := make([]byte, playerIdLength)
	for i := range id {
		id[i] = playerIdAlphabet[rand.Intn(len(playerIdAlphabet))]
	}
	return string(id)
}
