package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds a single outbound send. Sends are best-effort; a
// socket that cannot take a message within this window is on its way out
// and the close event will clean it up.
const writeTimeout = 5 * time.Second

// Outbound is the transport seam for one connected socket. The coordinator
// writes through it; tests substitute a channel-backed fake.
type Outbound interface {
	Send(msg ServerMessage) error
	Close(reason string)
}

// session is one live socket attached to a coordinator. playerId stays
// empty until player_join or player_rejoin binds it; host sessions never
// get one.
type session struct {
	id       string
	isHost   bool
	playerId string
	out      Outbound
}

// registry holds the live sessions of one coordinator. It is owned by the
// coordinator goroutine, so none of this needs locking.
type registry struct {
	sessions map[*session]struct{}
}

func newRegistry() *registry {
	return &registry{sessions: make(map[*session]struct{})}
}

func (r *registry) add(s *session) {
	r.sessions[s] = struct{}{}
}

func (r *registry) remove(s *session) {
	delete(r.sessions, s)
}

func (r *registry) has(s *session) bool {
	_, ok := r.sessions[s]
	return ok
}

func (r *registry) empty() bool {
	return len(r.sessions) == 0
}

// hostCount reports how many host sockets are attached. Host-disconnect
// consequences only fire when the last one closes.
func (r *registry) hostCount() int {
	count := 0
	for s := range r.sessions {
		if s.isHost {
			count++
		}
	}
	return count
}

// playerCount reports how many sockets are bound to a player id, so a
// second tab closing does not mark a still-connected player as gone.
func (r *registry) playerCount(playerId string) int {
	count := 0
	for s := range r.sessions {
		if s.playerId == playerId {
			count++
		}
	}
	return count
}

func (r *registry) each(fn func(*session)) {
	for s := range r.sessions {
		fn(s)
	}
}

// wsOutbound adapts a coder/websocket connection to the Outbound seam.
type wsOutbound struct {
	conn *websocket.Conn
}

func (w *wsOutbound) Send(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsOutbound) Close(reason string) {
	w.conn.Close(websocket.StatusGoingAway, reason)
}
