package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /games", s.createGameHandler)
	mux.HandleFunc("GET /pins/{pin}", s.resolvePinHandler)
	mux.HandleFunc("GET /games/{id}/pin", s.gamePinHandler)
	mux.HandleFunc("GET /games/{id}/state", s.gameStateHandler)
	mux.HandleFunc("GET /games/{id}/ws", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.log.Debug("response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorMessage{Message: message})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "up", "store": "memory"}
	if s.db != nil {
		resp = s.db.Health(r.Context())
	}
	resp["games"] = strconv.Itoa(s.manager.Count())
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createGameHandler(w http.ResponseWriter, r *http.Request) {
	c, gameId, err := s.manager.CreateGame(r.Context())
	if err != nil {
		s.log.Error("create game failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "CREATE_FAILED: Could not create the game")
		return
	}
	s.writeJSON(w, http.StatusCreated, CreateGameResponse{GameId: gameId, GamePin: c.Pin()})
}

func (s *Server) resolvePinHandler(w http.ResponseWriter, r *http.Request) {
	gameId, err := s.pins.Resolve(r.Context(), r.PathValue("pin"))
	switch {
	case errors.Is(err, ErrPinNotFound):
		s.writeError(w, http.StatusNotFound, "PIN_NOT_FOUND: No game with that PIN")
		return
	case err != nil:
		s.log.Error("pin lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "PIN_LOOKUP_FAILED: Could not resolve the PIN")
		return
	}
	s.writeJSON(w, http.StatusOK, ResolvePinResponse{GameId: gameId})
}

// gameFromRequest resolves the {id} path segment to a live coordinator,
// reviving one from its snapshot when needed. It writes the error response
// itself; the caller just bails when ok is false.
func (s *Server) gameFromRequest(w http.ResponseWriter, r *http.Request) (*Coordinator, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_GAME_ID: Game id must be a UUID")
		return nil, false
	}
	c, err := s.manager.Get(r.Context(), id)
	switch {
	case errors.Is(err, ErrGameNotFound):
		s.writeError(w, http.StatusNotFound, "GAME_NOT_FOUND: Game not found")
		return nil, false
	case err != nil:
		s.log.Error("game lookup failed", "game", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "GAME_LOOKUP_FAILED: Could not load the game")
		return nil, false
	}
	return c, true
}

func (s *Server) gamePinHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.gameFromRequest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, PinResponse{GamePin: c.Pin()})
}

func (s *Server) gameStateHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.gameFromRequest(w, r)
	if !ok {
		return
	}
	phase, err := c.Phase(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "GAME_LOOKUP_FAILED: Could not read the game state")
		return
	}
	s.writeJSON(w, http.StatusOK, StateResponse{GamePin: c.Pin(), Phase: phase})
}

// websocketHandler upgrades the connection and runs its read loop. The
// loop only decodes the envelope and enforces transport limits; everything
// stateful happens on the coordinator goroutine.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	coordinator, ok := s.gameFromRequest(w, r)
	if !ok {
		return
	}
	isHost := r.URL.Query().Get("host") == "true"

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		s.log.Error("websocket accept failed", "error", err)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")
	socket.SetReadLimit(maxMessageBytes)

	ctx := r.Context()
	connectionId := uuid.NewString()
	sess := &session{id: connectionId, isHost: isHost, out: &wsOutbound{conn: socket}}

	coordinator.Connect(sess)
	defer coordinator.Disconnect(sess)
	defer s.limiter.RemoveConnection(connectionId)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			s.log.Debug("connection closed", "connection", connectionId, "error", err)
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		if !s.limiter.Allow(connectionId) {
			s.sendDirect(sess, "RATE_LIMITED: Too many messages, slow down")
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendDirect(sess, "INVALID_JSON: Could not parse message")
			continue
		}
		coordinator.HandleMessage(sess, msg)
	}
}

// sendDirect replies from the read loop without a round trip through the
// coordinator; concurrent writes are serialized inside the websocket
// library.
func (s *Server) sendDirect(sess *session, message string) {
	if err := sess.out.Send(ServerMessage{Type: MsgError, Payload: ErrorMessage{Message: message}}); err != nil {
		s.log.Debug("error reply failed", "error", err)
	}
}
