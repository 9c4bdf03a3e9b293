package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quizdash-server/internal/quiz"
)

// persistTimeout bounds a single snapshot write.
const persistTimeout = 5 * time.Second

// timings groups every delay the coordinator schedules. Production uses
// defaultTimings; tests shrink them so full game runs finish in milliseconds.
type timings struct {
	Tick            time.Duration // countdown resolution
	StartDelay      time.Duration // game_starting -> first question
	TransitionDelay time.Duration // question_end -> leaderboard or podium
	PodiumBase      time.Duration // entering podium -> third place reveal
	PodiumStep      time.Duration // gap between podium reveals
}

func defaultTimings() timings {
	return timings{
		Tick:            time.Second,
		StartDelay:      3 * time.Second,
		TransitionDelay: 3 * time.Second,
		PodiumBase:      time.Second,
		PodiumStep:      2 * time.Second,
	}
}

// Coordinator owns the full state of one game. A single goroutine drains the
// inbox and performs every mutation, so handlers never observe the state
// mid-change: socket events, timer ticks and scheduled transitions all post
// closures into the same queue and run one at a time.
type Coordinator struct {
	id    string
	pin   string
	log   *slog.Logger
	store SnapshotStore
	tm    timings

	inbox    chan func()
	quit     chan struct{}
	stopped  chan struct{}
	quitOnce sync.Once

	// Owned by the run goroutine. Never touch from outside the inbox.
	state          *quiz.GameState
	registry       *registry
	ticker         *countdown
	secondsLeft    int
	timerGen       int
	questionEnding bool
	starting       bool
}

// NewCoordinator loads the game snapshot for id, or creates a fresh lobby
// with a newly allocated PIN when none exists. It blocks until the state is
// usable and only then starts the run loop, so no event can observe a
// half-initialized game.
func NewCoordinator(ctx context.Context, id string, store SnapshotStore, pins PinIndex, log *slog.Logger, tm timings) (*Coordinator, error) {
	c := &Coordinator{
		id:       id,
		store:    store,
		tm:       tm,
		inbox:    make(chan func(), 256),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		registry: newRegistry(),
	}

	state, err := store.Load(ctx, id)
	switch {
	case err == nil:
		state.RestoreFromSnapshot()
		c.state = state
	case errors.Is(err, ErrSnapshotNotFound):
		pin, err := AllocatePin(ctx, pins, id)
		if err != nil {
			return nil, fmt.Errorf("allocating pin: %w", err)
		}
		c.state = quiz.NewGameState(pin)
		if err := store.Save(ctx, id, c.state); err != nil {
			return nil, fmt.Errorf("saving new game: %w", err)
		}
	default:
		return nil, fmt.Errorf("loading game %s: %w", id, err)
	}

	c.pin = c.state.GamePin
	c.log = log.With("game", id, "pin", c.pin)

	if err := c.recoverExpiredQuestion(ctx); err != nil {
		return nil, err
	}

	go c.run()
	return c, nil
}

// recoverExpiredQuestion handles a snapshot taken mid-question whose timer
// ran out while the server was down: score it once and move straight to the
// leaderboard so reconnecting clients never see a stuck countdown.
func (c *Coordinator) recoverExpiredQuestion(ctx context.Context) error {
	if c.state.Phase != quiz.PhaseQuestion {
		return nil
	}
	q := c.state.CurrentQuestion()
	if q == nil || c.state.QuestionStartTime <= 0 {
		return nil
	}
	elapsed := time.Now().UnixMilli() - c.state.QuestionStartTime
	if elapsed < int64(q.TimerSeconds)*1000 {
		return nil
	}
	c.state.ScoreCurrentQuestion()
	c.state.TimerPaused = false
	c.state.PausedAtSecondsLeft = 0
	c.state.Phase = quiz.PhaseLeaderboard
	if err := c.store.Save(ctx, c.id, c.state); err != nil {
		return fmt.Errorf("saving recovered game: %w", err)
	}
	c.log.Info("recovered expired question", "question", q.Id)
	return nil
}

func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.quit:
			c.shutdown()
			return
		case fn := <-c.inbox:
			fn()
		}
	}
}

// post queues fn for the run goroutine. Events arriving after Stop are
// silently dropped; their sockets are being closed anyway.
func (c *Coordinator) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.quit:
	}
}

// Stop shuts the coordinator down: the state gets one final save and every
// session is closed. Blocks until the run loop has exited.
func (c *Coordinator) Stop() {
	c.quitOnce.Do(func() { close(c.quit) })
	<-c.stopped
}

func (c *Coordinator) shutdown() {
	c.stopTicker()
	if err := c.persist(); err != nil {
		c.log.Error("final save failed", "error", err)
	}
	c.registry.each(func(s *session) {
		s.out.Close("server shutting down")
	})
}

// Pin returns the game PIN. It is assigned at creation and never changes,
// so reading it needs no synchronization.
func (c *Coordinator) Pin() string { return c.pin }

// inspect runs fn on the coordinator goroutine and waits for it. fn must
// only read the state; mutations belong in handlers.
func (c *Coordinator) inspect(ctx context.Context, fn func(state *quiz.GameState)) error {
	done := make(chan struct{})
	wrapped := func() {
		fn(c.state)
		close(done)
	}
	select {
	case c.inbox <- wrapped:
	case <-c.quit:
		return errors.New("game coordinator stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Phase reports the current game phase.
func (c *Coordinator) Phase(ctx context.Context) (quiz.Phase, error) {
	var phase quiz.Phase
	err := c.inspect(ctx, func(state *quiz.GameState) { phase = state.Phase })
	return phase, err
}

// Idle reports whether the game is finished and nobody is connected. Idle
// coordinators can be evicted from memory; the snapshot revives them.
func (c *Coordinator) Idle(ctx context.Context) (bool, error) {
	var idle bool
	err := c.inspect(ctx, func(state *quiz.GameState) {
		idle = state.Phase == quiz.PhaseFinished && c.registry.empty()
	})
	return idle, err
}

// Connect registers a freshly accepted socket with the game.
func (c *Coordinator) Connect(s *session) {
	c.post(func() { c.admit(s) })
}

// Disconnect removes a socket after its read loop ends.
func (c *Coordinator) Disconnect(s *session) {
	c.post(func() { c.dropSession(s) })
}

// HandleMessage queues one decoded client message for dispatch.
func (c *Coordinator) HandleMessage(s *session, msg ClientMessage) {
	c.post(func() { c.dispatch(s, msg) })
}

// admit wires a new session into the game: host reconnection may resume a
// paused timer, then the session gets a personalized game_state plus
// whatever catch-up messages the current phase calls for.
func (c *Coordinator) admit(s *session) {
	c.registry.add(s)

	if s.isHost && !c.state.HostConnected {
		c.state.HostConnected = true
		if c.state.Phase == quiz.PhaseQuestion && c.state.TimerPaused {
			c.resumeTimer()
		} else {
			c.persistOrWarn()
		}
	}

	c.send(s, MsgGameState, c.gameStateFor(s))
	c.sendCatchUp(s)
	c.log.Info("session connected", "session", s.id, "host", s.isHost, "sessions", len(c.registry.sessions))
}

// dropSession handles a socket close. The last host connection going away
// pauses a running timer; a bound player is marked disconnected and the
// room is told. An empty registry cancels the countdown entirely, wall
// clock arithmetic restores it when someone returns.
func (c *Coordinator) dropSession(s *session) {
	if !c.registry.has(s) {
		return
	}
	c.registry.remove(s)

	switch {
	case s.isHost:
		if c.registry.hostCount() == 0 && c.state.HostConnected {
			c.state.HostConnected = false
			if c.state.Phase == quiz.PhaseQuestion && c.timerActive() && !c.state.TimerPaused {
				c.pauseTimer()
			} else {
				c.persistOrWarn()
			}
		}
	case s.playerId != "":
		if c.registry.playerCount(s.playerId) > 0 {
			break // another socket still speaks for this player
		}
		if p := c.state.Players[s.playerId]; p != nil && p.Connected {
			p.Connected = false
			c.persistOrWarn()
			c.broadcast(MsgPlayerLeft, PlayerLeftPayload{
				PlayerId:    p.Id,
				PlayerCount: c.state.ConnectedPlayerCount(),
			})
		}
	}

	if c.registry.empty() && c.timerActive() {
		c.stopTicker()
	}
	c.log.Info("session disconnected", "session", s.id, "host", s.isHost, "sessions", len(c.registry.sessions))
}

// sendCatchUp replays enough of the current phase for a late or returning
// socket to render the same screen everyone else is on.
func (c *Coordinator) sendCatchUp(s *session) {
	switch c.state.Phase {
	case quiz.PhaseQuestion:
		q := c.state.CurrentQuestion()
		if q == nil {
			return
		}
		c.send(s, MsgQuestionStart, c.questionStartPayload(q, s.isHost))
		c.ensureTimer()
		if c.state.Phase == quiz.PhaseQuestion && !c.questionEnding {
			c.send(s, MsgTimerTick, TimerTickPayload{SecondsLeft: c.remainingSeconds()})
		}
	case quiz.PhaseLeaderboard:
		c.send(s, MsgLeaderboardUpdate, LeaderboardUpdatePayload{Leaderboard: c.state.Leaderboard()})
	case quiz.PhasePodium, quiz.PhaseFinished:
		board := c.state.Leaderboard()
		for position := 3; position >= 1; position-- {
			c.send(s, MsgPodiumReveal, PodiumRevealPayload{
				Position: position,
				Player:   podiumEntry(board, position),
			})
		}
		if c.state.Phase == quiz.PhaseFinished {
			c.send(s, MsgGameFinished, GameFinishedPayload{FinalLeaderboard: board})
		}
	}
}

// gameStateFor builds the personalized snapshot view: the host sees the
// full quiz (including correct answers), a joined player sees their own
// record, and nobody receives other players' answers.
func (c *Coordinator) gameStateFor(s *session) GameStatePayload {
	st := c.state
	players := make([]PublicPlayer, 0, len(st.Players))
	for _, p := range st.PlayersInJoinOrder() {
		players = append(players, PublicPlayer{
			Id:        p.Id,
			Nickname:  p.Nickname,
			Score:     p.Score,
			Connected: p.Connected,
		})
	}
	totalQuestions := 0
	if st.Quiz != nil {
		totalQuestions = len(st.Quiz.Questions)
	}
	payload := GameStatePayload{
		Phase:                st.Phase,
		GamePin:              st.GamePin,
		Players:              players,
		CurrentQuestionIndex: st.CurrentQuestionIndex,
		TotalQuestions:       totalQuestions,
		HostConnected:        st.HostConnected,
		TimerPaused:          st.TimerPaused,
	}
	if s.isHost {
		payload.Quiz = st.Quiz
	} else if s.playerId != "" {
		payload.You = st.Players[s.playerId]
	}
	return payload
}

// questionStartPayload strips the question for broadcast. Players never
// receive correct indices; the image URL is host-only because the host
// screen is the one projecting it.
func (c *Coordinator) questionStartPayload(q *quiz.Question, forHost bool) QuestionStartPayload {
	cq := ClientQuestion{
		Id:             q.Id,
		Text:           q.Text,
		Answers:        q.Answers,
		TimerSeconds:   q.TimerSeconds,
		DoublePoints:   q.DoublePoints,
		MultipleChoice: q.MultipleChoice(),
	}
	if forHost {
		cq.ImageUrl = q.ImageUrl
	}
	return QuestionStartPayload{
		Question:       cq,
		QuestionIndex:  c.state.CurrentQuestionIndex,
		TotalQuestions: len(c.state.Quiz.Questions),
	}
}

func podiumEntry(board []quiz.LeaderboardEntry, position int) *quiz.LeaderboardEntry {
	if position > len(board) {
		return nil
	}
	entry := board[position-1]
	return &entry
}

func (c *Coordinator) send(s *session, msgType string, payload interface{}) {
	if err := s.out.Send(ServerMessage{Type: msgType, Payload: payload}); err != nil {
		c.log.Debug("send failed", "type", msgType, "session", s.id, "error", err)
	}
}

func (c *Coordinator) sendError(s *session, message string) {
	c.send(s, MsgError, ErrorMessage{Message: message})
}

func (c *Coordinator) broadcast(msgType string, payload interface{}) {
	c.registry.each(func(s *session) { c.send(s, msgType, payload) })
}

// broadcastGameState pushes a fresh personalized game_state to every
// session, used after mutations that reshape the whole view.
func (c *Coordinator) broadcastGameState() {
	c.registry.each(func(s *session) { c.send(s, MsgGameState, c.gameStateFor(s)) })
}

func (c *Coordinator) persist() error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return c.store.Save(ctx, c.id, c.state)
}

// persistOrReply saves after a socket-triggered mutation. On failure the
// triggering socket gets an error and the caller must skip its broadcast;
// the next successful save writes the whole state anyway.
func (c *Coordinator) persistOrReply(s *session) bool {
	if err := c.persist(); err != nil {
		c.log.Error("snapshot save failed", "error", err)
		c.sendError(s, "STORAGE_ERROR: Failed to save the game, please retry")
		return false
	}
	return true
}

// persistOrWarn saves on paths with no triggering socket, such as timer
// expiry and scheduled transitions. Failures are logged and the game plays
// on rather than stalling every connected client.
func (c *Coordinator) persistOrWarn() {
	if err := c.persist(); err != nil {
		c.log.Error("snapshot save failed", "error", err)
	}
}
