package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quizdash-server/internal/quiz"
)

// dispatch routes one decoded message. Role is checked here so the
// handlers only deal with phase and payload validation.
func (c *Coordinator) dispatch(s *session, msg ClientMessage) {
	switch msg.Type {
	case MsgHostCreateQuiz, MsgHostStartGame, MsgHostNextQuestion, MsgHostShowLeaderboard, MsgHostShowPodium:
		if !s.isHost {
			c.sendError(s, "NOT_HOST: Only the host can send host commands")
			return
		}
	case MsgPlayerJoin, MsgPlayerRejoin, MsgPlayerAnswer:
		if s.isHost {
			c.sendError(s, "NOT_PLAYER: The host cannot send player commands")
			return
		}
	}

	switch msg.Type {
	case MsgHostCreateQuiz:
		c.handleCreateQuiz(s, msg.Payload)
	case MsgHostStartGame:
		c.handleStartGame(s)
	case MsgHostNextQuestion:
		c.handleNextQuestion(s)
	case MsgHostShowLeaderboard:
		c.showLeaderboard(s)
	case MsgHostShowPodium:
		c.showPodium(s)
	case MsgPlayerJoin:
		c.handleJoin(s, msg.Payload)
	case MsgPlayerRejoin:
		c.handleRejoin(s, msg.Payload)
	case MsgPlayerAnswer:
		c.handleAnswer(s, msg.Payload)
	default:
		c.sendError(s, fmt.Sprintf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msg.Type))
	}
}

// handleCreateQuiz validates and installs the quiz. Allowed in any phase;
// replacing the quiz mid-game is the host's prerogative (the UI only
// offers it in the lobby).
func (c *Coordinator) handleCreateQuiz(s *session, payload json.RawMessage) {
	var req CreateQuizRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(s, "INVALID_PAYLOAD: Invalid host_create_quiz payload")
		return
	}
	if err := quiz.ValidateQuiz(&req.Quiz); err != nil {
		c.sendError(s, err.Error())
		return
	}
	c.state.Quiz = &req.Quiz
	if !c.persistOrReply(s) {
		return
	}
	c.broadcastGameState()
	c.log.Info("quiz loaded", "title", req.Quiz.Title, "questions", len(req.Quiz.Questions))
}

// handleStartGame leaves the lobby: game_starting goes out immediately and
// the first question starts after the countdown delay. The starting flag
// absorbs double-clicks during that window.
func (c *Coordinator) handleStartGame(s *session) {
	if c.state.Phase != quiz.PhaseLobby {
		c.sendError(s, "ALREADY_STARTED: The game has already started")
		return
	}
	if c.starting {
		c.sendError(s, "ALREADY_STARTED: The game is already starting")
		return
	}
	if c.state.Quiz == nil || len(c.state.Quiz.Questions) == 0 {
		c.sendError(s, "NO_QUIZ: Load a quiz before starting the game")
		return
	}
	if c.state.ConnectedPlayerCount() == 0 {
		c.sendError(s, "NO_PLAYERS: At least one player must join before starting")
		return
	}
	c.starting = true
	c.broadcast(MsgGameStarting, nil)
	c.schedule(c.tm.StartDelay, func() {
		c.starting = false
		if c.state.Phase == quiz.PhaseLobby {
			c.startQuestion(0, nil)
		}
	})
	c.log.Info("game starting", "players", c.state.ConnectedPlayerCount())
}

// handleNextQuestion advances from the leaderboard to the next question,
// or to the podium when the quiz is exhausted.
func (c *Coordinator) handleNextQuestion(s *session) {
	if c.state.Phase != quiz.PhaseLeaderboard {
		c.sendError(s, "NOT_LEADERBOARD: Next question is only available from the leaderboard")
		return
	}
	next := c.state.CurrentQuestionIndex + 1
	if c.state.Quiz != nil && next < len(c.state.Quiz.Questions) {
		c.startQuestion(next, s)
		return
	}
	c.showPodium(s)
}

// handleJoin admits a new player in the lobby and binds the socket to the
// minted player id.
func (c *Coordinator) handleJoin(s *session, payload json.RawMessage) {
	var req PlayerJoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(s, "INVALID_PAYLOAD: Invalid player_join payload")
		return
	}
	c.joinAs(s, req.Nickname)
}

func (c *Coordinator) joinAs(s *session, nickname string) {
	if s.playerId != "" {
		c.sendError(s, "ALREADY_JOINED: This connection has already joined")
		return
	}
	if c.state.Phase != quiz.PhaseLobby {
		c.sendError(s, "GAME_IN_PROGRESS: Cannot join a game that has already started")
		return
	}
	player, err := c.state.AddPlayer(nickname)
	if err != nil {
		c.sendError(s, err.Error())
		return
	}
	s.playerId = player.Id
	if !c.persistOrReply(s) {
		return
	}
	c.broadcast(MsgPlayerJoined, PlayerJoinedPayload{
		Player:      PublicPlayer{Id: player.Id, Nickname: player.Nickname, Score: player.Score, Connected: true},
		PlayerCount: c.state.ConnectedPlayerCount(),
	})
	c.send(s, MsgGameState, c.gameStateFor(s))
	c.log.Info("player joined", "player", player.Id, "nickname", player.Nickname)
}

// handleRejoin reattaches a returning player by id. An unknown id in the
// lobby falls back to a fresh join so a player whose game was recreated is
// not locked out; anywhere else it is an error.
func (c *Coordinator) handleRejoin(s *session, payload json.RawMessage) {
	var req PlayerRejoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(s, "INVALID_PAYLOAD: Invalid player_rejoin payload")
		return
	}
	player, ok := c.state.Players[req.PlayerId]
	if !ok {
		if c.state.Phase == quiz.PhaseLobby {
			c.joinAs(s, req.Nickname)
			return
		}
		c.sendError(s, "PLAYER_NOT_FOUND: No such player in this game")
		return
	}
	if !strings.EqualFold(player.Nickname, strings.TrimSpace(req.Nickname)) {
		c.sendError(s, "NICKNAME_MISMATCH: Nickname does not match this player id")
		return
	}
	player.Connected = true
	s.playerId = player.Id
	if !c.persistOrReply(s) {
		return
	}
	c.broadcast(MsgPlayerRejoined, PlayerJoinedPayload{
		Player:      PublicPlayer{Id: player.Id, Nickname: player.Nickname, Score: player.Score, Connected: true},
		PlayerCount: c.state.ConnectedPlayerCount(),
	})
	c.send(s, MsgGameState, c.gameStateFor(s))
	c.sendCatchUp(s)
	c.log.Info("player rejoined", "player", player.Id, "nickname", player.Nickname)
}

// handleAnswer records a player's answer for the active question. First
// answer wins; everything else is rejected with a reason.
func (c *Coordinator) handleAnswer(s *session, payload json.RawMessage) {
	var req PlayerAnswerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(s, "INVALID_PAYLOAD: Invalid player_answer payload")
		return
	}
	if s.playerId == "" {
		c.sendError(s, "NOT_JOINED: Join the game before answering")
		return
	}
	player, ok := c.state.Players[s.playerId]
	if !ok {
		c.sendError(s, "PLAYER_NOT_FOUND: No such player in this game")
		return
	}
	if c.state.Phase != quiz.PhaseQuestion || c.questionEnding {
		c.sendError(s, "NOT_ACCEPTING_ANSWERS: No question is currently accepting answers")
		return
	}
	q := c.state.CurrentQuestion()
	if q == nil || q.Id != req.QuestionId {
		c.sendError(s, "WRONG_QUESTION: That question is not the active one")
		return
	}
	indices, err := quiz.NormalizeAnswerIndices(req.AnswerIndices)
	if err != nil {
		c.sendError(s, err.Error())
		return
	}
	if player.HasAnswered(q.Id) {
		c.sendError(s, "ALREADY_ANSWERED: You already answered this question")
		return
	}
	player.Answers[q.Id] = quiz.Answer{
		AnswerIndices: indices,
		Timestamp:     time.Now().UnixMilli(),
	}
	if !c.persistOrReply(s) {
		return
	}
	c.broadcast(MsgAnswerReceived, AnswerReceivedPayload{PlayerId: player.Id})
	c.maybeEndEarly(q)
}

// maybeEndEarly closes the question as soon as every connected player has
// answered it. Disconnected players do not hold the room hostage.
func (c *Coordinator) maybeEndEarly(q *quiz.Question) {
	if c.state.Phase != quiz.PhaseQuestion || !c.timerActive() || c.state.TimerPaused {
		return
	}
	connected := 0
	for _, p := range c.state.Players {
		if !p.Connected {
			continue
		}
		connected++
		if !p.HasAnswered(q.Id) {
			return
		}
	}
	if connected == 0 {
		return
	}
	c.log.Info("all connected players answered", "question", q.Id)
	c.endQuestion()
}
