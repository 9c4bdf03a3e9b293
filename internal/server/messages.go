package server

import "encoding/json"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Inbound message types. host_* messages require a host socket, player_*
// messages require a player socket.
const (
	MsgHostCreateQuiz      = "host_create_quiz"
	MsgHostStartGame       = "host_start_game"
	MsgHostNextQuestion    = "host_next_question"
	MsgHostShowLeaderboard = "host_show_leaderboard"
	MsgHostShowPodium      = "host_show_podium"
	MsgPlayerJoin          = "player_join"
	MsgPlayerRejoin        = "player_rejoin"
	MsgPlayerAnswer        = "player_answer"
)

// Outbound message types.
const (
	MsgError             = "error"
	MsgGameState         = "game_state"
	MsgPlayerJoined      = "player_joined"
	MsgPlayerRejoined    = "player_rejoined"
	MsgPlayerLeft        = "player_left"
	MsgGameStarting      = "game_starting"
	MsgQuestionStart     = "question_start"
	MsgTimerTick         = "timer_tick"
	MsgAnswerReceived    = "answer_received"
	MsgQuestionEnd       = "question_end"
	MsgLeaderboardUpdate = "leaderboard_update"
	MsgPodiumReveal      = "podium_reveal"
	MsgGameFinished      = "game_finished"
	MsgGamePaused        = "game_paused"
	MsgGameResumed       = "game_resumed"
)
