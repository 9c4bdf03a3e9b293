package server

import "quizdash-server/internal/quiz"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
}

// ============================================================================
// INBOUND PAYLOADS
// ============================================================================
type CreateQuizRequest struct {
	Quiz quiz.Quiz `json:"quiz"`
}

type PlayerJoinRequest struct {
	Nickname string `json:"nickname"`
}

type PlayerRejoinRequest struct {
	PlayerId string `json:"playerId"`
	Nickname string `json:"nickname"`
}

type PlayerAnswerRequest struct {
	QuestionId    string `json:"questionId"`
	AnswerIndices []int  `json:"answerIndices"`
}

// ============================================================================
// GAME STATE (game_state)
// ============================================================================

// PublicPlayer is the roster view every client may see. Answers stay
// private; a player's own record travels in GameStatePayload.You.
type PublicPlayer struct {
	Id        string `json:"id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// GameStatePayload is personalized per session: hosts get the full quiz
// (they authored it), players get their own record including answers so a
// reconnecting client can restore its "already answered" screen.
type GameStatePayload struct {
	Phase                quiz.Phase     `json:"phase"`
	GamePin              string         `json:"gamePin"`
	Players              []PublicPlayer `json:"players"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	TotalQuestions       int            `json:"totalQuestions"`
	HostConnected        bool           `json:"hostConnected"`
	TimerPaused          bool           `json:"timerPaused"`
	Quiz                 *quiz.Quiz     `json:"quiz,omitempty"`
	You                  *quiz.Player   `json:"you,omitempty"`
}

// ============================================================================
// MEMBERSHIP (player_joined / player_rejoined / player_left)
// ============================================================================

// PlayerCount is the connected-player count in all three notifications.
type PlayerJoinedPayload struct {
	Player      PublicPlayer `json:"player"`
	PlayerCount int          `json:"playerCount"`
}

type PlayerLeftPayload struct {
	PlayerId    string `json:"playerId"`
	PlayerCount int    `json:"playerCount"`
}

// ============================================================================
// QUESTION FLOW (question_start / timer_tick / answer_received / question_end)
// ============================================================================

// ClientQuestion is a question stripped for delivery: correctIndices never
// leave the server mid-game, imageUrl goes to hosts only, and
// multipleChoice tells the client to render a multi-select.
type ClientQuestion struct {
	Id             string   `json:"id"`
	Text           string   `json:"text"`
	ImageUrl       string   `json:"imageUrl,omitempty"`
	Answers        []string `json:"answers"`
	TimerSeconds   int      `json:"timerSeconds"`
	DoublePoints   bool     `json:"doublePoints"`
	MultipleChoice bool     `json:"multipleChoice"`
}

type QuestionStartPayload struct {
	Question       ClientQuestion `json:"question"`
	QuestionIndex  int            `json:"questionIndex"`
	TotalQuestions int            `json:"totalQuestions"`
}

type TimerTickPayload struct {
	SecondsLeft int `json:"secondsLeft"`
}

type AnswerReceivedPayload struct {
	PlayerId string `json:"playerId"`
}

type QuestionEndPayload struct {
	CorrectIndices []int                   `json:"correctIndices"`
	Scores         []quiz.LeaderboardEntry `json:"scores"`
}

// ============================================================================
// STANDINGS (leaderboard_update / podium_reveal / game_finished)
// ============================================================================
type LeaderboardUpdatePayload struct {
	Leaderboard []quiz.LeaderboardEntry `json:"leaderboard"`
}

// PodiumRevealPayload carries one podium position; Player is null when
// fewer players finished than podium slots.
type PodiumRevealPayload struct {
	Position int                    `json:"position"`
	Player   *quiz.LeaderboardEntry `json:"player"`
}

type GameFinishedPayload struct {
	FinalLeaderboard []quiz.LeaderboardEntry `json:"finalLeaderboard"`
}

// ============================================================================
// PAUSE / RESUME (game_paused / game_resumed)
// ============================================================================
type GamePausedPayload struct {
	Reason string `json:"reason"`
}

// ============================================================================
// HTTP RESPONSES
// ============================================================================
type CreateGameResponse struct {
	GameId  string `json:"gameId"`
	GamePin string `json:"gamePin"`
}

type PinResponse struct {
	GamePin string `json:"gamePin"`
}

type ResolvePinResponse struct {
	GameId string `json:"gameId"`
}

type StateResponse struct {
	GamePin string     `json:"gamePin"`
	Phase   quiz.Phase `json:"phase"`
}
