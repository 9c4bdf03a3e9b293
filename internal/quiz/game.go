package quiz

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseQuestion    Phase = "question"
	PhaseLeaderboard Phase = "leaderboard"
	PhasePodium      Phase = "podium"
	PhaseFinished    Phase = "finished"
)

const (
	MaxPlayers        = 200
	MaxNicknameLength = 50
)

// Answer is a player's locked-in response to one question. Timestamp is
// milliseconds since the Unix epoch, taken when the server accepted it.
type Answer struct {
	AnswerIndices []int `json:"answerIndices"`
	Timestamp     int64 `json:"timestamp"`
}

type Player struct {
	Id        string            `json:"id"`
	Nickname  string            `json:"nickname"`
	Score     int               `json:"score"`
	Answers   map[string]Answer `json:"answers"`
	Connected bool              `json:"connected"`
	// JoinOrder preserves arrival order across snapshots; leaderboard ties
	// break on it because map iteration order is not stable.
	JoinOrder int `json:"joinOrder"`
}

// HasAnswered reports whether the player already locked in an answer for
// the given question. First answer wins; there is no changing it.
func (p *Player) HasAnswered(questionId string) bool {
	_, ok := p.Answers[questionId]
	return ok
}

// GameState is the full persisted state of one session. The coordinator is
// its single writer; everything here round-trips through the snapshot store
// as one JSON document.
type GameState struct {
	Phase                Phase              `json:"phase"`
	GamePin              string             `json:"gamePin"`
	Quiz                 *Quiz              `json:"quiz,omitempty"`
	Players              map[string]*Player `json:"players"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	QuestionStartTime    int64              `json:"questionStartTime,omitempty"`
	HostConnected        bool               `json:"hostConnected"`
	TimerPaused          bool               `json:"timerPaused"`
	PausedAtSecondsLeft  int                `json:"pausedAtSecondsLeft,omitempty"`
	JoinCounter          int                `json:"joinCounter"`
	// ScoredQuestions marks questions whose scoring event has already run,
	// so replaying endQuestion or recovering from a restart never awards
	// points twice.
	ScoredQuestions map[string]bool `json:"scoredQuestions,omitempty"`
}

func NewGameState(pin string) *GameState {
	return &GameState{
		Phase:                PhaseLobby,
		GamePin:              pin,
		Players:              make(map[string]*Player),
		CurrentQuestionIndex: -1,
		ScoredQuestions:      make(map[string]bool),
	}
}

// RestoreFromSnapshot brings a freshly unmarshalled state back to a
// serviceable shape: sockets never survive a restart, so every connection
// flag resets, and fields added after older snapshots were written get
// their zero containers.
func (g *GameState) RestoreFromSnapshot() {
	g.HostConnected = false
	if g.Players == nil {
		g.Players = make(map[string]*Player)
	}
	for _, p := range g.Players {
		p.Connected = false
		if p.Answers == nil {
			p.Answers = make(map[string]Answer)
		}
	}
	if g.ScoredQuestions == nil {
		g.ScoredQuestions = make(map[string]bool)
	}
}

// CurrentQuestion returns the question the session is on, or nil when no
// quiz is loaded or the index is out of range.
func (g *GameState) CurrentQuestion() *Question {
	if g.Quiz == nil || g.CurrentQuestionIndex < 0 || g.CurrentQuestionIndex >= len(g.Quiz.Questions) {
		return nil
	}
	return &g.Quiz.Questions[g.CurrentQuestionIndex]
}

// AddPlayer validates the nickname, mints an id and inserts the player as
// connected. Nicknames are trimmed and unique case-insensitively.
func (g *GameState) AddPlayer(nickname string) (*Player, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, errors.New("NICKNAME_INVALID: Nickname cannot be empty")
	}
	if len(nickname) > MaxNicknameLength {
		return nil, fmt.Errorf("NICKNAME_INVALID: Nickname too long (max %d characters)", MaxNicknameLength)
	}
	if g.PlayerByNickname(nickname) != nil {
		return nil, errors.New("NICKNAME_TAKEN: That nickname is already in use")
	}
	if len(g.Players) >= MaxPlayers {
		return nil, fmt.Errorf("GAME_FULL: This game already has %d players", MaxPlayers)
	}

	player := &Player{
		Id:        NewPlayerId(),
		Nickname:  nickname,
		Answers:   make(map[string]Answer),
		Connected: true,
		JoinOrder: g.JoinCounter,
	}
	g.JoinCounter++
	g.Players[player.Id] = player
	return player, nil
}

// PlayerByNickname finds a player by case-insensitive nickname match.
func (g *GameState) PlayerByNickname(nickname string) *Player {
	nickname = strings.TrimSpace(nickname)
	for _, p := range g.Players {
		if strings.EqualFold(p.Nickname, nickname) {
			return p
		}
	}
	return nil
}

func (g *GameState) ConnectedPlayerCount() int {
	count := 0
	for _, p := range g.Players {
		if p.Connected {
			count++
		}
	}
	return count
}

// PlayersInJoinOrder returns all players sorted by arrival.
func (g *GameState) PlayersInJoinOrder() []*Player {
	players := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, p)
	}
	slices.SortFunc(players, func(a, b *Player) int {
		return a.JoinOrder - b.JoinOrder
	})
	return players
}

// NormalizeAnswerIndices validates and canonicalizes a submitted answer:
// sorted, deduplicated, every index within the answer tile range.
func NormalizeAnswerIndices(indices []int) ([]int, error) {
	if len(indices) == 0 {
		return nil, errors.New("INVALID_ANSWER: Select at least one answer")
	}
	normalized := slices.Clone(indices)
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)
	for _, idx := range normalized {
		if idx < 0 || idx >= AnswersPerQuestion {
			return nil, fmt.Errorf("INVALID_ANSWER: Answer index %d is out of range", idx)
		}
	}
	return normalized, nil
}
