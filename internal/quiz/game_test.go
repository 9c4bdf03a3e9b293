package quiz_test

import (
	"fmt"
	"strings"
	"testing"

	"quizdash-server/internal/quiz"
)

func TestAddPlayer(t *testing.T) {
	state := quiz.NewGameState("123456")

	player, err := state.AddPlayer("  Alice  ")
	if err != nil {
		t.Fatalf("expected join to succeed, got %v", err)
	}
	if player.Nickname != "Alice" {
		t.Errorf("nickname should be trimmed, got %q", player.Nickname)
	}
	if !player.Connected {
		t.Error("new player should be connected")
	}
	if len(player.Id) != 12 {
		t.Errorf("player id should be 12 characters, got %q", player.Id)
	}
	if state.Players[player.Id] != player {
		t.Error("player should be registered under its id")
	}
}

func TestAddPlayer_NicknameRules(t *testing.T) {
	state := quiz.NewGameState("123456")
	if _, err := state.AddPlayer("Alice"); err != nil {
		t.Fatalf("setup join failed: %v", err)
	}

	tests := []struct {
		name     string
		nickname string
		wantErr  string
	}{
		{"empty", "", "NICKNAME_INVALID"},
		{"whitespace only", "   ", "NICKNAME_INVALID"},
		{"too long", strings.Repeat("x", 51), "NICKNAME_INVALID"},
		{"exact duplicate", "Alice", "NICKNAME_TAKEN"},
		{"case-insensitive duplicate", "aLiCe", "NICKNAME_TAKEN"},
		{"duplicate with padding", "  alice ", "NICKNAME_TAKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := state.AddPlayer(tt.nickname)
			if err == nil {
				t.Fatalf("expected error for nickname %q", tt.nickname)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %s error, got %q", tt.wantErr, err.Error())
			}
		})
	}

	// 50 characters is still fine.
	if _, err := state.AddPlayer(strings.Repeat("y", 50)); err != nil {
		t.Errorf("50-character nickname should be accepted, got %v", err)
	}
}

func TestAddPlayer_GameFull(t *testing.T) {
	state := quiz.NewGameState("123456")

	for i := 0; i < quiz.MaxPlayers; i++ {
		if _, err := state.AddPlayer(fmt.Sprintf("player-%d", i)); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}

	_, err := state.AddPlayer("one-too-many")
	if err == nil {
		t.Fatal("expected join 201 to be rejected")
	}
	if !strings.Contains(err.Error(), "GAME_FULL") {
		t.Errorf("expected GAME_FULL error, got %q", err.Error())
	}
}

func TestPlayersInJoinOrder_SurvivesMapIteration(t *testing.T) {
	state := quiz.NewGameState("123456")
	names := []string{"first", "second", "third", "fourth", "fifth"}
	for _, name := range names {
		if _, err := state.AddPlayer(name); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}

	ordered := state.PlayersInJoinOrder()
	if len(ordered) != len(names) {
		t.Fatalf("expected %d players, got %d", len(names), len(ordered))
	}
	for i, p := range ordered {
		if p.Nickname != names[i] {
			t.Errorf("position %d: expected %q, got %q", i, names[i], p.Nickname)
		}
	}
}

func TestConnectedPlayerCount(t *testing.T) {
	state := quiz.NewGameState("123456")
	a, _ := state.AddPlayer("a")
	b, _ := state.AddPlayer("b")
	state.AddPlayer("c")

	a.Connected = false
	b.Connected = false

	if got := state.ConnectedPlayerCount(); got != 1 {
		t.Errorf("expected 1 connected player, got %d", got)
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	state := quiz.NewGameState("123456")
	state.HostConnected = true
	p, _ := state.AddPlayer("alice")
	p.Answers = nil
	state.ScoredQuestions = nil

	state.RestoreFromSnapshot()

	if state.HostConnected {
		t.Error("host should load as disconnected")
	}
	if p.Connected {
		t.Error("players should load as disconnected")
	}
	if p.Answers == nil {
		t.Error("answer map should be initialized")
	}
	if state.ScoredQuestions == nil {
		t.Error("scored question set should be initialized")
	}
}

func TestCurrentQuestion(t *testing.T) {
	state := quiz.NewGameState("123456")
	if state.CurrentQuestion() != nil {
		t.Error("no quiz loaded: current question should be nil")
	}

	state.Quiz = validQuiz()
	if state.CurrentQuestion() != nil {
		t.Error("index -1: current question should be nil")
	}

	state.CurrentQuestionIndex = 1
	q := state.CurrentQuestion()
	if q == nil || q.Id != "q2" {
		t.Errorf("expected q2, got %+v", q)
	}

	state.CurrentQuestionIndex = 2
	if state.CurrentQuestion() != nil {
		t.Error("index past the end: current question should be nil")
	}
}

func TestNormalizeAnswerIndices(t *testing.T) {
	tests := []struct {
		name    string
		input   []int
		want    []int
		wantErr bool
	}{
		{"single", []int{2}, []int{2}, false},
		{"unsorted multi", []int{3, 0}, []int{0, 3}, false},
		{"duplicates collapse", []int{1, 1, 2}, []int{1, 2}, false},
		{"empty", []int{}, nil, true},
		{"nil", nil, nil, true},
		{"negative", []int{-1}, nil, true},
		{"too large", []int{4}, nil, true},
		{"mixed valid and invalid", []int{0, 9}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := quiz.NormalizeAnswerIndices(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tt.input)
				}
				if !strings.Contains(err.Error(), "INVALID_ANSWER") {
					t.Errorf("expected INVALID_ANSWER error, got %q", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestHasAnswered(t *testing.T) {
	state := quiz.NewGameState("123456")
	p, _ := state.AddPlayer("alice")

	if p.HasAnswered("q1") {
		t.Error("player has not answered yet")
	}
	p.Answers["q1"] = quiz.Answer{AnswerIndices: []int{0}, Timestamp: 1000}
	if !p.HasAnswered("q1") {
		t.Error("player answered q1")
	}
	if p.HasAnswered("q2") {
		t.Error("player never answered q2")
	}
}
