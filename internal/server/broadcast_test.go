package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGameStateIsPersonalized checks that the same broadcast moment gives
// each role its own view: the host sees the full quiz (correct answers
// included), a player sees only their own record, and nobody sees other
// players' answers.
func TestGameStateIsPersonalized(t *testing.T) {
	c := newTestCoordinator(t, nil, fastTimings())
	host, hostOut := connect(t, c, true)

	alice, aliceOut := connect(t, c, false)
	say(t, c, alice, MsgPlayerJoin, PlayerJoinRequest{Nickname: "alice"})
	bob, bobOut := connect(t, c, false)
	say(t, c, bob, MsgPlayerJoin, PlayerJoinRequest{Nickname: "bob"})
	_, spectatorOut := connect(t, c, false)

	// Loading the quiz re-broadcasts game_state to every session.
	say(t, c, host, MsgHostCreateQuiz, CreateQuizRequest{Quiz: twoQuestionQuiz()})

	hostState, ok := hostOut.last(MsgGameState)
	require.True(t, ok)
	hs := hostState.Payload.(GameStatePayload)
	require.NotNil(t, hs.Quiz)
	assert.Equal(t, []int{0}, hs.Quiz.Questions[0].CorrectIndices, "the host authored the quiz and keeps the answer key")
	assert.Nil(t, hs.You)

	aliceState, ok := aliceOut.last(MsgGameState)
	require.True(t, ok)
	as := aliceState.Payload.(GameStatePayload)
	assert.Nil(t, as.Quiz, "players never receive the quiz document")
	require.NotNil(t, as.You)
	assert.Equal(t, alice.playerId, as.You.Id)
	assert.Equal(t, 2, as.TotalQuestions)

	// The roster is in join order and carries only public fields.
	require.Len(t, as.Players, 2)
	assert.Equal(t, "alice", as.Players[0].Nickname)
	assert.Equal(t, "bob", as.Players[1].Nickname)

	bobState, ok := bobOut.last(MsgGameState)
	require.True(t, ok)
	bs := bobState.Payload.(GameStatePayload)
	require.NotNil(t, bs.You)
	assert.Equal(t, bob.playerId, bs.You.Id)

	spectatorState, ok := spectatorOut.last(MsgGameState)
	require.True(t, ok)
	ss := spectatorState.Payload.(GameStatePayload)
	assert.Nil(t, ss.Quiz)
	assert.Nil(t, ss.You, "an unbound socket gets the public view only")
}

// TestQuestionStartIsPersonalized checks the per-role question payloads:
// the image url goes to the host screen only, and no variant carries the
// correct indices.
func TestQuestionStartIsPersonalized(t *testing.T) {
	qz := twoQuestionQuiz()
	qz.Questions[0].ImageUrl = "https://cdn.example.com/eiffel.jpg"

	c := newTestCoordinator(t, nil, fastTimings())
	host, hostOut := connect(t, c, true)
	say(t, c, host, MsgHostCreateQuiz, CreateQuizRequest{Quiz: qz})
	alice, aliceOut := connect(t, c, false)
	say(t, c, alice, MsgPlayerJoin, PlayerJoinRequest{Nickname: "alice"})
	say(t, c, host, MsgHostStartGame, nil)

	hostStart := waitFor(t, hostOut, MsgQuestionStart)
	hq := hostStart.Payload.(QuestionStartPayload).Question
	assert.Equal(t, "https://cdn.example.com/eiffel.jpg", hq.ImageUrl)
	assert.False(t, hq.MultipleChoice)

	playerStart := waitFor(t, aliceOut, MsgQuestionStart)
	pq := playerStart.Payload.(QuestionStartPayload).Question
	assert.Empty(t, pq.ImageUrl, "image url is host-only")
	assert.Equal(t, hq.Id, pq.Id)
	assert.Equal(t, hq.Answers, pq.Answers)
	assert.Equal(t, hq.TimerSeconds, pq.TimerSeconds)
}

// TestMultipleChoiceFlag checks that a multi-answer question tells clients
// to render a multi-select.
func TestMultipleChoiceFlag(t *testing.T) {
	c, host, hostOut, players, outs := startedGame(t, fastTimings(), twoQuestionQuiz(), "alice")

	say(t, c, players[0], MsgPlayerAnswer, PlayerAnswerRequest{QuestionId: "q1", AnswerIndices: []int{0}})
	waitFor(t, hostOut, MsgLeaderboardUpdate)
	say(t, c, host, MsgHostNextQuestion, nil)

	start, ok := outs[0].last(MsgQuestionStart)
	require.True(t, ok)
	payload := start.Payload.(QuestionStartPayload)
	require.Equal(t, "q2", payload.Question.Id)
	assert.True(t, payload.Question.MultipleChoice, "two correct answers make a multi-select")
	assert.True(t, payload.Question.DoublePoints)
}

// TestBroadcastReachesEverySession checks one mutation fans out to every
// connected socket, host and players alike.
func TestBroadcastReachesEverySession(t *testing.T) {
	c := newTestCoordinator(t, nil, fastTimings())
	_, hostOut := connect(t, c, true)
	_, watcherOut := connect(t, c, false)

	joiner, joinerOut := connect(t, c, false)
	say(t, c, joiner, MsgPlayerJoin, PlayerJoinRequest{Nickname: "alice"})

	for name, out := range map[string]*testOutbound{
		"host":    hostOut,
		"watcher": watcherOut,
		"joiner":  joinerOut,
	} {
		msg, ok := out.first(MsgPlayerJoined)
		require.True(t, ok, "%s should see player_joined", name)
		assert.Equal(t, "alice", msg.Payload.(PlayerJoinedPayload).Player.Nickname)
	}
}
