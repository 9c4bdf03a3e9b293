package quiz

import (
	"math"
	"slices"
	"sort"
)

const basePoints = 1000

// LeaderboardEntry is the derived per-player standing; never persisted.
type LeaderboardEntry struct {
	PlayerId          string `json:"playerId"`
	Nickname          string `json:"nickname"`
	Score             int    `json:"score"`
	Rank              int    `json:"rank"`
	LastAnswerCorrect bool   `json:"lastAnswerCorrect"`
}

// AnswerCorrect reports whether the submitted indices exactly match the
// question's correct set. Implemented as an equal-size intersection count;
// both sides are duplicate-free so no set allocation is needed.
func AnswerCorrect(q *Question, indices []int) bool {
	if len(indices) != len(q.CorrectIndices) {
		return false
	}
	matches := 0
	for _, idx := range indices {
		if slices.Contains(q.CorrectIndices, idx) {
			matches++
		}
	}
	return matches == len(q.CorrectIndices)
}

// PointsFor computes the award for a correct answer given its response
// time in milliseconds. Half the points are for being right, the other
// half scale linearly with speed inside the question's time window.
func PointsFor(q *Question, responseTimeMs int64) int {
	maxPoints := float64(basePoints)
	if q.DoublePoints {
		maxPoints = 2 * basePoints
	}
	timeWindow := float64(q.TimerSeconds) * 1000
	timeBonus := 1 - float64(responseTimeMs)/timeWindow
	if timeBonus < 0 {
		timeBonus = 0
	}
	if timeBonus > 1 {
		// Client clocks cannot push an answer before the question started;
		// clamp so a skewed timestamp never exceeds maxPoints.
		timeBonus = 1
	}
	return int(math.Round(maxPoints * (0.5 + 0.5*timeBonus)))
}

// ScoreCurrentQuestion awards points for every recorded answer to the
// current question. It runs at most once per question: a second call is a
// no-op, as is recovery after a restart that already scored it. Returns
// whether a scoring event took place.
func (g *GameState) ScoreCurrentQuestion() bool {
	q := g.CurrentQuestion()
	if q == nil {
		return false
	}
	if g.ScoredQuestions == nil {
		g.ScoredQuestions = make(map[string]bool)
	}
	if g.ScoredQuestions[q.Id] {
		return false
	}
	g.ScoredQuestions[q.Id] = true

	for _, p := range g.Players {
		answer, ok := p.Answers[q.Id]
		if !ok {
			continue
		}
		if !AnswerCorrect(q, answer.AnswerIndices) {
			continue
		}
		// Disconnected players keep what they earned.
		p.Score += PointsFor(q, answer.Timestamp-g.QuestionStartTime)
	}
	return true
}

// Leaderboard builds the full standings: descending score, ties broken by
// join order via a stable sort, ranks 1..N. LastAnswerCorrect reflects the
// current question only.
func (g *GameState) Leaderboard() []LeaderboardEntry {
	players := g.PlayersInJoinOrder()
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})

	q := g.CurrentQuestion()
	entries := make([]LeaderboardEntry, 0, len(players))
	for i, p := range players {
		correct := false
		if q != nil {
			if answer, ok := p.Answers[q.Id]; ok {
				correct = AnswerCorrect(q, answer.AnswerIndices)
			}
		}
		entries = append(entries, LeaderboardEntry{
			PlayerId:          p.Id,
			Nickname:          p.Nickname,
			Score:             p.Score,
			Rank:              i + 1,
			LastAnswerCorrect: correct,
		})
	}
	return entries
}
