package server

import (
	"time"

	"quizdash-server/internal/quiz"
)

// countdown is one running question ticker. Its goroutine only posts tick
// closures into the coordinator inbox; secondsLeft itself lives on the
// coordinator and is decremented on the run goroutine.
type countdown struct {
	stop chan struct{}
}

// startTicker begins a fresh countdown from seconds. The generation counter
// makes ticks from an older countdown harmless: they arrive in the inbox,
// see a stale generation and drop themselves.
func (c *Coordinator) startTicker(seconds int) {
	c.stopTicker()
	c.secondsLeft = seconds
	c.timerGen++
	gen := c.timerGen
	cd := &countdown{stop: make(chan struct{})}
	c.ticker = cd
	go func() {
		ticker := time.NewTicker(c.tm.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-cd.stop:
				return
			case <-ticker.C:
				c.post(func() { c.onTick(gen) })
			}
		}
	}()
}

func (c *Coordinator) stopTicker() {
	if c.ticker != nil {
		close(c.ticker.stop)
		c.ticker = nil
	}
}

func (c *Coordinator) timerActive() bool {
	return c.ticker != nil
}

// onTick advances the countdown by one second. Reaching zero ends the
// question instead of broadcasting a zero tick.
func (c *Coordinator) onTick(gen int) {
	if !c.timerActive() || gen != c.timerGen {
		return
	}
	if c.state.Phase != quiz.PhaseQuestion {
		c.stopTicker()
		return
	}
	c.secondsLeft--
	if c.secondsLeft > 0 {
		c.broadcast(MsgTimerTick, TimerTickPayload{SecondsLeft: c.secondsLeft})
		return
	}
	c.endQuestion()
}

// schedule posts fn into the inbox after d. The delivery is never
// cancelled; fn must re-check its preconditions when it runs.
func (c *Coordinator) schedule(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { c.post(fn) })
}

// ensureTimer restarts a countdown that was cancelled while the game had no
// sockets. Remaining time comes from the wall clock, so an empty room does
// not stop the question from aging.
func (c *Coordinator) ensureTimer() {
	if c.state.Phase != quiz.PhaseQuestion || c.timerActive() || c.state.TimerPaused || c.questionEnding {
		return
	}
	q := c.state.CurrentQuestion()
	if q == nil {
		return
	}
	elapsed := (time.Now().UnixMilli() - c.state.QuestionStartTime) / 1000
	remaining := q.TimerSeconds - int(elapsed)
	if remaining <= 0 {
		c.endQuestion()
		return
	}
	c.startTicker(remaining)
}

// remainingSeconds reports the countdown as a reconnecting client should
// see it: the live counter when a ticker runs, the frozen value when
// paused, otherwise wall clock arithmetic.
func (c *Coordinator) remainingSeconds() int {
	if c.timerActive() {
		return c.secondsLeft
	}
	if c.state.TimerPaused {
		return c.state.PausedAtSecondsLeft
	}
	q := c.state.CurrentQuestion()
	if q == nil {
		return 0
	}
	remaining := q.TimerSeconds - int((time.Now().UnixMilli()-c.state.QuestionStartTime)/1000)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// pauseTimer freezes the countdown when the last host socket drops
// mid-question. The frozen seconds are persisted so a server restart keeps
// the game paused at the same spot.
func (c *Coordinator) pauseTimer() {
	c.state.TimerPaused = true
	c.state.PausedAtSecondsLeft = c.secondsLeft
	c.stopTicker()
	c.persistOrWarn()
	c.broadcast(MsgGamePaused, GamePausedPayload{Reason: "Host disconnected"})
	c.log.Info("timer paused", "secondsLeft", c.state.PausedAtSecondsLeft)
}

// resumeTimer picks the countdown back up on host reconnection. A pause
// that was captured at zero goes straight to scoring.
func (c *Coordinator) resumeTimer() {
	if c.state.Phase != quiz.PhaseQuestion || !c.state.TimerPaused {
		return
	}
	remaining := c.state.PausedAtSecondsLeft
	c.state.TimerPaused = false
	c.state.PausedAtSecondsLeft = 0
	if remaining <= 0 {
		c.endQuestion()
		return
	}
	c.persistOrWarn()
	c.broadcast(MsgGameResumed, nil)
	c.startTicker(remaining)
	c.broadcast(MsgTimerTick, TimerTickPayload{SecondsLeft: remaining})
	c.log.Info("timer resumed", "secondsLeft", remaining)
}

// startQuestion moves the game onto question index: phase flips, the start
// time is stamped, every session gets its role's view of the question and
// the countdown begins. trigger is the socket whose command caused the
// transition, nil when it was scheduled.
func (c *Coordinator) startQuestion(index int, trigger *session) {
	if c.state.Quiz == nil || index < 0 || index >= len(c.state.Quiz.Questions) {
		return
	}
	q := &c.state.Quiz.Questions[index]
	c.state.Phase = quiz.PhaseQuestion
	c.state.CurrentQuestionIndex = index
	c.state.QuestionStartTime = time.Now().UnixMilli()
	c.state.TimerPaused = false
	c.state.PausedAtSecondsLeft = 0
	c.questionEnding = false

	if trigger != nil {
		if !c.persistOrReply(trigger) {
			return
		}
	} else {
		c.persistOrWarn()
	}

	c.registry.each(func(s *session) {
		c.send(s, MsgQuestionStart, c.questionStartPayload(q, s.isHost))
	})
	c.startTicker(q.TimerSeconds)
	c.log.Info("question started", "index", index, "question", q.Id, "timerSeconds", q.TimerSeconds)
}

// endQuestion closes the current question exactly once: stop the ticker,
// score, reveal the correct answers and schedule the follow-up transition.
// The phase stays question during the reveal gap, so questionEnding guards
// against a second entry until the follow-up commits.
func (c *Coordinator) endQuestion() {
	if c.state.Phase != quiz.PhaseQuestion || c.questionEnding {
		return
	}
	q := c.state.CurrentQuestion()
	if q == nil {
		return
	}
	c.questionEnding = true
	c.stopTicker()
	c.state.TimerPaused = false
	c.state.PausedAtSecondsLeft = 0
	c.state.ScoreCurrentQuestion()
	c.persistOrWarn()
	c.broadcast(MsgQuestionEnd, QuestionEndPayload{
		CorrectIndices: q.CorrectIndices,
		Scores:         c.state.Leaderboard(),
	})

	last := c.state.CurrentQuestionIndex >= len(c.state.Quiz.Questions)-1
	c.schedule(c.tm.TransitionDelay, func() {
		if c.state.Phase != quiz.PhaseQuestion || !c.questionEnding {
			return
		}
		if last {
			c.showPodium(nil)
		} else {
			c.showLeaderboard(nil)
		}
	})
	c.log.Info("question ended", "question", q.Id)
}

// showLeaderboard moves to the leaderboard from any phase. The host uses it
// as a universal escape hatch, so it also clears countdown and pause state.
func (c *Coordinator) showLeaderboard(trigger *session) {
	c.stopTicker()
	c.state.TimerPaused = false
	c.state.PausedAtSecondsLeft = 0
	c.questionEnding = false
	c.state.Phase = quiz.PhaseLeaderboard

	if trigger != nil {
		if !c.persistOrReply(trigger) {
			return
		}
	} else {
		c.persistOrWarn()
	}
	c.broadcast(MsgLeaderboardUpdate, LeaderboardUpdatePayload{Leaderboard: c.state.Leaderboard()})
	c.log.Info("leaderboard shown")
}

// showPodium enters the podium ceremony and schedules the three reveals.
// Entering twice would double the reveals, so it refuses when the ceremony
// already started; each reveal re-checks the phase at delivery so a host
// jumping back to the leaderboard cancels the rest.
func (c *Coordinator) showPodium(trigger *session) {
	if c.state.Phase == quiz.PhasePodium || c.state.Phase == quiz.PhaseFinished {
		return
	}
	c.stopTicker()
	c.state.TimerPaused = false
	c.state.PausedAtSecondsLeft = 0
	c.questionEnding = false
	c.state.Phase = quiz.PhasePodium

	if trigger != nil {
		if !c.persistOrReply(trigger) {
			return
		}
	} else {
		c.persistOrWarn()
	}

	c.schedule(c.tm.PodiumBase, func() { c.revealPodium(3) })
	c.schedule(c.tm.PodiumBase+c.tm.PodiumStep, func() { c.revealPodium(2) })
	c.schedule(c.tm.PodiumBase+2*c.tm.PodiumStep, func() { c.revealPodium(1) })
	c.log.Info("podium shown")
}

// revealPodium broadcasts one podium position. Position 1 also ends the
// game: phase flips to finished, the state is saved and the final
// leaderboard goes out.
func (c *Coordinator) revealPodium(position int) {
	if c.state.Phase != quiz.PhasePodium {
		return
	}
	board := c.state.Leaderboard()
	c.broadcast(MsgPodiumReveal, PodiumRevealPayload{
		Position: position,
		Player:   podiumEntry(board, position),
	})
	if position == 1 {
		c.state.Phase = quiz.PhaseFinished
		c.persistOrWarn()
		c.broadcast(MsgGameFinished, GameFinishedPayload{FinalLeaderboard: board})
		c.log.Info("game finished", "players", len(c.state.Players))
	}
}
