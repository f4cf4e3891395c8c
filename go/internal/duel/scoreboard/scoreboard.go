package scoreboard

import (
	"sync"
	"time"

	"github.com/mcdev12/quickdraw/go/internal/duel"
)

// Summary is a point-in-time view of the session's results
type Summary struct {
	Rounds       int           `json:"rounds"`
	Wins         int           `json:"wins"`
	Fouls        int           `json:"fouls"`
	TooSlow      int           `json:"too_slow"`
	Streak       int           `json:"streak"`
	BestStreak   int           `json:"best_streak"`
	LastReaction time.Duration `json:"last_reaction"`
	BestReaction time.Duration `json:"best_reaction"`
	LastOutcome  duel.Outcome  `json:"last_outcome"`
	LastRoundID  int64         `json:"last_round_id"`
}

// Scoreboard tallies outcomes as the duel reports them. Kept in memory for
// the life of the process only.
type Scoreboard struct {
	duel.NopActuator

	mu      sync.Mutex
	summary Summary
}

// New returns an empty scoreboard
func New() *Scoreboard {
	return &Scoreboard{summary: Summary{LastOutcome: duel.OutcomeNone}}
}

func (s *Scoreboard) SignalOutcome(round duel.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := &s.summary
	if round.ID <= sum.LastRoundID {
		// rounds resolve once; a repeat means a duplicate delivery
		return
	}
	sum.Rounds++
	sum.LastOutcome = round.Outcome
	sum.LastRoundID = round.ID

	switch round.Outcome {
	case duel.OutcomeWin:
		sum.Wins++
		sum.Streak++
		if sum.Streak > sum.BestStreak {
			sum.BestStreak = sum.Streak
		}
		sum.LastReaction = round.ReactionTime
		if sum.BestReaction == 0 || round.ReactionTime < sum.BestReaction {
			sum.BestReaction = round.ReactionTime
		}
	case duel.OutcomeLoseFoul:
		sum.Fouls++
	case duel.OutcomeLoseTooSlow:
		sum.TooSlow++
	}
	if round.Outcome.IsLoss() {
		sum.Streak = 0
	}
}

// Summary returns a copy of the current tallies
func (s *Scoreboard) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}
