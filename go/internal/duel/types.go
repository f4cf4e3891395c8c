package duel

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig  = errors.New("invalid duel config")
	ErrAlreadyStarted = errors.New("duel already started")
	ErrClosed         = errors.New("duel coordinator closed")
)

// Phase is the position of a round in the wait/draw/resolve cycle
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseWaiting     Phase = "waiting"
	PhaseReadyToDraw Phase = "ready_to_draw"
	PhaseResolved    Phase = "resolved"
)

// Outcome is the terminal result of a round
type Outcome string

const (
	OutcomeNone        Outcome = "none"
	OutcomeWin         Outcome = "win"
	OutcomeLoseFoul    Outcome = "lose_foul"
	OutcomeLoseTooSlow Outcome = "lose_too_slow"
)

// IsLoss reports whether the outcome is one of the losing results
func (o Outcome) IsLoss() bool {
	return o == OutcomeLoseFoul || o == OutcomeLoseTooSlow
}

// Round is a snapshot of one play-through.
type Round struct {
	ID           int64         `json:"round_id"`
	Phase        Phase         `json:"phase"`
	Resolved     bool          `json:"resolved"`
	Outcome      Outcome       `json:"outcome"`
	WaitTime     time.Duration `json:"wait_time"`
	StartedAt    time.Time     `json:"started_at"`
	DrawAt       time.Time     `json:"draw_at"`
	ResolvedAt   time.Time     `json:"resolved_at"`
	ReactionTime time.Duration `json:"reaction_time"`
}

// Config holds the timing options of a duel. It is read-only once the
// coordinator is built.
type Config struct {
	MinWait        time.Duration
	MaxWait        time.Duration
	ReactionWindow time.Duration
	ResetDelay     time.Duration
}

// DefaultConfig returns the stock timings: 3-8s wait, 1.5s to shoot, 4s between rounds.
func DefaultConfig() Config {
	return Config{
		MinWait:        3 * time.Second,
		MaxWait:        8 * time.Second,
		ReactionWindow: 1500 * time.Millisecond,
		ResetDelay:     4 * time.Second,
	}
}

// Validate rejects non-positive durations and an inverted wait range
func (c Config) Validate() error {
	fields := []struct {
		name string
		d    time.Duration
	}{
		{"min wait", c.MinWait},
		{"max wait", c.MaxWait},
		{"reaction window", c.ReactionWindow},
		{"reset delay", c.ResetDelay},
	}
	for _, f := range fields {
		if f.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, f.name, f.d)
		}
	}
	if c.MinWait > c.MaxWait {
		return fmt.Errorf("%w: min wait %s exceeds max wait %s", ErrInvalidConfig, c.MinWait, c.MaxWait)
	}
	return nil
}
