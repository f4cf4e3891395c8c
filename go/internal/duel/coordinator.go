package duel

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators a Coordinator calls out to but does not own.
type Deps struct {
	// Scheduler runs the go, countdown and reset timers. Defaults to a
	// ClockScheduler on Clock.
	Scheduler Scheduler
	// Actuator receives cues and outcomes. Defaults to NopActuator.
	Actuator Actuator
	// Clock stamps round transitions. Defaults to the real clock.
	Clock clockwork.Clock

	// PrematureAction fires when the player performs the restricted action.
	PrematureAction Signal
	// TargetResolved fires when the player's shot lands.
	TargetResolved Signal
}

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithRand sets the source used to sample wait times
func WithRand(r *rand.Rand) Option {
	return func(c *Coordinator) {
		c.rng = r
	}
}

// Coordinator owns the duel phase state machine. Every read and write of the
// current round happens under mu; timer callbacks and external events may
// arrive on any goroutine.
type Coordinator struct {
	cfg   Config
	sched Scheduler
	owned *ClockScheduler // set when sched was created here
	act   Actuator
	clock clockwork.Clock
	rng   *rand.Rand

	mu      sync.Mutex
	round   Round
	started bool
	closed  bool

	goTimer   TimerHandle
	countdown TimerHandle
	reset     TimerHandle

	unsubscribe []func()
}

// NewCoordinator validates cfg and subscribes to the event sources in deps.
// The first round does not begin until Start.
func NewCoordinator(cfg Config, deps Deps, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:   cfg,
		sched: deps.Scheduler,
		act:   deps.Actuator,
		clock: deps.Clock,
		round: Round{Phase: PhaseIdle, Outcome: OutcomeNone},
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.sched == nil {
		c.owned = NewClockScheduler(c.clock)
		c.sched = c.owned
	}
	if c.act == nil {
		c.act = NopActuator{}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if deps.PrematureAction != nil {
		c.unsubscribe = append(c.unsubscribe, deps.PrematureAction.Subscribe(c.OnPrematureAction))
	}
	if deps.TargetResolved != nil {
		c.unsubscribe = append(c.unsubscribe, deps.TargetResolved.Subscribe(c.OnTargetResolved))
	}

	return c, nil
}

// Config returns the timing configuration the coordinator was built with
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Round returns a snapshot of the current round
func (c *Coordinator) Round() Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// Start begins the first round.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	log.Info().
		Dur("min_wait", c.cfg.MinWait).
		Dur("max_wait", c.cfg.MaxWait).
		Dur("reaction_window", c.cfg.ReactionWindow).
		Dur("reset_delay", c.cfg.ResetDelay).
		Msg("duel started")

	c.startRoundLocked()
	return nil
}

// Run starts the duel and keeps it going until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return fmt.Errorf("start duel: %w", err)
	}
	<-ctx.Done()
	return c.Close()
}

// Close deregisters from the event sources and cancels any pending timer.
// It is safe to call more than once.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelTimersLocked(&c.goTimer, &c.countdown, &c.reset)
	if c.owned != nil {
		c.owned.CancelAll()
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	roundID := c.round.ID
	c.mu.Unlock()

	// Outside the lock: an Emit in flight may be waiting on mu.
	for _, unsub := range unsubscribe {
		unsub()
	}

	log.Info().Int64("round_id", roundID).Msg("duel coordinator closed")
	return nil
}

// OnPrematureAction handles the restricted action (grabbing the gun). It is a
// foul only while waiting for the go signal; once the draw is on the gun is
// legitimately in use and the event is ignored.
func (c *Coordinator) OnPrematureAction() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.round.Phase {
	case PhaseWaiting:
		c.resolveLocked(OutcomeLoseFoul)
	default:
		log.Debug().
			Int64("round_id", c.round.ID).
			Str("phase", string(c.round.Phase)).
			Msg("premature action ignored outside waiting phase")
	}
}

// OnTargetResolved handles the player's shot landing. Only valid while the
// opponent countdown is running.
func (c *Coordinator) OnTargetResolved() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round.Phase != PhaseReadyToDraw {
		log.Debug().
			Int64("round_id", c.round.ID).
			Str("phase", string(c.round.Phase)).
			Msg("target resolved ignored outside draw phase")
		return
	}
	c.resolveLocked(OutcomeWin)
}

// startRoundLocked replaces the current round with a fresh one in the waiting phase.
func (c *Coordinator) startRoundLocked() {
	c.reset = TimerHandle{}
	c.round = Round{
		ID:        c.round.ID + 1,
		Phase:     PhaseWaiting,
		Outcome:   OutcomeNone,
		WaitTime:  c.sampleWaitLocked(),
		StartedAt: c.clock.Now(),
	}

	c.goTimer = c.scheduleLocked(c.round.WaitTime, PhaseWaiting, c.drawLocked)

	log.Info().
		Int64("round_id", c.round.ID).
		Dur("wait", c.round.WaitTime).
		Msg("round started")

	c.act.SetOpponentVisible(c.round, true)
	c.act.SignalRoundStart(c.round)
}

// drawLocked fires the go signal and starts the opponent countdown.
func (c *Coordinator) drawLocked() {
	c.goTimer = TimerHandle{}
	c.round.Phase = PhaseReadyToDraw
	c.round.DrawAt = c.clock.Now()

	c.countdown = c.scheduleLocked(c.cfg.ReactionWindow, PhaseReadyToDraw, func() {
		c.countdown = TimerHandle{}
		c.resolveLocked(OutcomeLoseTooSlow)
	})

	log.Info().
		Int64("round_id", c.round.ID).
		Dur("reaction_window", c.cfg.ReactionWindow).
		Msg("go signal, opponent drawing")

	c.act.SignalReady(c.round)
}

// resolveLocked records the terminal outcome of the round. The first caller
// wins; a second call for the same round means the guard was bypassed.
func (c *Coordinator) resolveLocked(outcome Outcome) bool {
	if c.round.Resolved {
		log.Error().
			Int64("round_id", c.round.ID).
			Str("outcome", string(c.round.Outcome)).
			Str("rejected_outcome", string(outcome)).
			Msg("invariant violation: round already resolved")
		return false
	}

	now := c.clock.Now()
	c.round.Resolved = true
	c.round.Phase = PhaseResolved
	c.round.Outcome = outcome
	c.round.ResolvedAt = now
	if outcome != OutcomeLoseFoul && !c.round.DrawAt.IsZero() {
		c.round.ReactionTime = now.Sub(c.round.DrawAt)
	}

	c.cancelTimersLocked(&c.goTimer, &c.countdown)

	log.Info().
		Int64("round_id", c.round.ID).
		Str("outcome", string(outcome)).
		Dur("reaction", c.round.ReactionTime).
		Msg("round resolved")

	if outcome == OutcomeWin {
		c.act.SetOpponentVisible(c.round, false)
	}
	c.act.SignalOutcome(c.round)

	c.reset = c.scheduleLocked(c.cfg.ResetDelay, PhaseResolved, c.startRoundLocked)
	return true
}

// scheduleLocked schedules fn to run under mu after d, provided the round that
// scheduled it is still current and still in phase.
func (c *Coordinator) scheduleLocked(d time.Duration, phase Phase, fn func()) TimerHandle {
	roundID := c.round.ID
	return c.sched.ScheduleOnce(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed || c.round.ID != roundID || c.round.Phase != phase {
			log.Debug().
				Int64("timer_round_id", roundID).
				Str("timer_phase", string(phase)).
				Int64("round_id", c.round.ID).
				Str("phase", string(c.round.Phase)).
				Bool("closed", c.closed).
				Msg("stale timer dropped")
			return
		}
		fn()
	})
}

func (c *Coordinator) cancelTimersLocked(handles ...*TimerHandle) {
	for _, h := range handles {
		if h.IsZero() {
			continue
		}
		c.sched.Cancel(*h)
		*h = TimerHandle{}
	}
}

// sampleWaitLocked draws uniformly from [MinWait, MaxWait] so the go signal
// cannot be anticipated.
func (c *Coordinator) sampleWaitLocked() time.Duration {
	span := int64(c.cfg.MaxWait - c.cfg.MinWait)
	return c.cfg.MinWait + time.Duration(c.rng.Int64N(span+1))
}
