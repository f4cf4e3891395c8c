package duel

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TimerHandle identifies a scheduled callback. The zero value refers to no timer.
type TimerHandle uuid.UUID

// IsZero reports whether h refers to no timer
func (h TimerHandle) IsZero() bool {
	return uuid.UUID(h) == uuid.Nil
}

func (h TimerHandle) String() string {
	return uuid.UUID(h).String()
}

// Scheduler runs delayed one-shot callbacks that can be cancelled.
type Scheduler interface {
	ScheduleOnce(d time.Duration, fn func()) TimerHandle
	Cancel(h TimerHandle) bool
}

type activeTimer struct {
	timer clockwork.Timer
	done  chan struct{}
}

// ClockScheduler is a Scheduler backed by a clockwork.Clock.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type ClockScheduler struct {
	clock clockwork.Clock

	activeTimers   map[TimerHandle]activeTimer
	activeTimersMu sync.Mutex
}

// NewClockScheduler creates a scheduler driven by clock
func NewClockScheduler(clock clockwork.Clock) *ClockScheduler {
	return &ClockScheduler{
		clock:        clock,
		activeTimers: make(map[TimerHandle]activeTimer),
	}
}

// ScheduleOnce arranges for fn to run on its own goroutine after d.
// A timer cancelled before its goroutine claims it never runs fn.
func (s *ClockScheduler) ScheduleOnce(d time.Duration, fn func()) TimerHandle {
	h := TimerHandle(uuid.New())
	t := s.clock.NewTimer(d)
	done := make(chan struct{})

	s.activeTimersMu.Lock()
	s.activeTimers[h] = activeTimer{timer: t, done: done}
	s.activeTimersMu.Unlock()

	go func() {
		select {
		case <-t.Chan():
			if !s.claim(h) {
				return
			}
			fn()
		case <-done:
		}
	}()

	log.Debug().
		Str("timer", h.String()).
		Dur("duration", d).
		Msg("scheduled one-shot timer")

	return h
}

// Cancel stops a pending timer. It returns false if the timer already fired,
// was already cancelled, or never existed.
func (s *ClockScheduler) Cancel(h TimerHandle) bool {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	at, exists := s.activeTimers[h]
	if !exists {
		return false
	}
	delete(s.activeTimers, h)
	stopAndDrainTimer(at.timer)
	close(at.done)

	log.Debug().Str("timer", h.String()).Msg("cancelled timer")
	return true
}

// CancelAll stops every pending timer
func (s *ClockScheduler) CancelAll() {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	for h, at := range s.activeTimers {
		stopAndDrainTimer(at.timer)
		close(at.done)
		log.Debug().Str("timer", h.String()).Msg("cancelled timer on shutdown")
	}
	s.activeTimers = make(map[TimerHandle]activeTimer)
}

// Pending returns the number of timers that have neither fired nor been cancelled
func (s *ClockScheduler) Pending() int {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	return len(s.activeTimers)
}

// claim removes a fired timer from the active set; false means it lost a race with Cancel
func (s *ClockScheduler) claim(h TimerHandle) bool {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if _, exists := s.activeTimers[h]; !exists {
		return false
	}
	delete(s.activeTimers, h)
	return true
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
