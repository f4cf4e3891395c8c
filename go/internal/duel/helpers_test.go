package duel

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type callKind string

const (
	callRoundStart callKind = "round_start"
	callReady      callKind = "ready"
	callOutcome    callKind = "outcome"
	callVisible    callKind = "visible"
)

type call struct {
	kind    callKind
	round   Round
	visible bool
}

// recordingActuator keeps every call and mirrors it onto a channel
type recordingActuator struct {
	mu    sync.Mutex
	calls []call
	ch    chan call
}

func newRecordingActuator() *recordingActuator {
	return &recordingActuator{ch: make(chan call, 256)}
}

func (r *recordingActuator) record(c call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	select {
	case r.ch <- c:
	default:
	}
}

func (r *recordingActuator) SignalRoundStart(round Round) {
	r.record(call{kind: callRoundStart, round: round})
}

func (r *recordingActuator) SignalReady(round Round) {
	r.record(call{kind: callReady, round: round})
}

func (r *recordingActuator) SignalOutcome(round Round) {
	r.record(call{kind: callOutcome, round: round})
}

func (r *recordingActuator) SetOpponentVisible(round Round, visible bool) {
	r.record(call{kind: callVisible, round: round, visible: visible})
}

func (r *recordingActuator) count(kind callKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingActuator) outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Outcome
	for _, c := range r.calls {
		if c.kind == callOutcome {
			out = append(out, c.round.Outcome)
		}
	}
	return out
}

// expectCall receives calls until one of the wanted kind shows up, so tests never hang
func expectCall(t *testing.T, r *recordingActuator, kind callKind, within time.Duration) call {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case c := <-r.ch:
			if c.kind == kind {
				return c
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s call", kind)
			return call{}
		}
	}
}

// expectNoCall fails if a call of kind arrives within the window
func expectNoCall(t *testing.T, r *recordingActuator, kind callKind, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case c := <-r.ch:
			if c.kind == kind {
				t.Fatalf("expected no %s call within %v, got round %d %+v", kind, within, c.round.ID, c.round)
			}
		case <-deadline:
			return
		}
	}
}

type scheduled struct {
	d         time.Duration
	fn        func()
	cancelled bool
}

// manualScheduler only runs callbacks when a test fires them
type manualScheduler struct {
	mu     sync.Mutex
	timers map[TimerHandle]*scheduled
	order  []TimerHandle
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{timers: make(map[TimerHandle]*scheduled)}
}

func (m *manualScheduler) ScheduleOnce(d time.Duration, fn func()) TimerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := TimerHandle(uuid.New())
	m.timers[h] = &scheduled{d: d, fn: fn}
	m.order = append(m.order, h)
	return h
}

func (m *manualScheduler) Cancel(h TimerHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.timers[h]
	if !ok || s.cancelled {
		return false
	}
	s.cancelled = true
	return true
}

// last returns the most recently scheduled timer
func (m *manualScheduler) last(t *testing.T) (TimerHandle, *scheduled) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		t.Fatalf("no timer scheduled")
	}
	h := m.order[len(m.order)-1]
	return h, m.timers[h]
}

// fire runs the callback even if it was cancelled, which is how a late timer behaves
func (m *manualScheduler) fire(h TimerHandle) {
	m.mu.Lock()
	s := m.timers[h]
	m.mu.Unlock()
	s.fn()
}

func (m *manualScheduler) isCancelled(h TimerHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[h].cancelled
}

func testConfig() Config {
	return Config{
		MinWait:        3 * time.Second,
		MaxWait:        3 * time.Second,
		ReactionWindow: 1500 * time.Millisecond,
		ResetDelay:     4 * time.Second,
	}
}

func newManualCoordinator(t *testing.T, cfg Config) (*Coordinator, *manualScheduler, *recordingActuator) {
	t.Helper()
	sched := newManualScheduler()
	act := newRecordingActuator()
	c, err := NewCoordinator(cfg, Deps{Scheduler: sched, Actuator: act}, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, sched, act
}
