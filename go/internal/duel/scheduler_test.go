package duel

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitFor(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", within)
}

func TestClockSchedulerFiresAfterDelay(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewClockScheduler(fc)

	fired := make(chan struct{}, 1)
	h := s.ScheduleOnce(2*time.Second, func() { fired <- struct{}{} })
	if h.IsZero() {
		t.Fatalf("expected a non-zero handle")
	}

	fc.Advance(time.Second)
	select {
	case <-fired:
		t.Fatalf("fired before its deadline")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Advance(time.Second)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for timer")
	}

	waitFor(t, time.Second, func() bool { return s.Pending() == 0 })
	if s.Cancel(h) {
		t.Fatalf("cancel after firing should report false")
	}
}

func TestClockSchedulerCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewClockScheduler(fc)

	var calls atomic.Int32
	h := s.ScheduleOnce(time.Second, func() { calls.Add(1) })

	if !s.Cancel(h) {
		t.Fatalf("expected pending timer to cancel")
	}
	if s.Cancel(h) {
		t.Fatalf("second cancel should report false")
	}
	if s.Cancel(TimerHandle{}) {
		t.Fatalf("cancelling the zero handle should report false")
	}

	fc.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("cancelled timer ran its callback")
	}
}

func TestClockSchedulerCancelAll(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewClockScheduler(fc)

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		s.ScheduleOnce(time.Duration(i+1)*time.Second, func() { calls.Add(1) })
	}
	if s.Pending() != 5 {
		t.Fatalf("expected 5 pending, got %d", s.Pending())
	}

	s.CancelAll()
	fc.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)

	if s.Pending() != 0 || calls.Load() != 0 {
		t.Fatalf("expected nothing pending or fired, got pending=%d calls=%d", s.Pending(), calls.Load())
	}
}

func TestEmitter(t *testing.T) {
	var e Emitter
	var a, b atomic.Int32

	unsubA := e.Subscribe(func() { a.Add(1) })
	e.Subscribe(func() { b.Add(1) })

	e.Emit()
	unsubA()
	unsubA()
	e.Emit()

	if a.Load() != 1 || b.Load() != 2 {
		t.Fatalf("unexpected call counts a=%d b=%d", a.Load(), b.Load())
	}
	if e.Listeners() != 1 {
		t.Fatalf("expected one listener, got %d", e.Listeners())
	}
}

func TestEmitterHandlerMayUnsubscribeItself(t *testing.T) {
	var e Emitter
	var calls atomic.Int32
	var unsub func()
	unsub = e.Subscribe(func() {
		calls.Add(1)
		unsub()
	})

	e.Emit()
	e.Emit()

	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}
