package publisher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/events"
)

type fakePublisher struct {
	ch       chan events.Envelope
	failures chan int64
	fail     atomic.Bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		ch:       make(chan events.Envelope, 16),
		failures: make(chan int64, 16),
	}
}

func (f *fakePublisher) Publish(_ context.Context, env events.Envelope) error {
	if f.fail.Load() {
		f.failures <- env.RoundID
		return errors.New("bus down")
	}
	f.ch <- env
	return nil
}

func recvEnvelope(t *testing.T, ch <-chan events.Envelope, within time.Duration) events.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for published event")
		return events.Envelope{}
	}
}

func TestActuatorPublishesInOrder(t *testing.T) {
	pub := newFakePublisher()
	a := NewActuator(pub, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	r := duel.Round{ID: 1, Phase: duel.PhaseWaiting, StartedAt: t0, WaitTime: 3 * time.Second}
	a.SetOpponentVisible(r, true)
	a.SignalRoundStart(r)
	r.Phase, r.DrawAt = duel.PhaseReadyToDraw, t0.Add(3*time.Second)
	a.SignalReady(r)
	r.Phase, r.Outcome, r.ResolvedAt = duel.PhaseResolved, duel.OutcomeLoseTooSlow, t0.Add(4500*time.Millisecond)
	a.SignalOutcome(r)

	var got []events.EventType
	for i := 0; i < 4; i++ {
		env := recvEnvelope(t, pub.ch, time.Second)
		if env.RoundID != 1 {
			t.Fatalf("expected round 1, got %d", env.RoundID)
		}
		got = append(got, env.EventType)
	}

	want := []events.EventType{
		events.EventTypeOpponentVisibility,
		events.EventTypeRoundStarted,
		events.EventTypeDrawSignaled,
		events.EventTypeRoundResolved,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestActuatorDropsWhenQueueFull(t *testing.T) {
	pub := newFakePublisher()
	a := NewActuator(pub, 1)

	r := duel.Round{ID: 4}
	a.SignalRoundStart(r)
	a.SignalRoundStart(r)
	a.SignalRoundStart(r)

	if _, dropped := a.Stats(); dropped != 2 {
		t.Fatalf("expected 2 dropped events, got %d", dropped)
	}
}

func TestActuatorSurvivesPublishErrors(t *testing.T) {
	pub := newFakePublisher()
	pub.fail.Store(true)
	a := NewActuator(pub, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	a.SignalReady(duel.Round{ID: 1})
	select {
	case <-pub.failures:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the failed publish")
	}
	pub.fail.Store(false)
	a.SignalReady(duel.Round{ID: 2})

	env := recvEnvelope(t, pub.ch, time.Second)
	if env.RoundID != 2 {
		t.Fatalf("expected the event after the failure, got round %d", env.RoundID)
	}
	deadline := time.Now().Add(time.Second)
	for {
		published, _ := a.Stats()
		if published == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 published, got %d", published)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestActuatorDrainsQueueOnShutdown(t *testing.T) {
	pub := newFakePublisher()
	a := NewActuator(pub, 8)

	// Queued before Run ever sees them; ctx is already done.
	a.SignalReady(duel.Round{ID: 7})
	a.SignalOutcome(duel.Round{ID: 7, Outcome: duel.OutcomeWin})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []events.EventType
	for i := 0; i < 2; i++ {
		got = append(got, recvEnvelope(t, pub.ch, time.Second).EventType)
	}
	want := []events.EventType{events.EventTypeDrawSignaled, events.EventTypeRoundResolved}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("drained events mismatch (-want +got):\n%s", diff)
	}
	if published, dropped := a.Stats(); published != 2 || dropped != 0 {
		t.Fatalf("expected 2 published and none dropped, got %d/%d", published, dropped)
	}
}
