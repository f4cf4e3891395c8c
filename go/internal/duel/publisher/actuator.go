package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/events"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize = 64
	publishTimeout   = 5 * time.Second
	drainTimeout     = 2 * time.Second
)

// Actuator turns duel side effects into bus events. Calls only enqueue; Run
// does the publishing so the coordinator never waits on the network.
type Actuator struct {
	publisher EventPublisher
	queue     chan events.Envelope

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewActuator creates an actuator with room for queueSize pending events
func NewActuator(publisher EventPublisher, queueSize int) *Actuator {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Actuator{
		publisher: publisher,
		queue:     make(chan events.Envelope, queueSize),
	}
}

func (a *Actuator) SignalRoundStart(round duel.Round) {
	a.enqueue(events.RoundStarted(round))
}

func (a *Actuator) SignalReady(round duel.Round) {
	a.enqueue(events.DrawSignaled(round))
}

func (a *Actuator) SignalOutcome(round duel.Round) {
	a.enqueue(events.RoundResolved(round))
}

func (a *Actuator) SetOpponentVisible(round duel.Round, visible bool) {
	a.enqueue(events.OpponentVisibility(round, visible))
}

func (a *Actuator) enqueue(env events.Envelope, err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to build duel event")
		return
	}
	select {
	case a.queue <- env:
	default:
		a.dropped.Add(1)
		log.Warn().
			Str("event_type", string(env.EventType)).
			Int64("round_id", env.RoundID).
			Msg("event queue full, dropping event")
	}
}

// Run publishes queued events until ctx is cancelled. Events still queued at
// that point get up to drainTimeout to go out, so the final outcome is not lost.
func (a *Actuator) Run(ctx context.Context) error {
	log.Info().Msg("duel event publisher started")
	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case env := <-a.queue:
			if ctx.Err() != nil {
				a.shutdown(env)
				return nil
			}
			a.publish(ctx, env)
		}
	}
}

func (a *Actuator) shutdown(pending ...events.Envelope) {
	a.drain(drainTimeout, pending)
	log.Info().
		Uint64("published", a.published.Load()).
		Uint64("dropped", a.dropped.Load()).
		Msg("duel event publisher shutting down")
}

// drain publishes pending and then whatever is still queued, on a fresh
// deadline since the run context is already done.
func (a *Actuator) drain(timeout time.Duration, pending []events.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, env := range pending {
		a.publish(ctx, env)
	}
	for {
		select {
		case env := <-a.queue:
			if ctx.Err() != nil {
				a.dropped.Add(1)
				continue
			}
			a.publish(ctx, env)
		default:
			return
		}
	}
}

func (a *Actuator) publish(ctx context.Context, env events.Envelope) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.publisher.Publish(pubCtx, env); err != nil {
		log.Error().
			Err(err).
			Str("event_id", env.EventID).
			Str("event_type", string(env.EventType)).
			Msg("failed to publish duel event")
		return
	}
	a.published.Add(1)
}

// Stats returns how many events were published and dropped
func (a *Actuator) Stats() (published, dropped uint64) {
	return a.published.Load(), a.dropped.Load()
}
