package gateway

import (
	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/events"
	"github.com/rs/zerolog/log"
)

// Broadcaster pushes duel side effects to every connected client
type Broadcaster struct {
	cm *ConnectionManager
}

func NewBroadcaster(cm *ConnectionManager) *Broadcaster {
	return &Broadcaster{cm: cm}
}

func (b *Broadcaster) SignalRoundStart(round duel.Round) {
	b.send(events.RoundStarted(round))
}

func (b *Broadcaster) SignalReady(round duel.Round) {
	b.send(events.DrawSignaled(round))
}

func (b *Broadcaster) SignalOutcome(round duel.Round) {
	b.send(events.RoundResolved(round))
}

func (b *Broadcaster) SetOpponentVisible(round duel.Round, visible bool) {
	b.send(events.OpponentVisibility(round, visible))
}

func (b *Broadcaster) send(env events.Envelope, err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to build duel event for broadcast")
		return
	}
	b.cm.Broadcast(env)
}
