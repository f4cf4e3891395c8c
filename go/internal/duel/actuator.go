package duel

import (
	"github.com/rs/zerolog/log"
)

// Actuator receives the fire-and-forget side effects of the duel: cues,
// outcome sounds, opponent visibility. Calls arrive while the coordinator
// holds its lock, so implementations must not block or call back into it.
type Actuator interface {
	SignalRoundStart(round Round)
	SignalReady(round Round)
	SignalOutcome(round Round)
	SetOpponentVisible(round Round, visible bool)
}

// NopActuator ignores every call. Embed it to implement part of Actuator.
type NopActuator struct{}

func (NopActuator) SignalRoundStart(Round)         {}
func (NopActuator) SignalReady(Round)              {}
func (NopActuator) SignalOutcome(Round)            {}
func (NopActuator) SetOpponentVisible(Round, bool) {}

// Actuators fans every call out to each element in order
type Actuators []Actuator

func (a Actuators) SignalRoundStart(round Round) {
	for _, act := range a {
		act.SignalRoundStart(round)
	}
}

func (a Actuators) SignalReady(round Round) {
	for _, act := range a {
		act.SignalReady(round)
	}
}

func (a Actuators) SignalOutcome(round Round) {
	for _, act := range a {
		act.SignalOutcome(round)
	}
}

func (a Actuators) SetOpponentVisible(round Round, visible bool) {
	for _, act := range a {
		act.SetOpponentVisible(round, visible)
	}
}

// LogActuator narrates the duel on the global logger
type LogActuator struct{}

func (LogActuator) SignalRoundStart(round Round) {
	log.Info().
		Int64("round_id", round.ID).
		Dur("wait", round.WaitTime).
		Msg("waiting for the signal, don't grab")
}

func (LogActuator) SignalReady(round Round) {
	log.Info().Int64("round_id", round.ID).Msg("DRAW!")
}

func (LogActuator) SignalOutcome(round Round) {
	ev := log.Info().
		Int64("round_id", round.ID).
		Str("outcome", string(round.Outcome))

	switch round.Outcome {
	case OutcomeWin:
		ev.Dur("reaction", round.ReactionTime).Msg("you win, next round")
	case OutcomeLoseFoul:
		ev.Msg("foul, grabbed too early")
	case OutcomeLoseTooSlow:
		ev.Msg("too slow, you were shot")
	default:
		ev.Msg("round resolved")
	}
}

func (LogActuator) SetOpponentVisible(round Round, visible bool) {
	log.Debug().
		Int64("round_id", round.ID).
		Bool("visible", visible).
		Msg("opponent visibility changed")
}
