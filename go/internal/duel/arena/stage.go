package arena

import (
	"sync"

	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/rs/zerolog/log"
)

// Stage resets the props between rounds and tracks whether the opponent is up.
type Stage struct {
	duel.NopActuator

	gun    *Gun
	target *Target

	mu              sync.Mutex
	opponentVisible bool
}

// NewStage wires a stage around the given props
func NewStage(gun *Gun, target *Target) *Stage {
	return &Stage{gun: gun, target: target}
}

// Gun returns the stage's gun
func (s *Stage) Gun() *Gun {
	return s.gun
}

// Target returns the stage's target
func (s *Stage) Target() *Target {
	return s.target
}

// SignalRoundStart holsters and reloads the gun and stands the target up.
func (s *Stage) SignalRoundStart(duel.Round) {
	s.gun.Release()
	s.gun.Reload()
	s.target.Reset()
}

func (s *Stage) SetOpponentVisible(_ duel.Round, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opponentVisible = visible
}

// OpponentVisible reports the last visibility the duel asked for
func (s *Stage) OpponentVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opponentVisible
}

// Grab is the player picking up the gun
func (s *Stage) Grab() {
	s.gun.Grab()
}

// Trigger pulls the trigger; false means the magazine was empty
func (s *Stage) Trigger() bool {
	return s.gun.Trigger()
}

// Hit reports a bullet landing on the target. Without a shot fired from the
// held gun there is no bullet, and the target is left standing.
func (s *Stage) Hit() bool {
	if !s.gun.Land() {
		log.Debug().Msg("hit ignored, no shot in flight")
		return false
	}
	return s.target.Strike()
}

// Reload refills the gun
func (s *Stage) Reload() {
	s.gun.Reload()
}
