// Package arena holds the player's props: the holstered gun whose grab is the
// restricted action, and the opponent's target whose strike wins the draw.
// Bullet flight is the host's business; the host calls Target.Strike when a
// shot lands.
package arena

import (
	"sync"

	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/rs/zerolog/log"
)

// DefaultMaxAmmo is the size of a full magazine
const DefaultMaxAmmo = 6

// Gun is the player's revolver
type Gun struct {
	mu       sync.Mutex
	maxAmmo  int
	ammo     int
	held     bool
	inFlight bool // a fired shot has not landed yet

	grabbed duel.Emitter
}

// NewGun returns a loaded gun. A non-positive maxAmmo means DefaultMaxAmmo.
func NewGun(maxAmmo int) *Gun {
	if maxAmmo <= 0 {
		maxAmmo = DefaultMaxAmmo
	}
	return &Gun{maxAmmo: maxAmmo, ammo: maxAmmo}
}

// Grabbed fires every time the player picks the gun up
func (g *Gun) Grabbed() duel.Signal {
	return &g.grabbed
}

// Grab picks the gun up
func (g *Gun) Grab() {
	g.mu.Lock()
	g.held = true
	g.mu.Unlock()

	log.Debug().Msg("gun grabbed")
	g.grabbed.Emit()
}

// Release puts the gun back in the holster
func (g *Gun) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
	g.inFlight = false
}

// Held reports whether the player is holding the gun
func (g *Gun) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Trigger fires one round. It returns false on an empty magazine.
func (g *Gun) Trigger() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ammo == 0 {
		log.Debug().Msg("dry fire, magazine empty")
		return false
	}
	g.ammo--
	g.inFlight = g.held
	log.Debug().Int("ammo", g.ammo).Bool("held", g.held).Msg("shot fired")
	return true
}

// Land consumes the shot in flight. It returns false if the gun is not held
// or nothing was fired since the last landing.
func (g *Gun) Land() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held || !g.inFlight {
		return false
	}
	g.inFlight = false
	return true
}

// Reload refills the magazine
func (g *Gun) Reload() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ammo = g.maxAmmo
}

// Ammo returns the rounds left in the magazine
func (g *Gun) Ammo() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ammo
}

// Target is the opponent's hit box. It goes down on the first strike.
type Target struct {
	mu     sync.Mutex
	active bool

	struck duel.Emitter
}

// NewTarget returns a standing target
func NewTarget() *Target {
	return &Target{active: true}
}

// Struck fires when a standing target is hit
func (t *Target) Struck() duel.Signal {
	return &t.struck
}

// Strike registers a bullet hit. Only the first hit on a standing target counts.
func (t *Target) Strike() bool {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return false
	}
	t.active = false
	t.mu.Unlock()

	log.Debug().Msg("target struck")
	t.struck.Emit()
	return true
}

// Reset stands the target back up
func (t *Target) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
}

// Active reports whether the target is standing
func (t *Target) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
