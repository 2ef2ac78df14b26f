package client

import (
	"math"
	"time"
)

// BiteState is the bite detector's current phase.
type BiteState int

const (
	// StateIdle means no hook is in the water.
	StateIdle BiteState = iota
	// StateHookDown means the hook is placed but no fish qualifies yet.
	StateHookDown
	// StateCandidateLocked means one fish is the current best match and
	// its hold timer is running.
	StateCandidateLocked
	// StateBiteConfirmed means the hold and the chance gate both passed;
	// the caller should attempt the claim and then call Reset.
	StateBiteConfirmed
)

// BiteCandidate is a fish observed near the hook.
type BiteCandidate struct {
	ID     string
	X, Y   float64
	VX, VY float64
}

// BiteConfig tunes the detector. Zero weights fall back to defaults.
type BiteConfig struct {
	// Radius is the maximum distance from the hook at which a fish can
	// become a candidate.
	Radius float64
	// MaxSpeed is the speed above which the low-speed term scores zero.
	MaxSpeed float64
	// MinHold is how long one fish must stay the best match before the
	// chance gate runs.
	MinHold time.Duration
	// Cooldown blocks a fish from re-candidacy after a failed gate.
	Cooldown time.Duration
	// Chance is the probabilistic gate. It tunes gameplay feel only;
	// possession is granted solely by the server's claim arbitration.
	Chance func() bool

	ProximityWeight float64
	HeadingWeight   float64
	SpeedWeight     float64
}

// BiteDetector decides when an angler's hook gets a bite. It never
// grants possession itself; on BITE_CONFIRMED the caller sends the
// claim request and the server's answer is the only source of truth.
type BiteDetector struct {
	cfg BiteConfig

	state        BiteState
	hookX, hookY float64
	candidateID  string
	lockedAt     time.Time
	cooldowns    map[string]time.Time
}

// NewBiteDetector builds a detector, applying defaults for unset
// config fields.
func NewBiteDetector(cfg BiteConfig) *BiteDetector {
	if cfg.Radius <= 0 {
		cfg.Radius = 80
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = 60
	}
	if cfg.MinHold <= 0 {
		cfg.MinHold = 900 * time.Millisecond
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if cfg.Chance == nil {
		cfg.Chance = func() bool { return true }
	}
	if cfg.ProximityWeight == 0 && cfg.HeadingWeight == 0 && cfg.SpeedWeight == 0 {
		cfg.ProximityWeight = 0.5
		cfg.HeadingWeight = 0.3
		cfg.SpeedWeight = 0.2
	}
	return &BiteDetector{
		cfg:       cfg,
		state:     StateIdle,
		cooldowns: make(map[string]time.Time),
	}
}

// State returns the current phase.
func (d *BiteDetector) State() BiteState {
	return d.state
}

// Candidate returns the locked candidate id, empty when none.
func (d *BiteDetector) Candidate() string {
	return d.candidateID
}

// HookDown places the hook. Any previous phase restarts.
func (d *BiteDetector) HookDown(x, y float64) {
	d.hookX, d.hookY = x, y
	d.state = StateHookDown
	d.candidateID = ""
}

// Reset lifts the hook and returns to idle. Call it after a claim
// attempt, successful or not, and whenever the angler gives up.
func (d *BiteDetector) Reset() {
	d.state = StateIdle
	d.candidateID = ""
}

// Observe feeds one frame of fish positions. When it returns ok the
// detector is in BITE_CONFIRMED and the returned id is the fish to
// claim.
func (d *BiteDetector) Observe(now time.Time, fish []BiteCandidate) (string, bool) {
	switch d.state {
	case StateIdle, StateBiteConfirmed:
		return "", d.state == StateBiteConfirmed
	}

	bestID, bestScore := "", -1.0
	for _, candidate := range fish {
		if until, blocked := d.cooldowns[candidate.ID]; blocked {
			if now.Before(until) {
				continue
			}
			delete(d.cooldowns, candidate.ID)
		}
		score, ok := d.score(candidate)
		if !ok {
			continue
		}
		if score > bestScore {
			bestID, bestScore = candidate.ID, score
		}
	}

	if bestID == "" {
		d.state = StateHookDown
		d.candidateID = ""
		return "", false
	}

	// A different best match restarts the hold timer.
	if bestID != d.candidateID {
		d.candidateID = bestID
		d.lockedAt = now
		d.state = StateCandidateLocked
		return "", false
	}

	if now.Sub(d.lockedAt) < d.cfg.MinHold {
		return "", false
	}

	if !d.cfg.Chance() {
		d.cooldowns[bestID] = now.Add(d.cfg.Cooldown)
		d.candidateID = ""
		d.state = StateHookDown
		return "", false
	}

	d.state = StateBiteConfirmed
	return bestID, true
}

// score rates a fish's likelihood to bite: close to the hook, heading
// toward it, and moving slowly all raise the score. Fish outside the
// radius are ineligible.
func (d *BiteDetector) score(fish BiteCandidate) (float64, bool) {
	dx := d.hookX - fish.X
	dy := d.hookY - fish.Y
	dist := math.Hypot(dx, dy)
	if dist > d.cfg.Radius {
		return 0, false
	}

	proximity := 1 - dist/d.cfg.Radius

	heading := 0.5
	speed := math.Hypot(fish.VX, fish.VY)
	if speed > 0 && dist > 0 {
		// Cosine of the angle between the fish's velocity and the
		// direction to the hook, mapped onto [0, 1].
		cos := (fish.VX*dx + fish.VY*dy) / (speed * dist)
		heading = (cos + 1) / 2
	}

	slowness := 1 - speed/d.cfg.MaxSpeed
	if slowness < 0 {
		slowness = 0
	}

	score := d.cfg.ProximityWeight*proximity +
		d.cfg.HeadingWeight*heading +
		d.cfg.SpeedWeight*slowness
	return score, true
}
