package game

import (
	"math"
	"math/rand"

	"rocket-ragdoll/internal/physics"
)

// Particle is one exhaust puff
type Particle struct {
	X, Y   float64
	VX, VY float64
	Color  string
	Life   float64 // 1 at birth, removed at 0
}

// exhaust colors by limb
var exhaustColors = [limbCount]string{
	LimbHead:     "#ffd166",
	LimbLeftArm:  "#ef476f",
	LimbRightArm: "#ef476f",
	LimbLeftLeg:  "#f78c6b",
	LimbRightLeg: "#f78c6b",
}

const (
	exhaustSpeed  = 240.0 // px/s
	exhaustSpread = 0.35  // radians either side of the nozzle axis
	exhaustDecay  = 0.04  // life lost per tick
)

// ParticleSystem holds exhaust particles under a hard cap
type ParticleSystem struct {
	particles []*Particle
	max       int
	rng       *rand.Rand
}

// NewParticleSystem creates an empty system
func NewParticleSystem(max int, rng *rand.Rand) *ParticleSystem {
	return &ParticleSystem{particles: make([]*Particle, 0, max), max: max, rng: rng}
}

// Emit spawns a puff at the emission point, travelling against the thrust direction
func (ps *ParticleSystem) Emit(at physics.Vec, thrustAngle float64, color string) {
	// HARD CAP: excess particles are dropped
	if len(ps.particles) >= ps.max {
		return
	}
	angle := thrustAngle + math.Pi + (ps.rng.Float64()*2-1)*exhaustSpread
	speed := exhaustSpeed * (0.5 + ps.rng.Float64())
	ps.particles = append(ps.particles, &Particle{
		X:     at.X,
		Y:     at.Y,
		VX:    math.Cos(angle) * speed,
		VY:    math.Sin(angle) * speed,
		Color: color,
		Life:  1,
	})
}

// EmitFor spawns exhaust for every thruster that fired this tick
func (ps *ParticleSystem) EmitFor(ts *Thrusters, r *Ragdoll) {
	for _, l := range ThrustLimbs {
		t := ts.Get(l)
		body := r.Body(l)
		if t == nil || body == nil || !t.Firing() {
			continue
		}
		ps.Emit(t.EmissionPoint(body), body.Angle()+t.Spec().DirectionAngle, exhaustColors[l])
	}
}

// Update moves particles and drops dead ones in place
func (ps *ParticleSystem) Update(dt float64) {
	n := 0
	for _, p := range ps.particles {
		p.X += p.VX * dt
		p.Y += p.VY * dt
		p.Life -= exhaustDecay
		if p.Life > 0 {
			ps.particles[n] = p
			n++
		}
	}
	ps.particles = ps.particles[:n]
}

// Clear drops every particle
func (ps *ParticleSystem) Clear() { ps.particles = ps.particles[:0] }

// Len returns the live particle count
func (ps *ParticleSystem) Len() int { return len(ps.particles) }

// All returns the live particles; the slice is reused by Update
func (ps *ParticleSystem) All() []*Particle { return ps.particles }
