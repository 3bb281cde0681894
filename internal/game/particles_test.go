package game

import (
	"math"
	"math/rand"
	"testing"

	"rocket-ragdoll/internal/physics"
)

// TestParticleCap tests emission past the cap is dropped
func TestParticleCap(t *testing.T) {
	ps := NewParticleSystem(10, rand.New(rand.NewSource(1)))
	for i := 0; i < 50; i++ {
		ps.Emit(physics.Vec{}, 0, "#fff")
	}
	if ps.Len() != 10 {
		t.Errorf("Expected 10 particles, got %d", ps.Len())
	}
	ps.Clear()
	if ps.Len() != 0 {
		t.Error("Expected empty system after Clear")
	}
}

// TestParticleExhaustDirection tests puffs travel against the thrust
func TestParticleExhaustDirection(t *testing.T) {
	ps := NewParticleSystem(100, rand.New(rand.NewSource(7)))
	for i := 0; i < 100; i++ {
		ps.Emit(physics.Vec{}, -math.Pi/2, "#fff") // thrust up
	}
	for _, p := range ps.All() {
		if p.VY <= 0 {
			t.Fatalf("Expected exhaust moving down, got vy %v", p.VY)
		}
	}
}

// TestParticleLifetime tests particles expire after their life runs out
func TestParticleLifetime(t *testing.T) {
	ps := NewParticleSystem(10, rand.New(rand.NewSource(1)))
	ps.Emit(physics.Vec{X: 5, Y: 5}, 0, "#fff")
	ps.Update(1.0 / 60)
	if ps.Len() != 1 {
		t.Fatal("Expected particle to survive one tick")
	}
	p := ps.All()[0]
	if p.X >= 5 {
		t.Errorf("Expected particle to move left of the nozzle, got x %v", p.X)
	}
	for i := 0; i < 30; i++ {
		ps.Update(1.0 / 60)
	}
	if ps.Len() != 0 {
		t.Errorf("Expected particle expired, got %d", ps.Len())
	}
}
