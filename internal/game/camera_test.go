package game

import (
	"math"
	"testing"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// TestCameraFollowSmoothing tests one smoothing step and the lookahead bias
func TestCameraFollowSmoothing(t *testing.T) {
	c := NewCamera(config.DefaultCamera(), 1280, 720)
	c.Follow(physics.Vec{X: 100, Y: -50})
	if got := c.Position(); !nearVec(got, physics.Vec{X: 10, Y: -5}, 1e-9) {
		t.Errorf("Expected (10,-5), got %v", got)
	}

	c.Snap(physics.Vec{})
	c.FollowWithLookahead(physics.Vec{}, physics.Vec{X: 1000})
	if got := c.Position(); !near(got.X, 30, 1e-9) {
		t.Errorf("Expected lookahead x 30, got %v", got.X)
	}

	c.Follow(physics.Vec{X: math.NaN()})
	if got := c.Position(); math.IsNaN(got.X) {
		t.Error("Expected NaN target to be ignored")
	}
}

// TestCameraZoomClamp tests the [0.5, 2] range
func TestCameraZoomClamp(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		want  float64
	}{
		{"scroll down zooms out", 100, 0.9},
		{"far out clamps", 1e6, 0.5},
		{"far in clamps", -1e6, 2},
		{"nan ignored", math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera(config.DefaultCamera(), 1280, 720)
			c.AdjustZoom(tt.delta)
			if !near(c.Scale(), tt.want, 1e-9) {
				t.Errorf("Expected scale %v, got %v", tt.want, c.Scale())
			}
		})
	}
}

// TestCameraTransforms tests the world/screen mapping at zoom 2
func TestCameraTransforms(t *testing.T) {
	c := NewCamera(config.DefaultCamera(), 1280, 720)
	c.Snap(physics.Vec{X: 100, Y: 100})
	c.SetZoom(2)

	if got := c.WorldToScreen(physics.Vec{X: 100, Y: 100}); !nearVec(got, physics.Vec{X: 640, Y: 360}, 1e-9) {
		t.Errorf("Expected camera center at screen center, got %v", got)
	}
	if got := c.WorldToScreen(physics.Vec{X: 110, Y: 90}); !nearVec(got, physics.Vec{X: 660, Y: 340}, 1e-9) {
		t.Errorf("Expected (660,340), got %v", got)
	}
	p := physics.Vec{X: -321.5, Y: 987.25}
	if got := c.ScreenToWorld(c.WorldToScreen(p)); !nearVec(got, p, 1e-9) {
		t.Errorf("Expected inverse mapping to return %v, got %v", p, got)
	}

	view := c.ViewBounds()
	if !near(view.MaxX-view.MinX, 640, 1e-9) || !view.Contains(physics.Vec{X: 100, Y: 100}) {
		t.Errorf("Unexpected view bounds %+v", view)
	}
}

// TestCameraBoundsClamp tests clamping with margin and pinning when the margin is too wide
func TestCameraBoundsClamp(t *testing.T) {
	cfg := config.DefaultCamera()
	c := NewCamera(cfg, 1280, 720)
	c.SetBounds(Bounds{MinX: -3000, MinY: -3000, MaxX: 3000, MaxY: 3000}, cfg.Margin)
	c.Snap(physics.Vec{X: 5000, Y: -5000})
	if got := c.Position(); !nearVec(got, physics.Vec{X: 2000, Y: -2000}, 1e-9) {
		t.Errorf("Expected (2000,-2000), got %v", got)
	}

	c.SetBounds(Bounds{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}, cfg.Margin)
	c.Snap(physics.Vec{X: 5000, Y: 5000})
	if got := c.Position(); !nearVec(got, physics.Vec{X: 500, Y: 500}, 1e-9) {
		t.Errorf("Expected pinned center (500,500), got %v", got)
	}

	c.SetBounds(Bounds{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000}, 100)
	if got := c.Position(); !nearVec(got, physics.Vec{X: 900, Y: 900}, 1e-9) {
		t.Errorf("Expected SetBounds to pull the camera to (900,900), got %v", got)
	}

	c.ClearBounds()
	c.Snap(physics.Vec{X: 5000, Y: 5000})
	if got := c.Position(); got.X != 5000 {
		t.Errorf("Expected no clamp after ClearBounds, got %v", got)
	}
}

// TestCameraIgnoresNonFiniteTargets tests NaN and infinite targets leave the camera in place
func TestCameraIgnoresNonFiniteTargets(t *testing.T) {
	c := NewCamera(config.DefaultCamera(), 1280, 720)
	c.Snap(physics.Vec{X: 10, Y: 20})
	for _, target := range []physics.Vec{
		{X: math.NaN(), Y: 0},
		{X: math.Inf(1), Y: 0},
		{X: 0, Y: math.Inf(-1)},
	} {
		c.Follow(target)
		c.Snap(target)
		c.FollowWithLookahead(physics.Vec{}, target)
		if got := c.Position(); got != (physics.Vec{X: 10, Y: 20}) {
			t.Fatalf("Expected camera to stay at (10,20) for %v, got %v", target, got)
		}
	}
}
