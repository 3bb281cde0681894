package game

import (
	"math"
	"testing"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// testConfig is the default tuning with flat terrain so nothing but the
// floor interferes with the character.
func testConfig() config.GameConfig {
	cfg := config.DefaultGame()
	cfg.Streamer.MaxPlatforms = 0
	cfg.Streamer.BouncerChance = 0
	return cfg
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Config.Viewport.TickRate == 0 {
		opts.Config = testConfig()
	}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func nearVec(a, b physics.Vec, eps float64) bool {
	return near(a.X, b.X, eps) && near(a.Y, b.Y, eps)
}
