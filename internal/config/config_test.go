package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultsValidate tests that the shipped defaults pass validation
func TestDefaultsValidate(t *testing.T) {
	if err := DefaultGame().Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
}

// TestValidateRejects tests individual bound violations
func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GameConfig)
	}{
		{"zero chunk size", func(c *GameConfig) { c.Streamer.ChunkSize = 0 }},
		{"buffer below ahead", func(c *GameConfig) { c.Streamer.ExtraBuffer = 1; c.Streamer.ExtraAhead = 2 }},
		{"stiffness above one", func(c *GameConfig) { c.Physics.Stiffness = 1.5 }},
		{"smoothing of one", func(c *GameConfig) { c.Camera.Smoothing = 1 }},
		{"inverted zoom", func(c *GameConfig) { c.Camera.MinZoom = 3 }},
		{"unknown limb", func(c *GameConfig) {
			c.Thrust = c.Thrust.Clone()
			c.Thrust.Limbs["tail"] = ThrusterConfig{Power: 1}
		}},
		{"negative power", func(c *GameConfig) {
			c.Thrust = c.Thrust.Clone()
			c.Thrust.Limbs[LimbHead] = ThrusterConfig{Power: -1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGame()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// TestParseTuningOverlays tests that YAML only replaces the keys it names
func TestParseTuningOverlays(t *testing.T) {
	base := DefaultGame()
	raw := []byte(`
streamer:
  chunk_size: 400
thrust:
  limbs:
    head:
      power: 10
`)

	cfg, err := ParseTuning(raw, base)
	if err != nil {
		t.Fatalf("ParseTuning failed: %v", err)
	}

	if cfg.Streamer.ChunkSize != 400 {
		t.Errorf("Expected chunk size 400, got %v", cfg.Streamer.ChunkSize)
	}
	if cfg.Streamer.VisibleRadius != base.Streamer.VisibleRadius {
		t.Errorf("Expected visible radius to keep %d, got %d", base.Streamer.VisibleRadius, cfg.Streamer.VisibleRadius)
	}
	if cfg.Thrust.Limbs[LimbHead].Power != 10 {
		t.Errorf("Expected head power 10, got %v", cfg.Thrust.Limbs[LimbHead].Power)
	}
	if cfg.Thrust.Limbs[LimbLeftLeg].Power != base.Thrust.Limbs[LimbLeftLeg].Power {
		t.Errorf("Expected left leg row untouched")
	}
	if base.Thrust.Limbs[LimbHead].Power == 10 {
		t.Errorf("Expected base table not to be mutated")
	}
}

// TestParseTuningBadYAML tests malformed input
func TestParseTuningBadYAML(t *testing.T) {
	if _, err := ParseTuning([]byte("streamer: [1, 2"), DefaultGame()); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

// TestLoadFromEnv tests env overrides and the tuning file hook
func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("camera:\n  smoothing: 0.25\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "8080")
	t.Setenv("VISIBLE_RADIUS", "5")
	t.Setenv("TUNING_FILE", path)
	t.Setenv("BEST_SCORE_DB", "")
	t.Setenv("CONTROL_TOKEN", "s3cret")
	t.Setenv("CORS_ORIGINS", "http://game.test, ,http://other.test")
	t.Setenv("DEBUG_PORT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ControlToken != "s3cret" {
		t.Errorf("Expected control token s3cret, got %q", cfg.Server.ControlToken)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://other.test" {
		t.Errorf("Expected 2 trimmed origins, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.DebugPort != 0 {
		t.Errorf("Expected debug port 0, got %d", cfg.Server.DebugPort)
	}
	if cfg.Game.Streamer.VisibleRadius != 5 {
		t.Errorf("Expected visible radius 5, got %d", cfg.Game.Streamer.VisibleRadius)
	}
	if cfg.Game.Camera.Smoothing != 0.25 {
		t.Errorf("Expected smoothing 0.25, got %v", cfg.Game.Camera.Smoothing)
	}
	if cfg.Storage.BestScoreDB != "" {
		t.Errorf("Expected empty db path, got %q", cfg.Storage.BestScoreDB)
	}
}

// TestShippedTuningFile keeps configs/tuning.yaml loadable and valid
func TestShippedTuningFile(t *testing.T) {
	cfg, err := LoadTuning(filepath.Join("..", "..", "configs", "tuning.yaml"), DefaultGame())
	if err != nil {
		t.Fatalf("LoadTuning failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Shipped tuning invalid: %v", err)
	}
	if got := cfg.Thrust.Limbs[LimbLeftLeg].Power; got != 4000 {
		t.Errorf("Expected left leg power 4000, got %v", got)
	}
	if len(cfg.Thrust.Limbs) != len(LimbNames) {
		t.Errorf("Expected %d limb rows, got %d", len(LimbNames), len(cfg.Thrust.Limbs))
	}
}
