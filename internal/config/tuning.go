package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// LimbNames lists the thruster-capable limbs in table order
var LimbNames = []string{LimbHead, LimbLeftArm, LimbRightArm, LimbLeftLeg, LimbRightLeg}

// LoadTuning overlays a YAML tuning file on base. Keys missing from the file
// keep their base value; a limb entry replaces that limb's whole row.
func LoadTuning(path string, base GameConfig) (GameConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	return ParseTuning(raw, base)
}

// ParseTuning is LoadTuning for in-memory YAML
func ParseTuning(raw []byte, base GameConfig) (GameConfig, error) {
	cfg := base
	cfg.Thrust = base.Thrust.Clone()
	cfg.Streamer.PlatformOffsets = append([]float64(nil), base.Streamer.PlatformOffsets...)

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("tuning.yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks every bound the simulation relies on
func (c GameConfig) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Viewport.Width > 0 && c.Viewport.Height > 0, "viewport must be positive"},
		{c.Viewport.TickRate > 0, "tick_rate must be positive"},
		{c.Physics.Gravity >= 0 && c.Physics.SetupGravity >= 0, "gravity must be non-negative"},
		{c.Physics.Density > 0, "density must be positive"},
		{c.Physics.Stiffness > 0 && c.Physics.Stiffness <= 1, "stiffness must be in (0, 1]"},
		{c.Physics.FallLimit > 0, "fall_limit must be positive"},
		{c.Physics.RespawnTicks >= 0, "respawn_ticks must be non-negative"},
		{c.Thrust.MaxFuel > 0, "max_fuel must be positive"},
		{c.Thrust.CostPerTick > 0, "cost_per_tick must be positive"},
		{c.Thrust.RecoveryPerTick >= 0, "recovery_per_tick must be non-negative"},
		{c.Thrust.RampFactor >= 1, "ramp_factor must be at least 1"},
		{c.Thrust.MaxMultiplier >= 1, "thrust max_multiplier must be at least 1"},
		{c.Streamer.ChunkSize > 0, "chunk_size must be positive"},
		{c.Streamer.VisibleRadius >= 0, "visible_radius must be non-negative"},
		{c.Streamer.ExtraAhead >= 0, "extra_ahead must be non-negative"},
		{c.Streamer.ExtraBuffer >= c.Streamer.ExtraAhead, "extra_buffer must be at least extra_ahead"},
		{c.Streamer.FloorThickness > 0, "floor_thickness must be positive"},
		{c.Streamer.MaxPlatforms >= 0 && c.Streamer.MaxPlatforms <= 2, "max_platforms must be in [0, 2]"},
		{c.Streamer.MaxPlatforms == 0 || len(c.Streamer.PlatformOffsets) > 0, "platform_offsets required when platforms are enabled"},
		{c.Streamer.PlatformMinWidth > 0 && c.Streamer.PlatformMaxWidth >= c.Streamer.PlatformMinWidth, "platform widths out of order"},
		{c.Streamer.PlatformMaxWidth <= c.Streamer.ChunkSize, "platform_max_width exceeds chunk_size"},
		{c.Streamer.PlatformThickness > 0, "platform_thickness must be positive"},
		{c.Streamer.BouncerChance >= 0 && c.Streamer.BouncerChance <= 1, "bouncer_chance must be in [0, 1]"},
		{c.Streamer.BouncerRadius > 0, "bouncer_radius must be positive"},
		{c.Camera.Smoothing > 0 && c.Camera.Smoothing < 1, "smoothing must be in (0, 1)"},
		{c.Camera.MinZoom > 0 && c.Camera.MaxZoom >= c.Camera.MinZoom, "zoom bounds out of order"},
		{c.Camera.MaxX > c.Camera.MinX && c.Camera.MaxY > c.Camera.MinY, "camera bounds out of order"},
		{c.Score.RotationSensitivity >= 0, "rotation_sensitivity must be non-negative"},
		{c.Score.MultiplierStep >= 0 && c.Score.MultiplierDecay >= 0, "multiplier step and decay must be non-negative"},
		{c.Score.MaxMultiplier >= 1, "score max_multiplier must be at least 1"},
		{c.Collectibles.Radius > 0, "collectible radius must be positive"},
		{c.Collectibles.Value >= 0, "collectible value must be non-negative"},
		{c.Collectibles.RemovalDelayTicks >= 0, "removal_delay_ticks must be non-negative"},
		{c.Collectibles.CellSize > 0, "cell_size must be positive"},
		{c.Limits.InputQueueSize > 0, "input_queue_size must be positive"},
		{c.Limits.MaxParticles >= 0 && c.Limits.MaxCollectibles > 0, "limits out of range"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.msg)
		}
	}
	return c.Thrust.validateLimbs()
}

func (c ThrustConfig) validateLimbs() error {
	for name, row := range c.Limbs {
		known := false
		for _, n := range LimbNames {
			if n == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown thruster limb %q", ErrInvalidConfig, name)
		}
		if !(row.Power >= 0) || math.IsInf(row.Power, 0) {
			return fmt.Errorf("%w: thruster %s power %v", ErrInvalidConfig, name, row.Power)
		}
		if math.IsNaN(row.DirectionAngle) || math.IsInf(row.DirectionAngle, 0) ||
			math.IsNaN(row.OffsetX) || math.IsNaN(row.OffsetY) {
			return fmt.Errorf("%w: thruster %s has non-finite geometry", ErrInvalidConfig, name)
		}
	}
	return nil
}
