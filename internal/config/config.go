// Package config provides centralized configuration management.
// Every tuning constant of the simulation has its default here; a YAML
// tuning file and environment variables may override them.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// VIEWPORT & TICK CONFIGURATION
// =============================================================================

// ViewportConfig holds the render surface size and the simulation rate.
type ViewportConfig struct {
	Width    int `yaml:"width"`     // Viewport width in pixels
	Height   int `yaml:"height"`    // Viewport height in pixels
	TickRate int `yaml:"tick_rate"` // Simulation ticks per second
}

// DefaultViewport returns the default viewport configuration.
func DefaultViewport() ViewportConfig {
	return ViewportConfig{
		Width:    1280,
		Height:   720,
		TickRate: 60,
	}
}

// ViewportFromEnv returns viewport configuration with environment variable overrides.
func ViewportFromEnv() ViewportConfig {
	cfg := DefaultViewport()

	if w := getEnvInt("VIEWPORT_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("VIEWPORT_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}

	return cfg
}

// =============================================================================
// PHYSICS & CHARACTER CONFIGURATION
// =============================================================================

// PhysicsConfig holds world and ragdoll body settings.
// Units are pixels and seconds; y grows downward.
type PhysicsConfig struct {
	Gravity       float64 `yaml:"gravity"`        // Play gravity, px/s^2
	SetupGravity  float64 `yaml:"setup_gravity"`  // Gravity while posing in setup
	Density       float64 `yaml:"density"`        // Limb mass per square pixel
	Stiffness     float64 `yaml:"stiffness"`      // Shared joint stiffness in (0, 1]
	LimbFriction  float64 `yaml:"limb_friction"`  // Limb friction while playing
	SetupFriction float64 `yaml:"setup_friction"` // Limb friction while posing
	SpawnX        float64 `yaml:"spawn_x"`        // Torso spawn position
	SpawnY        float64 `yaml:"spawn_y"`
	FallLimit     float64 `yaml:"fall_limit"`     // Respawn once torso falls this far below the floor
	RespawnTicks  int     `yaml:"respawn_ticks"`  // Ticks spent in the respawning phase
}

// DefaultPhysics returns the default physics configuration.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		Gravity:       1000,
		SetupGravity:  1,
		Density:       0.001,
		Stiffness:     0.6,
		LimbFriction:  0.6,
		SetupFriction: 0.1,
		SpawnX:        0,
		SpawnY:        525, // legs rest on the floor at 590
		FallLimit:     1000,
		RespawnTicks:  30,
	}
}

// =============================================================================
// THRUST CONFIGURATION
// =============================================================================

// Limb names accepted in the thruster table.
const (
	LimbHead     = "head"
	LimbLeftArm  = "leftArm"
	LimbRightArm = "rightArm"
	LimbLeftLeg  = "leftLeg"
	LimbRightLeg = "rightLeg"
)

// ThrusterConfig is one row of the per-limb thruster table.
type ThrusterConfig struct {
	Power          float64 `yaml:"power"`           // Base force magnitude
	OffsetX        float64 `yaml:"offset_x"`        // Emission point in limb-local space
	OffsetY        float64 `yaml:"offset_y"`
	DirectionAngle float64 `yaml:"direction_angle"` // Radians, added to the limb angle
}

// ThrustConfig holds the fuel model and the per-limb thruster table.
type ThrustConfig struct {
	MaxFuel         float64                   `yaml:"max_fuel"`
	CostPerTick     float64                   `yaml:"cost_per_tick"`
	RecoveryPerTick float64                   `yaml:"recovery_per_tick"`
	RampFactor      float64                   `yaml:"ramp_factor"`    // Multiplier growth per active tick
	MaxMultiplier   float64                   `yaml:"max_multiplier"` // Multiplier cap
	ApplyAtOffset   bool                      `yaml:"apply_at_offset"`
	Limbs           map[string]ThrusterConfig `yaml:"limbs"`
}

// DefaultThrust returns the default thruster table.
func DefaultThrust() ThrustConfig {
	return ThrustConfig{
		MaxFuel:         100,
		CostPerTick:     1,
		RecoveryPerTick: 0.5,
		RampFactor:      1.1,
		MaxMultiplier:   2.5,
		Limbs: map[string]ThrusterConfig{
			LimbHead:     {Power: 2000, OffsetY: -10, DirectionAngle: -math.Pi / 2},
			LimbLeftArm:  {Power: 3000, OffsetX: -15, DirectionAngle: -math.Pi},
			LimbRightArm: {Power: 3000, OffsetX: 15, DirectionAngle: 0},
			LimbLeftLeg:  {Power: 4000, OffsetY: 20, DirectionAngle: -math.Pi / 2},
			LimbRightLeg: {Power: 4000, OffsetY: 20, DirectionAngle: -math.Pi / 2},
		},
	}
}

// Clone returns a copy whose limb table can be modified independently.
func (c ThrustConfig) Clone() ThrustConfig {
	out := c
	out.Limbs = make(map[string]ThrusterConfig, len(c.Limbs))
	for k, v := range c.Limbs {
		out.Limbs[k] = v
	}
	return out
}

// =============================================================================
// WORLD STREAMING CONFIGURATION
// =============================================================================

// StreamerConfig holds chunk generation settings.
type StreamerConfig struct {
	Seed               int64     `yaml:"seed"`
	ChunkSize          float64   `yaml:"chunk_size"`
	VisibleRadius      int       `yaml:"visible_radius"`
	ExtraAhead         int       `yaml:"extra_ahead"`         // Extra chunks generated in the direction of travel
	ExtraBuffer        int       `yaml:"extra_buffer"`        // Extra chunks kept before eviction
	FloorY             float64   `yaml:"floor_y"`             // Top surface of the floor
	FloorThickness     float64   `yaml:"floor_thickness"`
	FloorFriction      float64   `yaml:"floor_friction"`
	MaxPlatforms       int       `yaml:"max_platforms"`
	PlatformOffsets    []float64 `yaml:"platform_offsets"`    // Heights relative to FloorY
	PlatformMinWidth   float64   `yaml:"platform_min_width"`
	PlatformMaxWidth   float64   `yaml:"platform_max_width"`
	PlatformThickness  float64   `yaml:"platform_thickness"`
	BouncerChance      float64   `yaml:"bouncer_chance"`
	BouncerRadius      float64   `yaml:"bouncer_radius"`
	BouncerRestitution float64   `yaml:"bouncer_restitution"`
}

// DefaultStreamer returns the default streaming configuration.
func DefaultStreamer() StreamerConfig {
	return StreamerConfig{
		Seed:               1,
		ChunkSize:          800,
		VisibleRadius:      3,
		ExtraAhead:         2,
		ExtraBuffer:        2,
		FloorY:             590,
		FloorThickness:     60,
		FloorFriction:      0.8,
		MaxPlatforms:       2,
		PlatformOffsets:    []float64{-500, -400, -300, -200},
		PlatformMinWidth:   100,
		PlatformMaxWidth:   300,
		PlatformThickness:  20,
		BouncerChance:      0.3,
		BouncerRadius:      30,
		BouncerRestitution: 1.2,
	}
}

// StreamerFromEnv returns streaming configuration with environment variable overrides.
func StreamerFromEnv() StreamerConfig {
	cfg := DefaultStreamer()

	if s := getEnvInt("WORLD_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}
	if cs := getEnvFloat("CHUNK_SIZE", 0); cs > 0 {
		cfg.ChunkSize = cs
	}
	if r := getEnvInt("VISIBLE_RADIUS", 0); r > 0 {
		cfg.VisibleRadius = r
	}

	return cfg
}

// =============================================================================
// CAMERA CONFIGURATION
// =============================================================================

// CameraConfig holds follow camera settings.
type CameraConfig struct {
	Smoothing       float64 `yaml:"smoothing"`        // Exponential smoothing factor in (0, 1)
	Lookahead       float64 `yaml:"lookahead"`        // Seconds of velocity added to the target
	ClampToBounds   bool    `yaml:"clamp_to_bounds"`
	MinX            float64 `yaml:"min_x"`
	MaxX            float64 `yaml:"max_x"`
	MinY            float64 `yaml:"min_y"`
	MaxY            float64 `yaml:"max_y"`
	Margin          float64 `yaml:"margin"`
	MinZoom         float64 `yaml:"min_zoom"`
	MaxZoom         float64 `yaml:"max_zoom"`
	ZoomSensitivity float64 `yaml:"zoom_sensitivity"` // Scale change per wheel unit
}

// DefaultCamera returns the default camera configuration.
func DefaultCamera() CameraConfig {
	return CameraConfig{
		Smoothing:       0.1,
		Lookahead:       0.3,
		ClampToBounds:   false,
		MinX:            -10000,
		MaxX:            10000,
		MinY:            -10000,
		MaxY:            10000,
		Margin:          1000,
		MinZoom:         0.5,
		MaxZoom:         2.0,
		ZoomSensitivity: 0.001,
	}
}

// =============================================================================
// SCORING CONFIGURATION
// =============================================================================

// ScoreConfig holds trick scoring settings.
type ScoreConfig struct {
	RotationSensitivity float64 `yaml:"rotation_sensitivity"` // Weight on summed |angular velocity| (rad/s)
	RotationThreshold   float64 `yaml:"rotation_threshold"`
	MultiplierStep      float64 `yaml:"multiplier_step"`
	MultiplierDecay     float64 `yaml:"multiplier_decay"`
	MaxMultiplier       float64 `yaml:"max_multiplier"`
	RotationPoints      float64 `yaml:"rotation_points"` // Points per unit of rotation speed
	AirTimeRate         float64 `yaml:"air_time_rate"`   // Points per tick of accumulated air time
	GroundClearance     float64 `yaml:"ground_clearance"`
}

// DefaultScore returns the default scoring configuration.
func DefaultScore() ScoreConfig {
	return ScoreConfig{
		RotationSensitivity: 10.0 / 60.0,
		RotationThreshold:   0.5,
		MultiplierStep:      0.1,
		MultiplierDecay:     0.05,
		MaxMultiplier:       8,
		RotationPoints:      10,
		AirTimeRate:         0.1,
		GroundClearance:     30,
	}
}

// =============================================================================
// COLLECTIBLE CONFIGURATION
// =============================================================================

// CollectibleConfig holds pickup settings.
type CollectibleConfig struct {
	Radius            float64 `yaml:"radius"`
	Value             int     `yaml:"value"`
	RemovalDelayTicks int     `yaml:"removal_delay_ticks"` // Animation beat before the body disappears
	PointerRadius     float64 `yaml:"pointer_radius"`      // Pointer-to-limb activation distance
	CellSize          float64 `yaml:"cell_size"`           // Spatial hash cell size
}

// DefaultCollectibles returns the default collectible configuration.
func DefaultCollectibles() CollectibleConfig {
	return CollectibleConfig{
		Radius:            15,
		Value:             100,
		RemovalDelayTicks: 30, // 500ms at 60 TPS
		PointerRadius:     30,
		CellSize:          200,
	}
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps per-frame and queued resources.
type ResourceLimits struct {
	MaxParticles    int `yaml:"max_particles"`
	MaxCollectibles int `yaml:"max_collectibles"`
	InputQueueSize  int `yaml:"input_queue_size"`
	MaxEvents       int `yaml:"max_events"` // Events kept for the debug feed
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxParticles:    300,
		MaxCollectibles: 256,
		InputQueueSize:  256,
		MaxEvents:       256,
	}
}

// =============================================================================
// SERVER & STORAGE CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	DebugPort    int      // Loopback pprof and metrics listener; 0 disables it
	ControlToken string   // Bearer token for level and mode changes; empty leaves them open
	CORSOrigins  []string // Extra allowed origins beyond localhost
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:      3000,
		DebugPort: 6060,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if dp := getEnvInt("DEBUG_PORT", -1); dp >= 0 {
		cfg.DebugPort = dp
	}
	cfg.ControlToken = os.Getenv("CONTROL_TOKEN")
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	BestScoreDB  string // SQLite file for the best score; empty keeps it in memory
	EventLogPath string // zstd JSONL event log; empty disables it
}

// StorageFromEnv returns storage configuration with environment variable overrides.
func StorageFromEnv() StorageConfig {
	return StorageConfig{
		BestScoreDB:  getEnvString("BEST_SCORE_DB", "data/rocket-ragdoll.db"),
		EventLogPath: getEnvString("EVENT_LOG_PATH", ""),
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// GameConfig is everything the simulation needs.
type GameConfig struct {
	Viewport     ViewportConfig    `yaml:"viewport"`
	Physics      PhysicsConfig     `yaml:"physics"`
	Thrust       ThrustConfig      `yaml:"thrust"`
	Streamer     StreamerConfig    `yaml:"streamer"`
	Camera       CameraConfig      `yaml:"camera"`
	Score        ScoreConfig       `yaml:"score"`
	Collectibles CollectibleConfig `yaml:"collectibles"`
	Limits       ResourceLimits    `yaml:"limits"`
}

// DefaultGame returns the default simulation configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		Viewport:     DefaultViewport(),
		Physics:      DefaultPhysics(),
		Thrust:       DefaultThrust(),
		Streamer:     DefaultStreamer(),
		Camera:       DefaultCamera(),
		Score:        DefaultScore(),
		Collectibles: DefaultCollectibles(),
		Limits:       DefaultLimits(),
	}
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game       GameConfig
	Server     ServerConfig
	Storage    StorageConfig
	TuningPath string
}

// Load returns the complete configuration with environment overrides.
// A tuning file named by TUNING_FILE is applied on top and the result validated.
func Load() (AppConfig, error) {
	game := DefaultGame()
	game.Viewport = ViewportFromEnv()
	game.Streamer = StreamerFromEnv()

	cfg := AppConfig{
		Game:       game,
		Server:     ServerFromEnv(),
		Storage:    StorageFromEnv(),
		TuningPath: os.Getenv("TUNING_FILE"),
	}

	if cfg.TuningPath != "" {
		tuned, err := LoadTuning(cfg.TuningPath, cfg.Game)
		if err != nil {
			return cfg, err
		}
		cfg.Game = tuned
	}

	return cfg, cfg.Game.Validate()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}
