package game

import (
	"sync/atomic"
	"time"

	"rocket-ragdoll/internal/config"
)

// LimbSnapshot is an immutable copy of one limb for rendering
type LimbSnapshot struct {
	Limb            string  `json:"limb"`
	Shape           string  `json:"shape"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Angle           float64 `json:"angle"`
	VX              float64 `json:"vx"`
	VY              float64 `json:"vy"`
	AngularVelocity float64 `json:"angularVelocity"`
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
}

// BodySnapshot is a static world body: floor, platform, bouncer or wall
type BodySnapshot struct {
	ID     uint64  `json:"id"`
	Label  string  `json:"label"`
	Shape  string  `json:"shape"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ThrusterSnapshot is the fuel gauge and nozzle of one limb
type ThrusterSnapshot struct {
	Limb       string  `json:"limb"`
	Active     bool    `json:"active"`
	Enabled    bool    `json:"enabled"`
	Firing     bool    `json:"firing"`
	Fuel       float64 `json:"fuel"`
	MaxFuel    float64 `json:"maxFuel"`
	Multiplier float64 `json:"multiplier"`
	EmitX      float64 `json:"emitX"`
	EmitY      float64 `json:"emitY"`
	Direction  float64 `json:"direction"`
}

// CollectibleSnapshot is an immutable pickup
type CollectibleSnapshot struct {
	ID        uint64  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	Scale     float64 `json:"scale"` // pulse
	Collected bool    `json:"collected"`
}

// ParticleSnapshot is an immutable particle for rendering
type ParticleSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
}

// CameraSnapshot captures the view transform
type CameraSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Scale  float64 `json:"scale"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// GameSnapshot is a complete immutable game state for rendering.
// All slices are pre-allocated and capped to prevent memory attacks.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`

	Phase   Phase  `json:"phase"`
	Mode    Mode   `json:"mode"`
	LevelID string `json:"levelId,omitempty"`

	Limbs        []LimbSnapshot        `json:"limbs"`
	Terrain      []BodySnapshot        `json:"terrain"`
	Thrusters    []ThrusterSnapshot    `json:"thrusters"`
	Collectibles []CollectibleSnapshot `json:"collectibles"`
	Indicators   []Indicator           `json:"indicators"`
	Particles    []ParticleSnapshot    `json:"particles"`
	Chunks       []int                 `json:"chunks"`

	Camera    CameraSnapshot    `json:"camera"`
	Score     ScoreState        `json:"score"`
	Objective ObjectiveProgress `json:"objective"`
	LastError string            `json:"lastError,omitempty"`
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering for lock-free producer/consumer.
type SnapshotPool struct {
	snapshots [3]GameSnapshot // Triple buffer
	limits    config.ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
	published atomic.Bool
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = GameSnapshot{
			Limbs:        make([]LimbSnapshot, 0, int(limbCount)),
			Terrain:      make([]BodySnapshot, 0, 64),
			Thrusters:    make([]ThrusterSnapshot, 0, len(ThrustLimbs)),
			Collectibles: make([]CollectibleSnapshot, 0, limits.MaxCollectibles),
			Indicators:   make([]Indicator, 0, limits.MaxCollectibles),
			Particles:    make([]ParticleSnapshot, 0, limits.MaxParticles),
			Chunks:       make([]int, 0, 16),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from game tick).
// Returns a snapshot with reset slices but preserved capacity.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Limbs = snap.Limbs[:0]
	snap.Terrain = snap.Terrain[:0]
	snap.Thrusters = snap.Thrusters[:0]
	snap.Collectibles = snap.Collectibles[:0]
	snap.Indicators = snap.Indicators[:0]
	snap.Particles = snap.Particles[:0]
	snap.Chunks = snap.Chunks[:0]
	snap.LevelID = ""
	snap.LastError = ""
	snap.Objective = ObjectiveProgress{}

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks write complete and advances read pointer
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
	p.published.Store(true)
}

// AcquireRead gets the latest complete snapshot (consumer only).
// Returns nil if no snapshot has been published yet.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	if !p.published.Load() {
		return nil
	}
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() config.ResourceLimits {
	return p.limits
}
