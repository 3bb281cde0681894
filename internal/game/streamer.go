package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// Labels used as render hints on chunk bodies
const (
	LabelFloor    = "floor"
	LabelPlatform = "platform"
	LabelBouncer  = "bouncer"
	LabelWall     = "wall"
)

// Chunk is one fixed-width slice of generated terrain
type Chunk struct {
	Index  int
	Bodies []*physics.Body
}

// Streamer keeps the chunks around the character resident and evicts the rest
type Streamer struct {
	world  *physics.World
	cfg    config.StreamerConfig
	chunks map[int]*Chunk
	hook   Hook
	center int
}

// NewStreamer creates an empty streamer
func NewStreamer(world *physics.World, cfg config.StreamerConfig, hook Hook) *Streamer {
	return &Streamer{
		world:  world,
		cfg:    cfg,
		chunks: make(map[int]*Chunk),
		hook:   hook,
	}
}

// ChunkIndex returns floor(x / size)
func ChunkIndex(x, size float64) int {
	return int(math.Floor(x / size))
}

// Window returns the inclusive index range that must exist around center.
// The range always covers center±radius and extends ahead in the direction of travel.
func (s *Streamer) Window(center, dir int) (int, int) {
	r := s.cfg.VisibleRadius
	ahead := s.cfg.ExtraAhead * dir
	lo := center - r
	hi := center + r
	if ahead > 0 {
		hi += ahead
	} else {
		lo += ahead
	}
	return lo, hi
}

// Update generates missing chunks in the window and evicts chunks beyond
// visibleRadius+extraBuffer of the current center.
func (s *Streamer) Update(x, vx float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%w: streamer x=%v", ErrInvalidPosition, x)
	}
	center := ChunkIndex(x, s.cfg.ChunkSize)
	s.center = center

	var errs []error
	lo, hi := s.Window(center, sign(vx))
	for i := lo; i <= hi; i++ {
		if _, _, err := s.Generate(i); err != nil {
			errs = append(errs, err)
		}
	}

	limit := s.cfg.VisibleRadius + s.cfg.ExtraBuffer
	for _, idx := range s.Indices() {
		if abs(idx-center) > limit {
			if err := s.Evict(idx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Generate creates the chunk at index unless it already exists.
// Reports whether a new chunk was created.
func (s *Streamer) Generate(index int) (*Chunk, bool, error) {
	if ch, ok := s.chunks[index]; ok {
		return ch, false, nil
	}

	ch := &Chunk{Index: index, Bodies: make([]*physics.Body, 0, 4)}
	if err := s.build(ch); err != nil {
		for _, b := range ch.Bodies {
			_ = s.world.RemoveBody(b)
		}
		return nil, false, fmt.Errorf("generate chunk %d: %w", index, err)
	}
	s.chunks[index] = ch

	emit(s.hook, EventTypeChunkGenerated, fmt.Sprintf("chunk:%d", index), ChunkPayload{Index: index, Bodies: len(ch.Bodies)})
	return ch, true, nil
}

// build places the floor, up to MaxPlatforms platforms and an optional bouncer.
// Placement is seeded by the index so a chunk regenerated after eviction looks the same.
func (s *Streamer) build(ch *Chunk) error {
	cfg := s.cfg
	rng := rand.New(rand.NewSource(int64(chunkSeed(cfg.Seed, ch.Index))))
	left := float64(ch.Index) * cfg.ChunkSize

	floor, err := s.world.NewBox(left+cfg.ChunkSize/2, cfg.FloorY+cfg.FloorThickness/2, cfg.ChunkSize+2, cfg.FloorThickness,
		physics.BodyOptions{Static: true, Friction: cfg.FloorFriction, Label: LabelFloor})
	if err != nil {
		return err
	}
	ch.Bodies = append(ch.Bodies, floor)

	if cfg.MaxPlatforms > 0 && len(cfg.PlatformOffsets) > 0 {
		n := rng.Intn(cfg.MaxPlatforms + 1)
		for i := 0; i < n; i++ {
			w := cfg.PlatformMinWidth + rng.Float64()*(cfg.PlatformMaxWidth-cfg.PlatformMinWidth)
			x := left + w/2 + rng.Float64()*(cfg.ChunkSize-w)
			y := cfg.FloorY + cfg.PlatformOffsets[rng.Intn(len(cfg.PlatformOffsets))]
			p, err := s.world.NewBox(x, y, w, cfg.PlatformThickness,
				physics.BodyOptions{Static: true, Friction: cfg.FloorFriction, Label: LabelPlatform})
			if err != nil {
				return err
			}
			ch.Bodies = append(ch.Bodies, p)
		}
	}

	if rng.Float64() < cfg.BouncerChance {
		r := cfg.BouncerRadius
		x := left + r + rng.Float64()*math.Max(0, cfg.ChunkSize-2*r)
		b, err := s.world.NewCircle(x, cfg.FloorY-r, r,
			physics.BodyOptions{Static: true, Restitution: cfg.BouncerRestitution, Label: LabelBouncer})
		if err != nil {
			return err
		}
		ch.Bodies = append(ch.Bodies, b)
	}
	return nil
}

// Evict removes every body of the chunk from the world, then drops the record
func (s *Streamer) Evict(index int) error {
	ch, ok := s.chunks[index]
	if !ok {
		return nil
	}
	for _, b := range ch.Bodies {
		if b.Removed() {
			continue
		}
		if err := s.world.RemoveBody(b); err != nil {
			return fmt.Errorf("evict chunk %d: %w", index, err)
		}
	}
	delete(s.chunks, index)

	emit(s.hook, EventTypeChunkEvicted, fmt.Sprintf("chunk:%d", index), ChunkPayload{Index: index, Bodies: len(ch.Bodies)})
	return nil
}

// Clear evicts every chunk
func (s *Streamer) Clear() error {
	var errs []error
	for _, idx := range s.Indices() {
		errs = append(errs, s.Evict(idx))
	}
	return errors.Join(errs...)
}

// Has reports whether a chunk exists at index
func (s *Streamer) Has(index int) bool {
	_, ok := s.chunks[index]
	return ok
}

// Chunk returns the chunk at index or nil
func (s *Streamer) Chunk(index int) *Chunk {
	return s.chunks[index]
}

// Count returns the number of resident chunks
func (s *Streamer) Count() int { return len(s.chunks) }

// Center returns the chunk index computed by the last Update
func (s *Streamer) Center() int { return s.center }

// Indices returns resident chunk indices in ascending order
func (s *Streamer) Indices() []int {
	out := make([]int, 0, len(s.chunks))
	for idx := range s.chunks {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// chunkSeed derives a chunk's generator seed from the world seed and the
// full-width chunk index
func chunkSeed(seed int64, index int) uint64 {
	return mix64(uint64(seed) ^ (uint64(int64(index)) * 0x9e3779b97f4a7c15))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
