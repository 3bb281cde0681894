package game

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

func newTestStreamer(t *testing.T) (*physics.World, *Streamer, *Recorder) {
	t.Helper()
	world := physics.NewWorld(physics.Vec{Y: 1000})
	rec := NewRecorder(1024)
	return world, NewStreamer(world, config.DefaultStreamer(), rec), rec
}

func intRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// TestStreamerOriginScenario tests x=0, chunkSize 800, R=3 at rest
func TestStreamerOriginScenario(t *testing.T) {
	_, s, rec := newTestStreamer(t)
	if err := s.Update(0, 0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := s.Indices(); !reflect.DeepEqual(got, intRange(-3, 3)) {
		t.Errorf("Expected chunks -3..3, got %v", got)
	}
	if got := rec.Count(EventTypeChunkGenerated); got != 7 {
		t.Errorf("Expected 7 generation events, got %d", got)
	}
	for _, idx := range s.Indices() {
		floor := s.Chunk(idx).Bodies[0]
		if floor.Label() != LabelFloor || !floor.IsStatic() {
			t.Errorf("Chunk %d: expected static floor first, got %s", idx, floor.Label())
		}
	}
}

// TestStreamerLookahead tests extra chunks only in the direction of travel
func TestStreamerLookahead(t *testing.T) {
	tests := []struct {
		name   string
		vx     float64
		lo, hi int
	}{
		{"moving right", 250, -3, 5},
		{"moving left", -250, -5, 3},
		{"at rest", 0, -3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s, _ := newTestStreamer(t)
			if err := s.Update(400, tt.vx); err != nil {
				t.Fatal(err)
			}
			if got := s.Indices(); !reflect.DeepEqual(got, intRange(tt.lo, tt.hi)) {
				t.Errorf("Expected %d..%d, got %v", tt.lo, tt.hi, got)
			}
		})
	}
}

// TestStreamerGenerateIdempotent tests a second generate creates nothing
func TestStreamerGenerateIdempotent(t *testing.T) {
	world, s, _ := newTestStreamer(t)
	first, created, err := s.Generate(2)
	if err != nil || !created {
		t.Fatalf("Expected creation, got %v %v", created, err)
	}
	bodies := world.BodyCount()

	again, created, err := s.Generate(2)
	if err != nil || created {
		t.Fatalf("Expected no creation, got %v %v", created, err)
	}
	if again != first || world.BodyCount() != bodies {
		t.Errorf("Expected the same chunk and %d bodies, got %d", bodies, world.BodyCount())
	}

	if err := s.Update(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(0, 0); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 7 {
		t.Errorf("Expected 7 chunks after repeated updates, got %d", s.Count())
	}
}

// TestStreamerEvictsBeyondBuffer tests eviction removes bodies from the world
func TestStreamerEvictsBeyondBuffer(t *testing.T) {
	world, s, rec := newTestStreamer(t)
	if err := s.Update(0, 0); err != nil {
		t.Fatal(err)
	}
	old := make([]*physics.Body, 0)
	for _, idx := range s.Indices() {
		old = append(old, s.Chunk(idx).Bodies...)
	}

	// Center 10: keep |i-10| <= R+B = 5
	if err := s.Update(10*800+1, 0); err != nil {
		t.Fatal(err)
	}
	if got := s.Indices(); !reflect.DeepEqual(got, intRange(7, 13)) {
		t.Errorf("Expected 7..13, got %v", got)
	}
	if got := rec.Count(EventTypeChunkEvicted); got != 7 {
		t.Errorf("Expected 7 evictions, got %d", got)
	}
	for _, b := range old {
		if !b.Removed() || world.Contains(b) {
			t.Fatalf("Expected evicted body %d to leave the world", b.ID())
		}
	}

	total := 0
	for _, idx := range s.Indices() {
		total += len(s.Chunk(idx).Bodies)
	}
	if world.BodyCount() != total {
		t.Errorf("Expected %d world bodies, got %d", total, world.BodyCount())
	}
}

// TestStreamerKeepsBufferedChunks tests chunks inside R+B survive a short move
func TestStreamerKeepsBufferedChunks(t *testing.T) {
	_, s, rec := newTestStreamer(t)
	if err := s.Update(0, 0); err != nil {
		t.Fatal(err)
	}
	// Center 2: chunk -3 is at distance 5 and stays
	if err := s.Update(2*800, 0); err != nil {
		t.Fatal(err)
	}
	if !s.Has(-3) {
		t.Error("Expected chunk -3 to be kept inside the buffer")
	}
	if rec.Count(EventTypeChunkEvicted) != 0 {
		t.Error("Expected no evictions")
	}
}

// TestStreamerDeterministic tests a regenerated chunk has the same layout
func TestStreamerDeterministic(t *testing.T) {
	world := physics.NewWorld(physics.Vec{})
	cfg := config.DefaultStreamer()
	cfg.BouncerChance = 1
	s := NewStreamer(world, cfg, nil)

	layout := func() []physics.Vec {
		ch, _, err := s.Generate(4)
		if err != nil {
			t.Fatal(err)
		}
		out := make([]physics.Vec, 0, len(ch.Bodies))
		for _, b := range ch.Bodies {
			out = append(out, b.Position())
		}
		return out
	}

	first := layout()
	if err := s.Evict(4); err != nil {
		t.Fatal(err)
	}
	if second := layout(); !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical layout, got %v then %v", first, second)
	}
	if len(first) < 2 {
		t.Errorf("Expected floor and bouncer, got %d bodies", len(first))
	}
}

// TestStreamerCoverage tests the visible window is always resident
func TestStreamerCoverage(t *testing.T) {
	_, s, _ := newTestStreamer(t)
	rng := rand.New(rand.NewSource(3))
	x := 0.0
	for i := 0; i < 200; i++ {
		vx := (rng.Float64()*2 - 1) * 2000
		x += vx / 60 * 10
		if err := s.Update(x, vx); err != nil {
			t.Fatal(err)
		}
		c := ChunkIndex(x, 800)
		for j := c - 3; j <= c+3; j++ {
			if !s.Has(j) {
				t.Fatalf("Step %d: chunk %d missing around center %d", i, j, c)
			}
		}
		if s.Count() > 2*3+1+2*2 {
			t.Fatalf("Step %d: %d chunks resident", i, s.Count())
		}
	}
}

// TestStreamerRejectsNonFinite tests invalid positions
func TestStreamerRejectsNonFinite(t *testing.T) {
	_, s, _ := newTestStreamer(t)
	if err := s.Update(math.NaN(), 0); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}
	if got := ChunkIndex(-1, 800); got != -1 {
		t.Errorf("Expected floor(-1/800) = -1, got %d", got)
	}
}

// TestChunkSeedUsesFullIndex tests indices that share their low 32 bits still differ
func TestChunkSeedUsesFullIndex(t *testing.T) {
	wide := int64(1) << 32
	for _, idx := range []int{0, 3, -7} {
		far := idx + int(wide)
		if chunkSeed(42, idx) == chunkSeed(42, far) {
			t.Errorf("Expected chunk %d and %d to get different seeds", idx, far)
		}
	}
	if chunkSeed(42, 5) != chunkSeed(42, 5) {
		t.Error("Expected chunk seeds to be deterministic")
	}
	if chunkSeed(42, 5) == chunkSeed(43, 5) {
		t.Error("Expected the world seed to change chunk seeds")
	}
}
