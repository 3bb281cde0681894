package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/game/spatial"
	"rocket-ragdoll/internal/physics"
)

// LabelCollectible is the render hint of collectible bodies
const LabelCollectible = "collectible"

// ErrRegistryFull is returned when spawning past the collectible limit
var ErrRegistryFull = errors.New("collectible registry full")

// Collectible is a pickup. Collected flips exactly once.
type Collectible struct {
	ID        uint64
	Position  physics.Vec
	Value     int
	Phase     float64 // pulse animation offset
	Collected bool

	body *physics.Body
}

// PulseScale is the render scale at time t (milliseconds)
func (c *Collectible) PulseScale(t float64) float64 {
	return 1 + math.Sin(t*0.005+c.Phase)*0.1
}

// Indicator points from the character to an uncollected pickup
type Indicator struct {
	ID        uint64      `json:"id"`
	Distance  float64     `json:"distance"`
	Angle     float64     `json:"angle"`
	Direction physics.Vec `json:"direction"` // unit vector
}

// CollectibleRegistry owns every spawned pickup until its removal
type CollectibleRegistry struct {
	world     *physics.World
	cfg       config.CollectibleConfig
	maxItems  int
	items     map[uint64]*Collectible
	grid      *spatial.SpatialGrid
	sched     *TickScheduler
	rng       *rand.Rand
	hook      Hook
	nextID    uint64
	onCollect func(c *Collectible)
}

// NewCollectibleRegistry creates an empty registry
func NewCollectibleRegistry(world *physics.World, cfg config.CollectibleConfig, maxItems int, sched *TickScheduler, rng *rand.Rand, hook Hook) *CollectibleRegistry {
	return &CollectibleRegistry{
		world:    world,
		cfg:      cfg,
		maxItems: maxItems,
		items:    make(map[uint64]*Collectible),
		grid:     spatial.NewSpatialGrid(cfg.CellSize),
		sched:    sched,
		rng:      rng,
		hook:     hook,
	}
}

// OnCollect registers the callback that credits a collection
func (r *CollectibleRegistry) OnCollect(fn func(c *Collectible)) {
	r.onCollect = fn
}

// Spawn creates a static sensor circle at (x, y)
func (r *CollectibleRegistry) Spawn(x, y float64) (*Collectible, error) {
	if r.maxItems > 0 && len(r.items) >= r.maxItems {
		return nil, ErrRegistryFull
	}
	body, err := r.world.NewCircle(x, y, r.cfg.Radius, physics.BodyOptions{
		Static: true,
		Sensor: true,
		Label:  LabelCollectible,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn collectible: %w", err)
	}

	r.nextID++
	c := &Collectible{
		ID:       r.nextID,
		Position: physics.Vec{X: x, Y: y},
		Value:    r.cfg.Value,
		Phase:    r.rng.Float64() * 2 * math.Pi,
		body:     body,
	}
	body.Data = c
	r.items[c.ID] = c
	r.grid.Insert(uint32(c.ID), x, y)
	return c, nil
}

// HandleContact collects when one side of a contact is a registered
// collectible and the other satisfies isCharacter.
func (r *CollectibleRegistry) HandleContact(a, b *physics.Body, isCharacter func(*physics.Body) bool) bool {
	if c, ok := a.Data.(*Collectible); ok && isCharacter(b) {
		return r.Collect(c.ID)
	}
	if c, ok := b.Data.(*Collectible); ok && isCharacter(a) {
		return r.Collect(c.ID)
	}
	return false
}

// Collect marks the pickup collected, credits it and schedules its removal.
// Returns false if it is unknown or already collected.
func (r *CollectibleRegistry) Collect(id uint64) bool {
	c, ok := r.items[id]
	if !ok || c.Collected {
		return false
	}
	c.Collected = true

	emit(r.hook, EventTypeCollected, fmt.Sprintf("collectible:%d", id), CollectPayload{
		ID: id, Value: c.Value, X: c.Position.X, Y: c.Position.Y,
	})
	if r.onCollect != nil {
		r.onCollect(c)
	}

	r.sched.After(r.cfg.RemovalDelayTicks, func() { r.remove(id) })
	return true
}

func (r *CollectibleRegistry) remove(id uint64) {
	c, ok := r.items[id]
	if !ok {
		return
	}
	if c.body != nil && !c.body.Removed() {
		if err := r.world.RemoveBody(c.body); err != nil {
			emit(r.hook, EventTypeInvalidReference, fmt.Sprintf("collectible:%d", id), FailurePayload{
				Operation: "remove collectible", Error: err.Error(),
			})
		}
	}
	delete(r.items, id)
	r.grid.Remove(uint32(id))
	emit(r.hook, EventTypeCollectibleRemoved, fmt.Sprintf("collectible:%d", id), CollectPayload{ID: id, Value: c.Value})
}

// ClearAll removes every pickup immediately
func (r *CollectibleRegistry) ClearAll() {
	for id, c := range r.items {
		if c.body != nil && !c.body.Removed() {
			_ = r.world.RemoveBody(c.body)
		}
		delete(r.items, id)
	}
	r.grid.Clear()
}

// Get returns a pickup by ID
func (r *CollectibleRegistry) Get(id uint64) *Collectible {
	return r.items[id]
}

// Count returns the number of registered pickups, collected ones included
func (r *CollectibleRegistry) Count() int { return len(r.items) }

// Remaining returns the number of uncollected pickups
func (r *CollectibleRegistry) Remaining() int {
	n := 0
	for _, c := range r.items {
		if !c.Collected {
			n++
		}
	}
	return n
}

// All returns every registered pickup ordered by ID
func (r *CollectibleRegistry) All() []*Collectible {
	out := make([]*Collectible, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InView returns the pickups whose circle overlaps b, ordered by ID
func (r *CollectibleRegistry) InView(b Bounds) []*Collectible {
	pad := r.cfg.Radius
	ids := r.grid.QueryRect(b.MinX-pad, b.MinY-pad, b.MaxX+pad, b.MaxY+pad)
	out := make([]*Collectible, 0, len(ids))
	for _, id := range ids {
		c := r.items[uint64(id)]
		if c == nil {
			continue
		}
		p := c.Position
		if p.X >= b.MinX-pad && p.X <= b.MaxX+pad && p.Y >= b.MinY-pad && p.Y <= b.MaxY+pad {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Indicators returns direction and distance from `from` to every uncollected pickup
func (r *CollectibleRegistry) Indicators(from physics.Vec) []Indicator {
	out := make([]Indicator, 0, len(r.items))
	for _, c := range r.All() {
		if c.Collected {
			continue
		}
		d := c.Position.Sub(from)
		dist := d.Length()
		dir := physics.Vec{}
		if dist > 0 {
			dir = d.Mult(1 / dist)
		}
		out = append(out, Indicator{
			ID:        c.ID,
			Distance:  dist,
			Angle:     math.Atan2(d.Y, d.X),
			Direction: dir,
		})
	}
	return out
}
