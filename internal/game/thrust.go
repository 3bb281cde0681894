package game

import (
	"fmt"
	"math"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// ThrustSpec is one validated row of the per-limb thruster table
type ThrustSpec struct {
	Power          float64
	Offset         physics.Vec // emission point, limb-local
	DirectionAngle float64     // added to the limb angle at apply time
}

// ThrustTable maps each thrust-capable limb to its thruster settings
type ThrustTable map[Limb]ThrustSpec

// ThrustTableFromConfig converts and validates the named config table.
// Every thrust-capable limb must have exactly one row; the torso has none.
func ThrustTableFromConfig(cfg config.ThrustConfig) (ThrustTable, error) {
	table := make(ThrustTable, len(cfg.Limbs))
	for name, row := range cfg.Limbs {
		l, err := ParseLimb(name)
		if err != nil {
			return nil, err
		}
		table[l] = ThrustSpec{
			Power:          row.Power,
			Offset:         physics.Vec{X: row.OffsetX, Y: row.OffsetY},
			DirectionAngle: row.DirectionAngle,
		}
	}
	return table, table.Validate()
}

// Validate checks the table covers every thrust limb with finite values
func (t ThrustTable) Validate() error {
	if _, ok := t[LimbTorso]; ok {
		return fmt.Errorf("%w: torso cannot carry a thruster", config.ErrInvalidConfig)
	}
	for _, l := range ThrustLimbs {
		spec, ok := t[l]
		if !ok {
			return fmt.Errorf("%w: missing thruster for %s", config.ErrInvalidConfig, l)
		}
		if !(spec.Power >= 0) || math.IsInf(spec.Power, 0) {
			return fmt.Errorf("%w: thruster %s power %v", config.ErrInvalidConfig, l, spec.Power)
		}
		if math.IsNaN(spec.DirectionAngle) || math.IsInf(spec.DirectionAngle, 0) {
			return fmt.Errorf("%w: thruster %s direction %v", config.ErrInvalidConfig, l, spec.DirectionAngle)
		}
	}
	return nil
}

// FuelModel is shared by every thruster
type FuelModel struct {
	MaxFuel       float64
	Cost          float64 // per active tick
	Recovery      float64 // per idle tick
	Ramp          float64 // multiplier growth per active tick
	MaxMultiplier float64
	ApplyAtOffset bool // apply at the emission point instead of the limb center
}

// FuelModelFromConfig extracts the fuel model
func FuelModelFromConfig(cfg config.ThrustConfig) FuelModel {
	return FuelModel{
		MaxFuel:       cfg.MaxFuel,
		Cost:          cfg.CostPerTick,
		Recovery:      cfg.RecoveryPerTick,
		Ramp:          cfg.RampFactor,
		MaxMultiplier: cfg.MaxMultiplier,
		ApplyAtOffset: cfg.ApplyAtOffset,
	}
}

// Thruster is the rocket bound to one limb
type Thruster struct {
	limb       Limb
	spec       ThrustSpec
	model      FuelModel
	active     bool
	enabled    bool
	fuel       float64
	multiplier float64
	lastForce  physics.Vec
	firing     bool
}

// NewThruster creates a fueled, enabled, idle thruster
func NewThruster(l Limb, spec ThrustSpec, model FuelModel) *Thruster {
	return &Thruster{
		limb:       l,
		spec:       spec,
		model:      model,
		enabled:    true,
		fuel:       model.MaxFuel,
		multiplier: 1,
	}
}

func (t *Thruster) Limb() Limb             { return t.limb }
func (t *Thruster) Active() bool           { return t.active }
func (t *Thruster) Enabled() bool          { return t.enabled }
func (t *Thruster) Fuel() float64          { return t.fuel }
func (t *Thruster) Multiplier() float64    { return t.multiplier }
func (t *Thruster) LastForce() physics.Vec { return t.lastForce }
func (t *Thruster) Firing() bool           { return t.firing }
func (t *Thruster) Spec() ThrustSpec       { return t.spec }

// SetActivation records intent. Disabled thrusters stay inactive.
// Reports whether the flag changed.
func (t *Thruster) SetActivation(on bool) bool {
	if on && !t.enabled {
		return false
	}
	if t.active == on {
		return false
	}
	t.active = on
	return true
}

// SetFuel sets fuel clamped to [0, MaxFuel]
func (t *Thruster) SetFuel(f float64) {
	t.fuel = clamp(f, 0, t.model.MaxFuel)
}

// Force computes the force the thruster would apply to body this tick
func (t *Thruster) Force(body *physics.Body) physics.Vec {
	angle := body.Angle() + t.spec.DirectionAngle
	mag := t.spec.Power * t.multiplier
	return physics.Vec{X: math.Cos(angle) * mag, Y: math.Sin(angle) * mag}
}

// EmissionPoint is the limb position plus the local offset rotated by the limb angle
func (t *Thruster) EmissionPoint(body *physics.Body) physics.Vec {
	return body.LocalToWorld(t.spec.Offset)
}

// Tick runs once per step. Active with fuel: apply force, drain, ramp.
// Inactive: recover and reset the ramp. Active without fuel: nothing moves.
func (t *Thruster) Tick(world *physics.World, body *physics.Body, hook Hook) bool {
	t.firing = false
	t.lastForce = physics.Vec{}

	if !t.active || !t.enabled {
		t.fuel = math.Min(t.model.MaxFuel, t.fuel+t.model.Recovery)
		t.multiplier = 1
		return false
	}
	if t.fuel <= 0 {
		t.fuel = 0
		t.multiplier = 1
		return false
	}
	if body == nil || body.Removed() {
		emit(hook, EventTypeInvalidReference, t.limb.String(), FailurePayload{
			Operation: "thrust", Error: physics.ErrBodyRemoved.Error(),
		})
		return false
	}

	force := t.Force(body)
	point := body.Position()
	if t.model.ApplyAtOffset {
		point = t.EmissionPoint(body)
	}
	if err := world.ApplyForce(body, force, point); err != nil {
		emit(hook, EventTypeInvalidReference, t.limb.String(), FailurePayload{Operation: "thrust", Error: err.Error()})
		return false
	}

	t.lastForce = force
	t.firing = true
	t.fuel = math.Max(0, t.fuel-t.model.Cost)
	t.multiplier = math.Min(t.multiplier*t.model.Ramp, t.model.MaxMultiplier)

	emit(hook, EventTypeForceApplied, t.limb.String(), ForcePayload{
		Limb: t.limb.String(), ForceX: force.X, ForceY: force.Y,
		PointX: point.X, PointY: point.Y, Multiplier: t.multiplier, Fuel: t.fuel,
	})
	if t.fuel == 0 {
		emit(hook, EventTypeFuelExhausted, t.limb.String(), ThrustPayload{Limb: t.limb.String()})
	}
	return true
}

// ThrusterState is a read-only view for the query surface
type ThrusterState struct {
	Limb       Limb
	Active     bool
	Enabled    bool
	Firing     bool
	Fuel       float64
	MaxFuel    float64
	Multiplier float64
	Emission   physics.Vec
	Direction  float64 // world angle of the thrust
}

// Thrusters is the full set, one per thrust-capable limb
type Thrusters struct {
	units [limbCount]*Thruster
	model FuelModel
	hook  Hook
}

// NewThrusters builds one thruster per table row
func NewThrusters(table ThrustTable, model FuelModel, hook Hook) *Thrusters {
	ts := &Thrusters{model: model, hook: hook}
	for _, l := range ThrustLimbs {
		ts.units[l] = NewThruster(l, table[l], model)
	}
	return ts
}

// Get returns the thruster of a limb or nil for the torso
func (ts *Thrusters) Get(l Limb) *Thruster {
	if l >= limbCount {
		return nil
	}
	return ts.units[l]
}

// SetActivation toggles one thruster and reports the change as an event
func (ts *Thrusters) SetActivation(l Limb, on bool) error {
	t := ts.Get(l)
	if t == nil {
		return fmt.Errorf("no thruster on %s", l)
	}
	if !t.SetActivation(on) {
		return nil
	}
	if on {
		emit(ts.hook, EventTypeThrustActivated, l.String(), ThrustPayload{Limb: l.String(), Fuel: t.fuel})
	} else {
		emit(ts.hook, EventTypeThrustReleased, l.String(), ThrustPayload{Limb: l.String(), Fuel: t.fuel})
	}
	return nil
}

// Enable turns on exactly the listed thrusters; the rest are disabled and released
func (ts *Thrusters) Enable(limbs []Limb) {
	allowed := make(map[Limb]bool, len(limbs))
	for _, l := range limbs {
		allowed[l] = true
	}
	for _, t := range ts.units {
		if t == nil {
			continue
		}
		t.enabled = allowed[t.limb]
		if !t.enabled {
			t.active = false
		}
	}
}

// EnableAll turns every thruster on
func (ts *Thrusters) EnableAll() {
	ts.Enable(ThrustLimbs)
}

// ReleaseAll clears every activation flag
func (ts *Thrusters) ReleaseAll() {
	for _, t := range ts.units {
		if t != nil {
			t.active = false
		}
	}
}

// Refuel fills every tank and resets the ramps
func (ts *Thrusters) Refuel() {
	for _, t := range ts.units {
		if t != nil {
			t.fuel = ts.model.MaxFuel
			t.multiplier = 1
		}
	}
}

// Tick runs every thruster against its limb body
func (ts *Thrusters) Tick(world *physics.World, r *Ragdoll) {
	for _, t := range ts.units {
		if t == nil {
			continue
		}
		t.Tick(world, r.Body(t.limb), ts.hook)
	}
}

// States appends a view of every thruster to dst
func (ts *Thrusters) States(r *Ragdoll, dst []ThrusterState) []ThrusterState {
	for _, t := range ts.units {
		if t == nil {
			continue
		}
		st := ThrusterState{
			Limb:       t.limb,
			Active:     t.active,
			Enabled:    t.enabled,
			Firing:     t.firing,
			Fuel:       t.fuel,
			MaxFuel:    ts.model.MaxFuel,
			Multiplier: t.multiplier,
		}
		if body := r.Body(t.limb); body != nil {
			st.Emission = t.EmissionPoint(body)
			st.Direction = body.Angle() + t.spec.DirectionAngle
		}
		dst = append(dst, st)
	}
	return dst
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
