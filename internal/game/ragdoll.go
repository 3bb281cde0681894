package game

import (
	"errors"
	"fmt"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// ragdollGroup keeps the limbs from colliding with each other
const ragdollGroup uint = 1

// ErrInvalidPosition is returned when a ragdoll is built or reset at a non-finite point
var ErrInvalidPosition = errors.New("invalid character position")

// ErrTornDown is returned for operations on a ragdoll after Teardown
var ErrTornDown = errors.New("ragdoll torn down")

type limbSlot struct {
	body  *physics.Body
	joint *physics.Joint // nil for the torso
}

// Ragdoll is the articulated character: a torso with five limbs each pinned
// to it by exactly one joint. It owns every body and joint it creates.
type Ragdoll struct {
	world *physics.World
	cfg   config.PhysicsConfig
	slots [limbCount]limbSlot
	torn  bool
}

// NewRagdoll builds the torso, then each limb at its fixed offset, then the
// joints. On failure every body created so far is removed again.
func NewRagdoll(world *physics.World, pos physics.Vec, cfg config.PhysicsConfig) (*Ragdoll, error) {
	if !finiteVec(pos) {
		return nil, fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, pos.X, pos.Y)
	}

	r := &Ragdoll{world: world, cfg: cfg}

	for _, l := range AllLimbs {
		spec := limbTable[l]
		at := pos.Add(spec.offsetAt(0))
		opts := physics.BodyOptions{
			Density:  cfg.Density,
			Friction: cfg.LimbFriction,
			Group:    ragdollGroup,
			Label:    l.String(),
		}

		var (
			body *physics.Body
			err  error
		)
		if spec.shape.kind == physics.ShapeCircle {
			body, err = world.NewCircle(at.X, at.Y, spec.shape.radius, opts)
		} else {
			body, err = world.NewBox(at.X, at.Y, spec.shape.width, spec.shape.height, opts)
		}
		if err != nil {
			r.Teardown()
			return nil, fmt.Errorf("create %s: %w", l, err)
		}
		body.Data = l
		r.slots[l].body = body
	}

	torso := r.slots[LimbTorso].body
	for _, l := range ThrustLimbs {
		spec := limbTable[l]
		joint, err := world.NewJoint(r.slots[l].body, torso, spec.limbAnchor, spec.torsoAnchor, cfg.Stiffness)
		if err != nil {
			r.Teardown()
			return nil, fmt.Errorf("join %s: %w", l, err)
		}
		r.slots[l].joint = joint
	}

	return r, nil
}

// Body returns the handle of a limb, nil once torn down
func (r *Ragdoll) Body(l Limb) *physics.Body {
	if r == nil || r.torn || l >= limbCount {
		return nil
	}
	return r.slots[l].body
}

// Joint returns the parent joint of a limb; the torso has none
func (r *Ragdoll) Joint(l Limb) *physics.Joint {
	if r == nil || r.torn || l >= limbCount {
		return nil
	}
	return r.slots[l].joint
}

// Valid reports whether the ragdoll still owns live bodies
func (r *Ragdoll) Valid() bool {
	return r != nil && !r.torn
}

// AggregatePosition is the torso position, the character's authoritative location
func (r *Ragdoll) AggregatePosition() physics.Vec {
	return r.slots[LimbTorso].body.Position()
}

// AggregateVelocity is the torso velocity
func (r *Ragdoll) AggregateVelocity() physics.Vec {
	return r.slots[LimbTorso].body.Velocity()
}

// Owns maps a body back to its limb slot
func (r *Ragdoll) Owns(b *physics.Body) (Limb, bool) {
	if !r.Valid() || b == nil {
		return 0, false
	}
	l, ok := b.Data.(Limb)
	if !ok || l >= limbCount || r.slots[l].body != b {
		return 0, false
	}
	return l, true
}

// Teardown removes every joint and body from the world. Safe to call twice.
func (r *Ragdoll) Teardown() {
	if r == nil || r.torn {
		return
	}
	for i := range r.slots {
		if j := r.slots[i].joint; j != nil && !j.Removed() {
			_ = r.world.RemoveJoint(j)
		}
	}
	for i := range r.slots {
		if b := r.slots[i].body; b != nil && !b.Removed() {
			_ = r.world.RemoveBody(b)
		}
	}
	r.torn = true
}

// ResetPose moves every limb to the ready stance around base and zeroes all motion
func (r *Ragdoll) ResetPose(base physics.Vec) error {
	if !r.Valid() {
		return ErrTornDown
	}
	if !finiteVec(base) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, base.X, base.Y)
	}
	for _, l := range AllLimbs {
		b := r.slots[l].body
		pose := ReadyPose[l]
		if err := r.world.SetPosition(b, base.Add(pose.Offset)); err != nil {
			return fmt.Errorf("reset %s: %w", l, err)
		}
		if err := r.world.SetAngle(b, pose.Angle); err != nil {
			return fmt.Errorf("reset %s: %w", l, err)
		}
	}
	return r.zeroMotion()
}

// EnterSetup lowers limb friction so limbs can be dragged into a custom pose
func (r *Ragdoll) EnterSetup() error {
	return r.setFriction(r.cfg.SetupFriction)
}

// CommitPose ends posing: friction is restored and motion zeroed
func (r *Ragdoll) CommitPose() error {
	if err := r.setFriction(r.cfg.LimbFriction); err != nil {
		return err
	}
	return r.zeroMotion()
}

// DragLimb repositions one limb during setup and stops it
func (r *Ragdoll) DragLimb(l Limb, to physics.Vec) error {
	b := r.Body(l)
	if b == nil {
		return ErrTornDown
	}
	if err := r.world.SetPosition(b, to); err != nil {
		return err
	}
	if err := r.world.SetVelocity(b, physics.Vec{}); err != nil {
		return err
	}
	return r.world.SetAngularVelocity(b, 0)
}

// LimbNear returns the limb whose center is closest to p within radius
func (r *Ragdoll) LimbNear(p physics.Vec, radius float64) (Limb, bool) {
	if !r.Valid() {
		return 0, false
	}
	best, found := radius, false
	var limb Limb
	for _, l := range AllLimbs {
		if d := r.slots[l].body.Position().Distance(p); d <= best {
			best, limb, found = d, l, true
		}
	}
	return limb, found
}

// States appends the kinematics of every limb to dst
func (r *Ragdoll) States(dst []LimbState) []LimbState {
	if !r.Valid() {
		return dst
	}
	for _, l := range AllLimbs {
		b := r.slots[l].body
		w, h := b.Size()
		dst = append(dst, LimbState{
			Limb:            l,
			Position:        b.Position(),
			Angle:           b.Angle(),
			Velocity:        b.Velocity(),
			AngularVelocity: b.AngularVelocity(),
			Shape:           b.Kind(),
			Width:           w,
			Height:          h,
		})
	}
	return dst
}

func (r *Ragdoll) setFriction(f float64) error {
	if !r.Valid() {
		return ErrTornDown
	}
	for _, l := range AllLimbs {
		if err := r.world.SetFriction(r.slots[l].body, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *Ragdoll) zeroMotion() error {
	for _, l := range AllLimbs {
		b := r.slots[l].body
		if err := r.world.SetVelocity(b, physics.Vec{}); err != nil {
			return err
		}
		if err := r.world.SetAngularVelocity(b, 0); err != nil {
			return err
		}
	}
	return nil
}
