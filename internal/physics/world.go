// Package physics adapts the jakecoffman/cp rigid-body library to the small
// surface the game needs: boxes, circles, pivot joints, forces and
// collision-start notifications delivered outside of the solver step.
package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
)

// Vec is the 2D vector type shared with the solver.
type Vec = cp.Vector

const collisionTypeAny cp.CollisionType = 1

var (
	// ErrBodyRemoved is returned when a handle refers to a body that has been removed
	ErrBodyRemoved = errors.New("physics: body removed")
	// ErrNilBody is returned for nil handles
	ErrNilBody = errors.New("physics: nil body")
	// ErrWorldLocked is returned when the world is mutated during Step
	ErrWorldLocked = errors.New("physics: world is stepping")
	// ErrInvalidShape is returned for non-positive or non-finite dimensions
	ErrInvalidShape = errors.New("physics: invalid shape")
)

// ShapeKind identifies the collision shape of a body
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeCircle
)

func (k ShapeKind) String() string {
	if k == ShapeCircle {
		return "circle"
	}
	return "box"
}

// BodyOptions mirrors the options a level or a limb can ask for
type BodyOptions struct {
	Static      bool
	Sensor      bool
	Friction    float64
	Restitution float64
	Density     float64 // mass per square unit; ignored for static bodies
	Group       uint    // shapes sharing a non-zero group never collide
	Label       string  // render hint
}

// Body is a handle to one rigid body and its single shape.
// A handle stays readable after removal, but every mutation reports ErrBodyRemoved.
type Body struct {
	id      uint64
	kind    ShapeKind
	label   string
	width   float64
	height  float64
	radius  float64
	static  bool
	sensor  bool
	body    *cp.Body
	shape   *cp.Shape
	removed bool

	// Data lets owners attach their own bookkeeping (limb slot, collectible id)
	Data interface{}
}

func (b *Body) ID() uint64        { return b.id }
func (b *Body) Kind() ShapeKind   { return b.kind }
func (b *Body) Label() string     { return b.label }
func (b *Body) IsStatic() bool    { return b.static }
func (b *Body) IsSensor() bool    { return b.sensor }
func (b *Body) Radius() float64   { return b.radius }
func (b *Body) Removed() bool     { return b.removed }
func (b *Body) Position() Vec     { return b.body.Position() }
func (b *Body) Angle() float64    { return b.body.Angle() }
func (b *Body) Velocity() Vec     { return b.body.Velocity() }
func (b *Body) Mass() float64     { return b.body.Mass() }
func (b *Body) Friction() float64 { return b.shape.Friction() }

// Size returns width and height; circles report their diameter for both.
func (b *Body) Size() (float64, float64) {
	if b.kind == ShapeCircle {
		return b.radius * 2, b.radius * 2
	}
	return b.width, b.height
}

func (b *Body) AngularVelocity() float64 { return b.body.AngularVelocity() }

// LocalToWorld rotates a body-local offset by the current angle and adds the position
func (b *Body) LocalToWorld(local Vec) Vec {
	return b.body.Position().Add(local.Rotate(cp.ForAngle(b.body.Angle())))
}

// Joint is a pivot constraint between two bodies
type Joint struct {
	a, b       *Body
	constraint *cp.Constraint
	removed    bool
}

func (j *Joint) Bodies() (*Body, *Body) { return j.a, j.b }
func (j *Joint) Removed() bool          { return j.removed }

// CollisionFunc receives the two bodies of a contact that just started
type CollisionFunc func(a, b *Body)

type contact struct {
	a, b *Body
}

// World owns the solver space and every handle created through it
type World struct {
	space    *cp.Space
	nextID   uint64
	bodies   map[uint64]*Body
	byShape  map[*cp.Shape]*Body
	joints   map[*Joint]struct{}
	pending  []contact
	handlers []CollisionFunc
	stepping bool
}

// NewWorld creates a world with the given gravity (y points down)
func NewWorld(gravity Vec) *World {
	w := &World{
		space:   cp.NewSpace(),
		bodies:  make(map[uint64]*Body),
		byShape: make(map[*cp.Shape]*Body),
		joints:  make(map[*Joint]struct{}),
		pending: make([]contact, 0, 64),
	}
	w.space.SetGravity(gravity)

	handler := w.space.NewCollisionHandler(collisionTypeAny, collisionTypeAny)
	handler.UserData = w
	handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		world, ok := userData.(*World)
		if !ok || world == nil {
			return true
		}
		shapeA, shapeB := arb.Shapes()
		a, okA := world.byShape[shapeA]
		b, okB := world.byShape[shapeB]
		if okA && okB {
			// Contacts are only recorded here; handlers run after Step returns.
			world.pending = append(world.pending, contact{a: a, b: b})
		}
		return true
	}
	return w
}

// SetGravity replaces the global gravity vector
func (w *World) SetGravity(g Vec) { w.space.SetGravity(g) }

// Gravity returns the global gravity vector
func (w *World) Gravity() Vec { return w.space.Gravity() }

// BodyCount returns the number of live bodies
func (w *World) BodyCount() int { return len(w.bodies) }

// JointCount returns the number of live joints
func (w *World) JointCount() int { return len(w.joints) }

// Contains reports whether the body is live in this world
func (w *World) Contains(b *Body) bool {
	if b == nil || b.removed {
		return false
	}
	_, ok := w.bodies[b.id]
	return ok
}

// OnCollisionStart subscribes to contact-start events
func (w *World) OnCollisionStart(fn CollisionFunc) {
	w.handlers = append(w.handlers, fn)
}

// NewBox creates a box centered at (x, y)
func (w *World) NewBox(x, y, width, height float64, opts BodyOptions) (*Body, error) {
	if !finite(x, y) || !positive(width, height) {
		return nil, fmt.Errorf("%w: box %.1fx%.1f at (%.1f, %.1f)", ErrInvalidShape, width, height, x, y)
	}
	b := &Body{kind: ShapeBox, width: width, height: height}
	mass := width * height * density(opts)
	return w.add(b, x, y, opts, mass, cp.MomentForBox(mass, width, height), func(body *cp.Body) *cp.Shape {
		return cp.NewBox(body, width, height, 0)
	})
}

// NewCircle creates a circle centered at (x, y)
func (w *World) NewCircle(x, y, radius float64, opts BodyOptions) (*Body, error) {
	if !finite(x, y) || !positive(radius) {
		return nil, fmt.Errorf("%w: circle r=%.1f at (%.1f, %.1f)", ErrInvalidShape, radius, x, y)
	}
	b := &Body{kind: ShapeCircle, radius: radius}
	mass := math.Pi * radius * radius * density(opts)
	return w.add(b, x, y, opts, mass, cp.MomentForCircle(mass, 0, radius, cp.Vector{}), func(body *cp.Body) *cp.Shape {
		return cp.NewCircle(body, radius, cp.Vector{})
	})
}

func (w *World) add(b *Body, x, y float64, opts BodyOptions, mass, moment float64, mk func(*cp.Body) *cp.Shape) (*Body, error) {
	if w.stepping {
		return nil, ErrWorldLocked
	}

	var body *cp.Body
	if opts.Static {
		body = cp.NewStaticBody()
	} else {
		body = cp.NewBody(mass, moment)
	}
	body.SetPosition(cp.Vector{X: x, Y: y})

	shape := mk(body)
	shape.SetFriction(opts.Friction)
	shape.SetElasticity(opts.Restitution)
	shape.SetSensor(opts.Sensor)
	shape.SetCollisionType(collisionTypeAny)
	if opts.Group != 0 {
		shape.SetFilter(cp.NewShapeFilter(opts.Group, cp.ALL_CATEGORIES, cp.ALL_CATEGORIES))
	}

	w.space.AddBody(body)
	w.space.AddShape(shape)

	w.nextID++
	b.id = w.nextID
	b.label = opts.Label
	b.static = opts.Static
	b.sensor = opts.Sensor
	b.body = body
	b.shape = shape
	body.UserData = b

	w.bodies[b.id] = b
	w.byShape[shape] = b
	return b, nil
}

// NewJoint pins anchorA on a to anchorB on b. Stiffness in (0, 1] maps to the
// fraction of joint error left uncorrected after one second.
func (w *World) NewJoint(a, b *Body, anchorA, anchorB Vec, stiffness float64) (*Joint, error) {
	if w.stepping {
		return nil, ErrWorldLocked
	}
	if err := w.check(a); err != nil {
		return nil, err
	}
	if err := w.check(b); err != nil {
		return nil, err
	}
	if stiffness <= 0 || stiffness > 1 || math.IsNaN(stiffness) {
		return nil, fmt.Errorf("physics: stiffness %v out of (0, 1]", stiffness)
	}

	c := cp.NewPivotJoint2(a.body, b.body, anchorA, anchorB)
	c.SetErrorBias(math.Pow(1-stiffness, 60))
	w.space.AddConstraint(c)

	j := &Joint{a: a, b: b, constraint: c}
	w.joints[j] = struct{}{}
	return j, nil
}

// RemoveBody detaches the body and its shape from the world
func (w *World) RemoveBody(b *Body) error {
	if w.stepping {
		return ErrWorldLocked
	}
	if err := w.check(b); err != nil {
		return err
	}
	if w.space.ContainsShape(b.shape) {
		w.space.RemoveShape(b.shape)
	}
	if w.space.ContainsBody(b.body) {
		w.space.RemoveBody(b.body)
	}
	delete(w.byShape, b.shape)
	delete(w.bodies, b.id)
	b.removed = true
	return nil
}

// RemoveJoint detaches a joint from the world
func (w *World) RemoveJoint(j *Joint) error {
	if w.stepping {
		return ErrWorldLocked
	}
	if j == nil {
		return ErrNilBody
	}
	if j.removed {
		return ErrBodyRemoved
	}
	if w.space.ContainsConstraint(j.constraint) {
		w.space.RemoveConstraint(j.constraint)
	}
	delete(w.joints, j)
	j.removed = true
	return nil
}

// ApplyForce applies a world-space force at a world-space point.
// Non-finite forces never reach the solver.
func (w *World) ApplyForce(b *Body, force, point Vec) error {
	if err := w.check(b); err != nil {
		return err
	}
	if !finite(force.X, force.Y, point.X, point.Y) {
		return fmt.Errorf("physics: non-finite force %v at %v", force, point)
	}
	b.body.ApplyForceAtWorldPoint(force, point)
	return nil
}

// SetPosition teleports the body
func (w *World) SetPosition(b *Body, p Vec) error {
	if err := w.check(b); err != nil {
		return err
	}
	if !finite(p.X, p.Y) {
		return fmt.Errorf("physics: non-finite position %v", p)
	}
	if !b.static || !w.space.ContainsShape(b.shape) {
		b.body.SetPosition(p)
		return nil
	}
	if w.stepping {
		return ErrWorldLocked
	}
	// static shapes are only re-hashed when they enter the space
	w.space.RemoveShape(b.shape)
	b.body.SetPosition(p)
	w.space.AddShape(b.shape)
	return nil
}

// SetAngle sets the body orientation in radians
func (w *World) SetAngle(b *Body, angle float64) error {
	if err := w.check(b); err != nil {
		return err
	}
	b.body.SetAngle(angle)
	return nil
}

// SetVelocity sets the linear velocity
func (w *World) SetVelocity(b *Body, v Vec) error {
	if err := w.check(b); err != nil {
		return err
	}
	b.body.SetVelocityVector(v)
	return nil
}

// SetAngularVelocity sets the angular velocity in radians per second
func (w *World) SetAngularVelocity(b *Body, av float64) error {
	if err := w.check(b); err != nil {
		return err
	}
	b.body.SetAngularVelocity(av)
	return nil
}

// SetFriction changes the friction of the body's shape
func (w *World) SetFriction(b *Body, friction float64) error {
	if err := w.check(b); err != nil {
		return err
	}
	b.shape.SetFriction(friction)
	return nil
}

// Step advances the simulation once and then delivers collision-start events
// gathered during the step. Handlers may freely mutate the world.
func (w *World) Step(dt float64) {
	w.step(dt)

	if len(w.pending) == 0 {
		return
	}
	contacts := w.pending
	w.pending = make([]contact, 0, cap(contacts))
	for _, c := range contacts {
		for _, fn := range w.handlers {
			fn(c.a, c.b)
		}
	}
}

func (w *World) step(dt float64) {
	w.stepping = true
	defer func() { w.stepping = false }()
	w.space.Step(dt)
}

func (w *World) check(b *Body) error {
	if b == nil || b.body == nil {
		return ErrNilBody
	}
	if b.removed {
		return ErrBodyRemoved
	}
	if _, ok := w.bodies[b.id]; !ok {
		return ErrBodyRemoved
	}
	return nil
}

func density(opts BodyOptions) float64 {
	if opts.Density > 0 {
		return opts.Density
	}
	return 0.001
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func positive(vals ...float64) bool {
	for _, v := range vals {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
