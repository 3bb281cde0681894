package game

import (
	"errors"
	"math"
	"testing"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

func newTestRagdoll(t *testing.T) (*physics.World, *Ragdoll) {
	t.Helper()
	world := physics.NewWorld(physics.Vec{Y: 1000})
	r, err := NewRagdoll(world, physics.Vec{X: 100, Y: 200}, config.DefaultPhysics())
	if err != nil {
		t.Fatalf("NewRagdoll failed: %v", err)
	}
	return world, r
}

// TestNewRagdollBuildsLimbTree tests six bodies joined by five joints
func TestNewRagdollBuildsLimbTree(t *testing.T) {
	world, r := newTestRagdoll(t)

	if world.BodyCount() != 6 {
		t.Errorf("Expected 6 bodies, got %d", world.BodyCount())
	}
	if world.JointCount() != 5 {
		t.Errorf("Expected 5 joints, got %d", world.JointCount())
	}
	if r.Joint(LimbTorso) != nil {
		t.Error("Expected torso to have no parent joint")
	}
	for _, l := range ThrustLimbs {
		a, b := r.Joint(l).Bodies()
		if a != r.Body(l) || b != r.Body(LimbTorso) {
			t.Errorf("Expected %s joint to pin limb to torso", l)
		}
	}
	if got := r.AggregatePosition(); !nearVec(got, physics.Vec{X: 100, Y: 200}, 1e-9) {
		t.Errorf("Expected aggregate at torso (100,200), got %v", got)
	}
}

// TestNewRagdollRejectsNonFinite tests construction failure leaves no bodies behind
func TestNewRagdollRejectsNonFinite(t *testing.T) {
	world := physics.NewWorld(physics.Vec{})
	_, err := NewRagdoll(world, physics.Vec{X: math.NaN()}, config.DefaultPhysics())
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("Expected ErrInvalidPosition, got %v", err)
	}
	if world.BodyCount() != 0 {
		t.Errorf("Expected no bodies, got %d", world.BodyCount())
	}
}

// TestResetPoseZeroesMotion tests the ready stance and zero velocities after a reset
func TestResetPoseZeroesMotion(t *testing.T) {
	world, r := newTestRagdoll(t)
	for _, l := range AllLimbs {
		if err := world.SetVelocity(r.Body(l), physics.Vec{X: 300, Y: -200}); err != nil {
			t.Fatal(err)
		}
		if err := world.SetAngularVelocity(r.Body(l), 5); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 20; i++ {
		world.Step(1.0 / 60)
	}

	base := physics.Vec{X: -50, Y: 400}
	if err := r.ResetPose(base); err != nil {
		t.Fatalf("ResetPose failed: %v", err)
	}
	for _, l := range AllLimbs {
		b := r.Body(l)
		want := base.Add(ReadyPose[l].Offset)
		if !nearVec(b.Position(), want, 1e-9) {
			t.Errorf("%s: expected position %v, got %v", l, want, b.Position())
		}
		if !near(b.Angle(), ReadyPose[l].Angle, 1e-9) {
			t.Errorf("%s: expected angle %v, got %v", l, ReadyPose[l].Angle, b.Angle())
		}
		if b.Velocity().Length() != 0 || b.AngularVelocity() != 0 {
			t.Errorf("%s: expected zero motion, got v=%v w=%v", l, b.Velocity(), b.AngularVelocity())
		}
	}
}

func jointGaps(r *Ragdoll) map[Limb]float64 {
	gaps := make(map[Limb]float64, len(ThrustLimbs))
	torso := r.Body(LimbTorso)
	for _, l := range ThrustLimbs {
		spec := limbTable[l]
		gaps[l] = r.Body(l).LocalToWorld(spec.limbAnchor).Distance(torso.LocalToWorld(spec.torsoAnchor))
	}
	return gaps
}

// TestJointsClosedOnBuildAndReset tests every limb anchor sits on its torso anchor
func TestJointsClosedOnBuildAndReset(t *testing.T) {
	_, r := newTestRagdoll(t)
	for l, gap := range jointGaps(r) {
		if gap > 1e-9 {
			t.Errorf("%s: expected closed joint after build, gap %v", l, gap)
		}
	}

	if err := r.ResetPose(physics.Vec{X: 321, Y: -45}); err != nil {
		t.Fatalf("ResetPose failed: %v", err)
	}
	for l, gap := range jointGaps(r) {
		if gap > 1e-9 {
			t.Errorf("%s: expected closed joint after reset, gap %v", l, gap)
		}
	}
	if got := ReadyPose[LimbLeftArm].Offset; !nearVec(got, physics.Vec{X: -30.6066, Y: -4.3934}, 1e-3) {
		t.Errorf("Unexpected left arm pose offset %v", got)
	}
}

// TestSetupFriction tests posing friction and its restoration
func TestSetupFriction(t *testing.T) {
	_, r := newTestRagdoll(t)
	cfg := config.DefaultPhysics()

	if err := r.EnterSetup(); err != nil {
		t.Fatal(err)
	}
	for _, l := range AllLimbs {
		if got := r.Body(l).Friction(); got != cfg.SetupFriction {
			t.Errorf("%s: expected setup friction %v, got %v", l, cfg.SetupFriction, got)
		}
	}
	if err := r.CommitPose(); err != nil {
		t.Fatal(err)
	}
	for _, l := range AllLimbs {
		if got := r.Body(l).Friction(); got != cfg.LimbFriction {
			t.Errorf("%s: expected play friction %v, got %v", l, cfg.LimbFriction, got)
		}
	}
}

// TestTeardownIsIdempotent tests removal and post-teardown behavior
func TestTeardownIsIdempotent(t *testing.T) {
	world, r := newTestRagdoll(t)
	r.Teardown()
	r.Teardown()

	if world.BodyCount() != 0 || world.JointCount() != 0 {
		t.Errorf("Expected empty world, got %d bodies %d joints", world.BodyCount(), world.JointCount())
	}
	if r.Valid() {
		t.Error("Expected ragdoll to be invalid after teardown")
	}
	if r.Body(LimbHead) != nil {
		t.Error("Expected nil body after teardown")
	}
	if err := r.ResetPose(physics.Vec{}); !errors.Is(err, ErrTornDown) {
		t.Errorf("Expected ErrTornDown, got %v", err)
	}
}

// TestOwnsAndLimbNear tests body-to-limb lookups
func TestOwnsAndLimbNear(t *testing.T) {
	world, r := newTestRagdoll(t)

	l, ok := r.Owns(r.Body(LimbLeftLeg))
	if !ok || l != LimbLeftLeg {
		t.Errorf("Expected leftLeg, got %v %v", l, ok)
	}
	other, err := world.NewBox(0, 0, 10, 10, physics.BodyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Owns(other); ok {
		t.Error("Expected foreign body not to be owned")
	}

	head := r.Body(LimbHead).Position()
	if l, ok := r.LimbNear(head.Add(physics.Vec{X: 5}), 30); !ok || l != LimbHead {
		t.Errorf("Expected head near its center, got %v %v", l, ok)
	}
	if _, ok := r.LimbNear(physics.Vec{X: 5000}, 30); ok {
		t.Error("Expected no limb far away")
	}
}

// TestDragLimb tests the setup drag stops the limb at the pointer
func TestDragLimb(t *testing.T) {
	_, r := newTestRagdoll(t)
	to := physics.Vec{X: 60, Y: 150}
	if err := r.DragLimb(LimbLeftArm, to); err != nil {
		t.Fatal(err)
	}
	b := r.Body(LimbLeftArm)
	if !nearVec(b.Position(), to, 1e-9) || b.Velocity().Length() != 0 {
		t.Errorf("Expected arm at %v at rest, got %v moving %v", to, b.Position(), b.Velocity())
	}
}
