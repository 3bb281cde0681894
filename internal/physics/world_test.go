package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoxRejectsBadDimensions(t *testing.T) {
	w := NewWorld(Vec{Y: 900})

	_, err := w.NewBox(0, 0, 0, 10, BodyOptions{})
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = w.NewBox(math.NaN(), 0, 10, 10, BodyOptions{})
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = w.NewCircle(0, 0, -1, BodyOptions{})
	assert.ErrorIs(t, err, ErrInvalidShape)

	assert.Equal(t, 0, w.BodyCount())
}

func TestGravityMovesDynamicBodies(t *testing.T) {
	w := NewWorld(Vec{Y: 900})
	ball, err := w.NewCircle(0, 0, 10, BodyOptions{})
	require.NoError(t, err)
	ground, err := w.NewBox(0, 500, 100, 20, BodyOptions{Static: true})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		w.Step(1.0 / 60)
	}

	assert.Greater(t, ball.Position().Y, 0.0)
	assert.Equal(t, 500.0, ground.Position().Y)
}

func TestRemovedBodyRejectsMutation(t *testing.T) {
	w := NewWorld(Vec{})
	b, err := w.NewBox(0, 0, 10, 10, BodyOptions{})
	require.NoError(t, err)

	require.NoError(t, w.RemoveBody(b))
	assert.True(t, b.Removed())
	assert.False(t, w.Contains(b))

	assert.ErrorIs(t, w.RemoveBody(b), ErrBodyRemoved)
	assert.ErrorIs(t, w.ApplyForce(b, Vec{X: 1}, b.Position()), ErrBodyRemoved)
	assert.ErrorIs(t, w.SetVelocity(b, Vec{}), ErrBodyRemoved)
	assert.ErrorIs(t, w.ApplyForce(nil, Vec{}, Vec{}), ErrNilBody)
}

func TestApplyForceRejectsNonFinite(t *testing.T) {
	w := NewWorld(Vec{})
	b, err := w.NewBox(0, 0, 10, 10, BodyOptions{})
	require.NoError(t, err)

	assert.Error(t, w.ApplyForce(b, Vec{X: math.Inf(1)}, b.Position()))
	assert.NoError(t, w.ApplyForce(b, Vec{X: 100}, b.Position()))

	w.Step(1.0 / 60)
	assert.Greater(t, b.Velocity().X, 0.0)
}

func TestCollisionStartDeliveredAfterStep(t *testing.T) {
	w := NewWorld(Vec{Y: 900})
	faller, err := w.NewCircle(0, 0, 10, BodyOptions{})
	require.NoError(t, err)
	sensor, err := w.NewCircle(0, 40, 15, BodyOptions{Static: true, Sensor: true})
	require.NoError(t, err)

	hits := 0
	w.OnCollisionStart(func(a, b *Body) {
		if a == sensor || b == sensor {
			hits++
			// Mutation is legal here because the step has finished.
			assert.NoError(t, w.RemoveBody(sensor))
		}
	})

	for i := 0; i < 60 && hits == 0; i++ {
		w.Step(1.0 / 60)
	}

	assert.Equal(t, 1, hits)
	assert.True(t, sensor.Removed())
	assert.False(t, faller.Removed())
}

func TestMovedStaticSensorStillCollides(t *testing.T) {
	w := NewWorld(Vec{Y: 900})
	faller, err := w.NewCircle(0, 0, 10, BodyOptions{})
	require.NoError(t, err)
	sensor, err := w.NewCircle(1000, 40, 15, BodyOptions{Static: true, Sensor: true})
	require.NoError(t, err)

	require.NoError(t, w.SetPosition(sensor, Vec{X: 0, Y: 40}))
	assert.Equal(t, Vec{X: 0, Y: 40}, sensor.Position())
	assert.True(t, w.Contains(sensor))

	hits := 0
	w.OnCollisionStart(func(a, b *Body) {
		if (a == sensor && b == faller) || (a == faller && b == sensor) {
			hits++
		}
	})
	for i := 0; i < 60 && hits == 0; i++ {
		w.Step(1.0 / 60)
	}
	assert.Equal(t, 1, hits)

	assert.Error(t, w.SetPosition(sensor, Vec{X: math.NaN()}))
}

func TestJointHoldsBodiesTogether(t *testing.T) {
	w := NewWorld(Vec{Y: 900})
	anchor, err := w.NewBox(0, 0, 20, 20, BodyOptions{Group: 1})
	require.NoError(t, err)
	arm, err := w.NewBox(30, 0, 40, 10, BodyOptions{Group: 1})
	require.NoError(t, err)

	j, err := w.NewJoint(arm, anchor, Vec{X: -20}, Vec{X: 10}, 0.6)
	require.NoError(t, err)
	assert.Equal(t, 1, w.JointCount())

	for i := 0; i < 30; i++ {
		w.Step(1.0 / 60)
	}
	gap := arm.LocalToWorld(Vec{X: -20}).Distance(anchor.LocalToWorld(Vec{X: 10}))
	assert.Less(t, gap, 5.0)

	require.NoError(t, w.RemoveJoint(j))
	assert.ErrorIs(t, w.RemoveJoint(j), ErrBodyRemoved)
	assert.Equal(t, 0, w.JointCount())
}

func TestJointRejectsBadStiffness(t *testing.T) {
	w := NewWorld(Vec{})
	a, _ := w.NewBox(0, 0, 10, 10, BodyOptions{})
	b, _ := w.NewBox(10, 0, 10, 10, BodyOptions{})

	_, err := w.NewJoint(a, b, Vec{}, Vec{}, 0)
	assert.Error(t, err)
	_, err = w.NewJoint(a, b, Vec{}, Vec{}, 1.5)
	assert.Error(t, err)
}

func TestLocalToWorldTracksRotation(t *testing.T) {
	w := NewWorld(Vec{})
	b, err := w.NewBox(100, 50, 10, 40, BodyOptions{})
	require.NoError(t, err)
	require.NoError(t, w.SetAngle(b, math.Pi/2))

	p := b.LocalToWorld(Vec{X: 0, Y: 20})
	assert.InDelta(t, 80.0, p.X, 1e-9)
	assert.InDelta(t, 50.0, p.Y, 1e-9)
}
