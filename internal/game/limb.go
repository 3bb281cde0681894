package game

import (
	"fmt"
	"math"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// Limb identifies one fixed slot of the ragdoll
type Limb uint8

const (
	LimbTorso Limb = iota
	LimbHead
	LimbLeftArm
	LimbRightArm
	LimbLeftLeg
	LimbRightLeg
	limbCount
)

// AllLimbs lists every slot, torso first
var AllLimbs = [limbCount]Limb{LimbTorso, LimbHead, LimbLeftArm, LimbRightArm, LimbLeftLeg, LimbRightLeg}

// ThrustLimbs lists the slots that carry a thruster
var ThrustLimbs = []Limb{LimbHead, LimbLeftArm, LimbRightArm, LimbLeftLeg, LimbRightLeg}

func (l Limb) String() string {
	switch l {
	case LimbTorso:
		return "torso"
	case LimbHead:
		return config.LimbHead
	case LimbLeftArm:
		return config.LimbLeftArm
	case LimbRightArm:
		return config.LimbRightArm
	case LimbLeftLeg:
		return config.LimbLeftLeg
	case LimbRightLeg:
		return config.LimbRightLeg
	default:
		return "unknown"
	}
}

// ParseLimb maps a config name back to its slot
func ParseLimb(name string) (Limb, error) {
	for _, l := range AllLimbs {
		if l.String() == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown limb %q", name)
}

// limbShape is the collision geometry of a slot
type limbShape struct {
	kind   physics.ShapeKind
	width  float64
	height float64
	radius float64
}

// limbSpec is one row of the fixed topology table: the limb's shape and
// where its joint anchors sit.
type limbSpec struct {
	shape       limbShape
	limbAnchor  physics.Vec // joint point in limb-local space
	torsoAnchor physics.Vec // joint point in torso-local space
}

// offsetAt is where the limb center must sit, relative to an unrotated torso,
// for its anchor to land on the torso anchor when the limb is at angle.
func (s limbSpec) offsetAt(angle float64) physics.Vec {
	sin, cos := math.Sincos(angle)
	a := s.limbAnchor
	return s.torsoAnchor.Sub(physics.Vec{X: a.X*cos - a.Y*sin, Y: a.X*sin + a.Y*cos})
}

var limbTable = [limbCount]limbSpec{
	LimbTorso: {
		shape: limbShape{kind: physics.ShapeBox, width: 40, height: 60},
	},
	LimbHead: {
		shape:       limbShape{kind: physics.ShapeCircle, radius: 15},
		limbAnchor:  physics.Vec{X: 0, Y: 15},
		torsoAnchor: physics.Vec{X: 0, Y: -25},
	},
	LimbLeftArm: {
		shape:       limbShape{kind: physics.ShapeBox, width: 40, height: 10},
		limbAnchor:  physics.Vec{X: 15, Y: 0},
		torsoAnchor: physics.Vec{X: -20, Y: -15},
	},
	LimbRightArm: {
		shape:       limbShape{kind: physics.ShapeBox, width: 40, height: 10},
		limbAnchor:  physics.Vec{X: -15, Y: 0},
		torsoAnchor: physics.Vec{X: 20, Y: -15},
	},
	LimbLeftLeg: {
		shape:       limbShape{kind: physics.ShapeBox, width: 15, height: 40},
		limbAnchor:  physics.Vec{X: 0, Y: -15},
		torsoAnchor: physics.Vec{X: -15, Y: 25},
	},
	LimbRightLeg: {
		shape:       limbShape{kind: physics.ShapeBox, width: 15, height: 40},
		limbAnchor:  physics.Vec{X: 0, Y: -15},
		torsoAnchor: physics.Vec{X: 15, Y: 25},
	},
}

// PoseEntry is the canonical ready-stance placement of one limb
type PoseEntry struct {
	Offset physics.Vec
	Angle  float64
}

// readyAngles raises both arms 45 degrees; everything else hangs straight
var readyAngles = [limbCount]float64{
	LimbLeftArm:  -math.Pi / 4,
	LimbRightArm: math.Pi / 4,
}

// ReadyPose is the canonical standing arrangement relative to the torso.
// Every joint is closed in it, so a reset adds no energy.
var ReadyPose = func() [limbCount]PoseEntry {
	var pose [limbCount]PoseEntry
	for _, l := range ThrustLimbs {
		pose[l] = PoseEntry{Offset: limbTable[l].offsetAt(readyAngles[l]), Angle: readyAngles[l]}
	}
	return pose
}()

// LimbState is the read-back kinematics of one limb after a step
type LimbState struct {
	Limb            Limb
	Position        physics.Vec
	Angle           float64
	Velocity        physics.Vec
	AngularVelocity float64
	Shape           physics.ShapeKind
	Width           float64
	Height          float64
}
