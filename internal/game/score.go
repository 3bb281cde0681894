package game

import (
	"math"

	"rocket-ragdoll/internal/config"
)

// BestScoreSaver persists the best score. Save must not block the tick.
type BestScoreSaver interface {
	Save(score int)
}

// ScoreSample is what the evaluator derives from one tick of limb kinematics
type ScoreSample struct {
	Airborne      bool
	RotationSpeed float64
}

// ScoreState is a read-only view of the score
type ScoreState struct {
	Current    int     `json:"current"`
	Multiplier float64 `json:"multiplier"`
	Best       int     `json:"best"`
	AirTime    int     `json:"airTime"` // ticks
	Airborne   bool    `json:"airborne"`
}

// ScoreKeeper turns air time and spin into points
type ScoreKeeper struct {
	cfg        config.ScoreConfig
	floorY     float64
	current    int
	multiplier float64
	best       int
	airTime    int
	airborne   bool
	store      BestScoreSaver
	hook       Hook
}

// NewScoreKeeper starts from the persisted best score
func NewScoreKeeper(cfg config.ScoreConfig, floorY float64, best int, store BestScoreSaver, hook Hook) *ScoreKeeper {
	return &ScoreKeeper{
		cfg:        cfg,
		floorY:     floorY,
		multiplier: 1,
		best:       best,
		store:      store,
		hook:       hook,
	}
}

// Sample derives airborne status and weighted rotation speed. The character is
// airborne only while every limb is above floorY minus the ground clearance.
func (s *ScoreKeeper) Sample(limbs []LimbState) ScoreSample {
	if len(limbs) == 0 {
		return ScoreSample{}
	}
	threshold := s.floorY - s.cfg.GroundClearance
	airborne := true
	var spin float64
	for _, l := range limbs {
		if l.Position.Y > threshold {
			airborne = false
		}
		spin += math.Abs(l.AngularVelocity)
	}
	return ScoreSample{Airborne: airborne, RotationSpeed: spin * s.cfg.RotationSensitivity}
}

// Evaluate samples the limbs and applies the result
func (s *ScoreKeeper) Evaluate(limbs []LimbState) ScoreSample {
	sample := s.Sample(limbs)
	s.Apply(sample)
	return sample
}

// Apply advances the multiplier, rotation points and air time by one tick
func (s *ScoreKeeper) Apply(sample ScoreSample) {
	rot := sample.RotationSpeed
	if math.IsNaN(rot) || math.IsInf(rot, 0) {
		rot = 0
	}

	if rot > s.cfg.RotationThreshold {
		s.multiplier = math.Min(s.multiplier+s.cfg.MultiplierStep, s.cfg.MaxMultiplier)
		s.current += int(math.Floor(rot * s.cfg.RotationPoints * s.multiplier))
	} else {
		s.multiplier = math.Max(1, s.multiplier-s.cfg.MultiplierDecay)
	}

	s.airborne = sample.Airborne
	if sample.Airborne {
		s.airTime++
		s.current += int(math.Floor(float64(s.airTime) * s.cfg.AirTimeRate))
	} else {
		s.airTime = 0
	}

	s.checkBest()
}

// Credit adds points from a pickup
func (s *ScoreKeeper) Credit(points int) {
	if points <= 0 {
		return
	}
	s.current += points
	s.checkBest()
}

// ResetRun zeroes the current run; the best score is kept
func (s *ScoreKeeper) ResetRun() {
	s.current = 0
	s.multiplier = 1
	s.airTime = 0
	s.airborne = false
}

// State returns the current score view
func (s *ScoreKeeper) State() ScoreState {
	return ScoreState{
		Current:    s.current,
		Multiplier: s.multiplier,
		Best:       s.best,
		AirTime:    s.airTime,
		Airborne:   s.airborne,
	}
}

func (s *ScoreKeeper) checkBest() {
	if s.current <= s.best {
		return
	}
	s.best = s.current
	if s.store != nil {
		s.store.Save(s.best)
	}
	emit(s.hook, EventTypeBestScore, "score", ScorePayload{Score: s.best})
}

// ObjectiveProgress is a read-only view of a level objective
type ObjectiveProgress struct {
	LevelID   string `json:"levelId"`
	Collected int    `json:"collected"`
	Target    int    `json:"target"`
	Completed bool   `json:"completed"`
}

// Objective counts collections toward a target and completes exactly once
type Objective struct {
	levelID   string
	target    int
	collected int
	completed bool
	hook      Hook
}

// NewObjective creates an objective; a target of zero never completes
func NewObjective(levelID string, target int, hook Hook) *Objective {
	return &Objective{levelID: levelID, target: target, hook: hook}
}

// Record counts one collection and reports whether this call completed the objective
func (o *Objective) Record() bool {
	if o == nil {
		return false
	}
	o.collected++
	return o.evaluate()
}

func (o *Objective) evaluate() bool {
	if o.completed || o.target <= 0 || o.collected < o.target {
		return false
	}
	o.completed = true
	emit(o.hook, EventTypeObjectiveComplete, o.levelID, ObjectivePayload{
		LevelID: o.levelID, Collected: o.collected, Target: o.target,
	})
	return true
}

// Completed reports whether the target was reached
func (o *Objective) Completed() bool {
	return o != nil && o.completed
}

// Progress returns the objective view
func (o *Objective) Progress() ObjectiveProgress {
	if o == nil {
		return ObjectiveProgress{}
	}
	return ObjectiveProgress{
		LevelID:   o.levelID,
		Collected: o.collected,
		Target:    o.target,
		Completed: o.completed,
	}
}
