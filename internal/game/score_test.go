package game

import (
	"testing"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

type saveRecorder struct{ saved []int }

func (s *saveRecorder) Save(score int) { s.saved = append(s.saved, score) }

func limbsAt(y, spin float64) []LimbState {
	out := make([]LimbState, 0, limbCount)
	for _, l := range AllLimbs {
		out = append(out, LimbState{Limb: l, Position: physics.Vec{Y: y}, AngularVelocity: spin})
	}
	return out
}

// TestScoreRotationMultiplierScenario tests speeds 0, 0.6, 0.6, 0.2 give 1, 1.1, 1.2, 1.15
func TestScoreRotationMultiplierScenario(t *testing.T) {
	s := NewScoreKeeper(config.DefaultScore(), 590, 0, nil, nil)
	speeds := []float64{0, 0.6, 0.6, 0.2}
	want := []float64{1, 1.1, 1.2, 1.15}
	for i, v := range speeds {
		s.Apply(ScoreSample{RotationSpeed: v})
		if got := s.State().Multiplier; !near(got, want[i], 1e-9) {
			t.Errorf("Tick %d: expected multiplier %v, got %v", i, want[i], got)
		}
	}
}

// TestScoreMultiplierBounds tests the cap of 8 and the floor of 1
func TestScoreMultiplierBounds(t *testing.T) {
	s := NewScoreKeeper(config.DefaultScore(), 590, 0, nil, nil)
	for i := 0; i < 200; i++ {
		s.Apply(ScoreSample{RotationSpeed: 3})
	}
	if got := s.State().Multiplier; got != 8 {
		t.Errorf("Expected cap 8, got %v", got)
	}
	for i := 0; i < 500; i++ {
		s.Apply(ScoreSample{})
	}
	if got := s.State().Multiplier; got != 1 {
		t.Errorf("Expected floor 1, got %v", got)
	}
}

// TestScoreAirborneRequiresAllLimbs tests one grounded limb grounds the character
func TestScoreAirborneRequiresAllLimbs(t *testing.T) {
	s := NewScoreKeeper(config.DefaultScore(), 590, 0, nil, nil)

	high := limbsAt(100, 0)
	if !s.Sample(high).Airborne {
		t.Error("Expected airborne with every limb high")
	}
	high[4].Position.Y = 580 // within the 30px clearance
	if s.Sample(high).Airborne {
		t.Error("Expected grounded with one limb near the floor")
	}
	if s.Sample(nil).Airborne {
		t.Error("Expected no limbs to be grounded")
	}

	spin := s.Sample(limbsAt(100, -1))
	if want := 6 * config.DefaultScore().RotationSensitivity; !near(spin.RotationSpeed, want, 1e-12) {
		t.Errorf("Expected summed |w| x sensitivity %v, got %v", want, spin.RotationSpeed)
	}
}

// TestScoreAirTimeAndBest tests air time points and best score persistence
func TestScoreAirTimeAndBest(t *testing.T) {
	store := &saveRecorder{}
	rec := NewRecorder(64)
	s := NewScoreKeeper(config.DefaultScore(), 590, 5, store, rec)

	for i := 0; i < 60; i++ {
		s.Apply(ScoreSample{Airborne: true})
	}
	st := s.State()
	if st.AirTime != 60 {
		t.Errorf("Expected 60 ticks of air time, got %d", st.AirTime)
	}
	// floor(k * 0.1) summed over k = 1..60
	want := 0
	for k := 1; k <= 60; k++ {
		want += int(float64(k) * 0.1)
	}
	if st.Current != want {
		t.Errorf("Expected %d air points, got %d", want, st.Current)
	}
	if st.Best != want || len(store.saved) == 0 || store.saved[len(store.saved)-1] != want {
		t.Errorf("Expected best %d persisted, got best %d saves %v", want, st.Best, store.saved)
	}
	if rec.Count(EventTypeBestScore) == 0 {
		t.Error("Expected best score events")
	}

	s.Apply(ScoreSample{})
	if s.State().AirTime != 0 {
		t.Error("Expected landing to reset air time")
	}

	s.ResetRun()
	if st := s.State(); st.Current != 0 || st.Best != want {
		t.Errorf("Expected run reset keeping best, got %+v", st)
	}
}

// TestScoreCredit tests pickups add their raw value
func TestScoreCredit(t *testing.T) {
	s := NewScoreKeeper(config.DefaultScore(), 590, 0, nil, nil)
	s.Credit(100)
	s.Credit(-5)
	if got := s.State().Current; got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}
}

// TestObjectiveCompletesOnce tests the completion event fires exactly once
func TestObjectiveCompletesOnce(t *testing.T) {
	rec := NewRecorder(16)
	o := NewObjective("training_2", 2, rec)
	if o.Record() {
		t.Error("Expected no completion after one collection")
	}
	if !o.Record() {
		t.Error("Expected completion at the target")
	}
	if o.Record() {
		t.Error("Expected no second completion")
	}
	if p := o.Progress(); !p.Completed || p.Collected != 3 || p.Target != 2 {
		t.Errorf("Unexpected progress %+v", p)
	}
	if got := rec.Count(EventTypeObjectiveComplete); got != 1 {
		t.Errorf("Expected one completion event, got %d", got)
	}

	var none *Objective
	if none.Record() || none.Completed() {
		t.Error("Expected nil objective to be inert")
	}
	if NewObjective("endless", 0, nil).Record() {
		t.Error("Expected zero target never to complete")
	}
}
