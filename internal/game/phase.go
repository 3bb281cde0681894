package game

import (
	"errors"
	"fmt"
)

// Phase is the top-level game state
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhasePlaying
	PhasePaused
	PhaseRespawning
	PhaseComplete
)

// ErrInvalidTransition is returned for transitions the machine does not allow
var ErrInvalidTransition = errors.New("invalid phase transition")

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseRespawning:
		return "respawning"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText lets phases appear by name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// phaseTransitions lists every allowed edge
var phaseTransitions = map[Phase][]Phase{
	PhaseSetup:      {PhasePlaying},
	PhasePlaying:    {PhasePaused, PhaseRespawning, PhaseComplete, PhaseSetup},
	PhasePaused:     {PhasePlaying, PhaseSetup},
	PhaseRespawning: {PhasePlaying, PhaseSetup},
	PhaseComplete:   {PhaseSetup},
}

// PhaseMachine holds the current phase and enforces the transition table
type PhaseMachine struct {
	current Phase
	since   uint64 // tick of the last transition
	hook    Hook
}

// NewPhaseMachine starts in setup
func NewPhaseMachine(hook Hook) *PhaseMachine {
	return &PhaseMachine{current: PhaseSetup, hook: hook}
}

// Current returns the active phase
func (m *PhaseMachine) Current() Phase { return m.current }

// Since returns the tick the active phase was entered
func (m *PhaseMachine) Since() uint64 { return m.since }

// CanTransition reports whether from→to is allowed
func CanTransition(from, to Phase) bool {
	for _, p := range phaseTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Transition moves to the next phase at the given tick
func (m *PhaseMachine) Transition(to Phase, tick uint64) error {
	if !CanTransition(m.current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}
	from := m.current
	m.current = to
	m.since = tick
	emit(m.hook, EventTypePhaseChanged, "phase", PhasePayload{From: from.String(), To: to.String()})
	return nil
}

// Reset forces setup regardless of the current phase; used on level load
func (m *PhaseMachine) Reset(tick uint64) {
	if m.current == PhaseSetup {
		return
	}
	from := m.current
	m.current = PhaseSetup
	m.since = tick
	emit(m.hook, EventTypePhaseChanged, "phase", PhasePayload{From: from.String(), To: PhaseSetup.String()})
}
