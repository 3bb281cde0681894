package game

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary
	EventTypeThrustActivated
	EventTypeThrustReleased
	EventTypeForceApplied
	EventTypeFuelExhausted
	EventTypeChunkGenerated
	EventTypeChunkEvicted
	EventTypeCollected
	EventTypeCollectibleRemoved
	EventTypeObjectiveComplete
	EventTypeBestScore
	EventTypePhaseChanged
	EventTypeRespawn
	EventTypeLevelStarted
	EventTypeInvalidReference
	EventTypeSubsystemFailure
	EventTypeConfigError
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core structured observability record
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	Source    string          `json:"source"` // Limb, chunk or subsystem that raised it
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeThrustActivated:
		return "thrust_activated"
	case EventTypeThrustReleased:
		return "thrust_released"
	case EventTypeForceApplied:
		return "force_applied"
	case EventTypeFuelExhausted:
		return "fuel_exhausted"
	case EventTypeChunkGenerated:
		return "chunk_generated"
	case EventTypeChunkEvicted:
		return "chunk_evicted"
	case EventTypeCollected:
		return "collected"
	case EventTypeCollectibleRemoved:
		return "collectible_removed"
	case EventTypeObjectiveComplete:
		return "objective_complete"
	case EventTypeBestScore:
		return "best_score"
	case EventTypePhaseChanged:
		return "phase_changed"
	case EventTypeRespawn:
		return "respawn"
	case EventTypeLevelStarted:
		return "level_started"
	case EventTypeInvalidReference:
		return "invalid_reference"
	case EventTypeSubsystemFailure:
		return "subsystem_failure"
	case EventTypeConfigError:
		return "config_error"
	default:
		return "unknown"
	}
}

// MarshalText lets event types appear by name in JSON
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(text []byte) error {
	for c := EventTypeTick; c <= EventTypeConfigError; c++ {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information
type TickPayload struct {
	Phase       string `json:"phase"`
	Chunks      int    `json:"chunks"`
	Bodies      int    `json:"bodies"`
	DeltaTimeNs int64  `json:"deltaTimeNs"`
}

// ThrustPayload accompanies activation, release and exhaustion
type ThrustPayload struct {
	Limb string  `json:"limb"`
	Fuel float64 `json:"fuel"`
}

// ForcePayload contains one applied thrust force
type ForcePayload struct {
	Limb       string  `json:"limb"`
	ForceX     float64 `json:"forceX"`
	ForceY     float64 `json:"forceY"`
	PointX     float64 `json:"pointX"`
	PointY     float64 `json:"pointY"`
	Multiplier float64 `json:"multiplier"`
	Fuel       float64 `json:"fuel"`
}

// ChunkPayload contains chunk lifecycle details
type ChunkPayload struct {
	Index  int `json:"index"`
	Bodies int `json:"bodies"`
}

// CollectPayload contains collection details
type CollectPayload struct {
	ID    uint64  `json:"id"`
	Value int     `json:"value"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score int     `json:"score"`
}

// ObjectivePayload contains objective progress
type ObjectivePayload struct {
	LevelID   string `json:"levelId"`
	Collected int    `json:"collected"`
	Target    int    `json:"target"`
}

// ScorePayload contains a score milestone
type ScorePayload struct {
	Score int `json:"score"`
}

// PhasePayload contains a state machine transition
type PhasePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RespawnPayload contains respawn details
type RespawnPayload struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// LevelPayload contains the started level
type LevelPayload struct {
	LevelID string `json:"levelId"`
	Mode    string `json:"mode"`
}

// FailurePayload contains a reported error
type FailurePayload struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}

// Hook receives structured events at the simulation's extension points.
// Emit returns false when the event was dropped.
type Hook interface {
	Emit(event Event) bool
}

// NopHook drops everything
type NopHook struct{}

func (NopHook) Emit(Event) bool { return false }

// MultiHook fans an event out to several hooks
type MultiHook []Hook

func (m MultiHook) Emit(event Event) bool {
	ok := false
	for _, h := range m {
		if h != nil && h.Emit(event) {
			ok = true
		}
	}
	return ok
}

// tickHook stamps events with the current tick before forwarding them
type tickHook struct {
	inner Hook
	tick  *uint64
}

func (h tickHook) Emit(event Event) bool {
	event.TickNum = *h.tick
	return h.inner.Emit(event)
}

func emit(h Hook, t EventType, source string, payload interface{}) {
	if h == nil {
		return
	}
	h.Emit(NewEvent(t, 0, source, payload))
}

// Recorder keeps the most recent events in memory; used by the debug feed and tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
	seq    uint64
}

// NewRecorder creates a recorder holding at most limit events
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 256
	}
	return &Recorder{events: make([]Event, 0, limit), limit: limit}
}

func (r *Recorder) Emit(event Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	event.Sequence = r.seq
	if len(r.events) == r.limit {
		copy(r.events, r.events[1:])
		r.events = r.events[:len(r.events)-1]
	}
	r.events = append(r.events, event)
	return true
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have type t
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Reset forgets every recorded event
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = r.events[:0]
	r.mu.Unlock()
}
