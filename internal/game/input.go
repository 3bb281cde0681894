package game

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// InputAction is one player intent
type InputAction uint8

const (
	ActionNone InputAction = iota
	ActionThrustHead
	ActionThrustLeftArm
	ActionThrustRightArm
	ActionThrustLeftLeg
	ActionThrustRightLeg
	ActionThrustLegs // both legs at once
	ActionResetPose
	ActionStartGame
	ActionTogglePause
	ActionPointerDown
	ActionPointerMove
	ActionPointerUp
	ActionZoom
)

var actionNames = map[InputAction]string{
	ActionNone:           "none",
	ActionThrustHead:     "thrust-head",
	ActionThrustLeftArm:  "thrust-left-arm",
	ActionThrustRightArm: "thrust-right-arm",
	ActionThrustLeftLeg:  "thrust-left-leg",
	ActionThrustRightLeg: "thrust-right-leg",
	ActionThrustLegs:     "thrust-legs",
	ActionResetPose:      "reset-pose",
	ActionStartGame:      "start-game",
	ActionTogglePause:    "pause",
	ActionPointerDown:    "pointer-down",
	ActionPointerMove:    "pointer-move",
	ActionPointerUp:      "pointer-up",
	ActionZoom:           "zoom",
}

func (a InputAction) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

func (a InputAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *InputAction) UnmarshalText(text []byte) error {
	for k, n := range actionNames {
		if n == string(text) {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("unknown input action %q", text)
}

// ThrustLimbsFor maps a thrust action to the limbs it drives
func ThrustLimbsFor(a InputAction) []Limb {
	switch a {
	case ActionThrustHead:
		return []Limb{LimbHead}
	case ActionThrustLeftArm:
		return []Limb{LimbLeftArm}
	case ActionThrustRightArm:
		return []Limb{LimbRightArm}
	case ActionThrustLeftLeg:
		return []Limb{LimbLeftLeg}
	case ActionThrustRightLeg:
		return []Limb{LimbRightLeg}
	case ActionThrustLegs:
		return []Limb{LimbLeftLeg, LimbRightLeg}
	}
	return nil
}

// InputCommand is a queued input. Pressed distinguishes key down from key up
// for thrust actions; X and Y are screen coordinates for pointer actions.
// Frontends without key-up events press with HoldTicks instead.
type InputCommand struct {
	Action     InputAction `json:"action"`
	Pressed    bool        `json:"pressed"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Delta      float64     `json:"delta"`               // wheel delta for zoom
	HoldTicks  int         `json:"holdTicks,omitempty"` // auto-release after this many ticks
	ReceivedAt time.Time   `json:"-"`
}

// InputQueue buffers commands from transport goroutines until the next tick
// drains them. Enqueue never blocks; a full queue drops the command.
type InputQueue struct {
	commands chan InputCommand

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// NewInputQueue creates a queue holding up to size commands
func NewInputQueue(size int) *InputQueue {
	if size <= 0 {
		size = 256
	}
	return &InputQueue{commands: make(chan InputCommand, size)}
}

// Enqueue adds a command (non-blocking).
// Returns true if enqueued, false if the queue is full.
func (q *InputQueue) Enqueue(cmd InputCommand) bool {
	cmd.ReceivedAt = time.Now()

	select {
	case q.commands <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		if q.dropped.Load()%100 == 1 {
			log.Printf("⚠️ InputQueue full, dropped %s (total dropped: %d)", cmd.Action, q.dropped.Load())
		}
		return false
	}
}

// Drain appends every pending command to dst in arrival order
func (q *InputQueue) Drain(dst []InputCommand) []InputCommand {
	for {
		select {
		case cmd := <-q.commands:
			q.updateAvgWaitTime(time.Since(cmd.ReceivedAt))
			q.processed.Add(1)
			dst = append(dst, cmd)
		default:
			return dst
		}
	}
}

// updateAvgWaitTime updates exponential moving average
func (q *InputQueue) updateAvgWaitTime(wait time.Duration) {
	current := q.avgWaitTime.Load()
	q.avgWaitTime.Store((current*9 + wait.Nanoseconds()) / 10)
}

// Stats returns current queue statistics
func (q *InputQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(len(q.commands)),
		BufferSize:     uint64(cap(q.commands)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(len(q.commands)) / float64(cap(q.commands)) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
