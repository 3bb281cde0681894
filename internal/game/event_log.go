package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"
)

const (
	eventRingSize       = 1024
	eventsPerSecond     = 10000 // all sources together
	SourceEventsPerSec  = 600   // one limb, chunk or subsystem
	eventFlushBatch     = 64
	eventFlushInterval  = 100 * time.Millisecond
	sourceLimiterMaxAge = 5 * time.Minute
)

// EventLogStats is a point-in-time view of the log counters
type EventLogStats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
	Pending  int    `json:"pending"`
	Written  uint64 `json:"written"`
	Running  bool   `json:"running"`
	Path     string `json:"path"`
}

type sourceBudget struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// EventLog is a Hook that persists events as zstd-compressed JSON lines.
// Accepted events wait in a fixed ring; when the writer falls behind the
// oldest pending event is overwritten. Nothing ever blocks the tick.
type EventLog struct {
	mu      sync.Mutex
	ring    [eventRingSize]Event
	start   int // index of the oldest pending event
	pending int
	seq     uint64

	global  *rate.Limiter
	sources map[string]*sourceBudget

	accepted uint64
	dropped  uint64
	written  uint64
	running  bool

	path string
	out  *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewEventLog creates a stopped log; Emit drops everything until Start
func NewEventLog() *EventLog {
	return &EventLog{
		global:  rate.NewLimiter(eventsPerSecond, eventsPerSecond/10),
		sources: make(map[string]*sourceBudget),
		wake:    make(chan struct{}, 1),
	}
}

// Start opens path and starts the writer goroutine. An empty path keeps
// counting and sequencing events without writing them anywhere.
func (el *EventLog) Start(path string) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.running {
		return nil
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("event log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("event log open: %w", err)
		}
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			f.Close()
			return fmt.Errorf("event log zstd: %w", err)
		}
		el.out, el.zw, el.bw = f, zw, bufio.NewWriterSize(zw, 64<<10)
	}

	el.path = path
	el.running = true
	el.stop = make(chan struct{})
	el.done = make(chan struct{})
	go el.writer(el.stop, el.done)
	return nil
}

// Stop drains pending events, closes the zstd frame and the file. Safe to call twice.
func (el *EventLog) Stop() {
	el.mu.Lock()
	if !el.running {
		el.mu.Unlock()
		return
	}
	el.running = false
	stop, done := el.stop, el.done
	el.mu.Unlock()

	close(stop)
	<-done

	if el.bw != nil {
		el.bw.Flush()
		el.zw.Close()
		el.out.Close()
		el.out, el.zw, el.bw = nil, nil, nil
	}
}

// Emit accepts an event unless the log is stopped or a rate budget is spent.
// Accepted events get a sequence number starting at 1.
func (el *EventLog) Emit(event Event) bool {
	el.mu.Lock()
	defer el.mu.Unlock()

	if !el.running {
		return false
	}
	if !el.global.Allow() || (event.Source != "" && !el.budget(event.Source).Allow()) {
		el.dropped++
		return false
	}

	if el.pending == eventRingSize {
		el.start = (el.start + 1) % eventRingSize
		el.pending--
		el.dropped++
	}
	el.seq++
	event.Sequence = el.seq
	el.ring[(el.start+el.pending)%eventRingSize] = event
	el.pending++
	el.accepted++

	if el.pending >= eventFlushBatch {
		select {
		case el.wake <- struct{}{}:
		default:
		}
	}
	return true
}

// budget returns the limiter of one source; caller holds mu
func (el *EventLog) budget(source string) *rate.Limiter {
	now := time.Now()
	b, ok := el.sources[source]
	if !ok {
		b = &sourceBudget{limiter: rate.NewLimiter(SourceEventsPerSec, SourceEventsPerSec/10)}
		el.sources[source] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (el *EventLog) writer(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(eventFlushInterval)
	defer ticker.Stop()
	lastPrune := time.Now()
	batch := make([]Event, 0, eventFlushBatch)

	for {
		select {
		case <-stop:
			for {
				if batch = el.take(batch[:0]); len(batch) == 0 {
					return
				}
				el.write(batch)
			}
		case <-el.wake:
		case now := <-ticker.C:
			if now.Sub(lastPrune) > sourceLimiterMaxAge {
				el.pruneSources(now)
				lastPrune = now
			}
		}
		for {
			if batch = el.take(batch[:0]); len(batch) == 0 {
				break
			}
			el.write(batch)
		}
	}
}

// take moves up to one batch of pending events into dst
func (el *EventLog) take(dst []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	for el.pending > 0 && len(dst) < eventFlushBatch {
		dst = append(dst, el.ring[el.start])
		el.ring[el.start] = Event{}
		el.start = (el.start + 1) % eventRingSize
		el.pending--
	}
	return dst
}

// write runs on the writer goroutine only, so the file needs no lock
func (el *EventLog) write(batch []Event) {
	if el.bw == nil {
		return
	}
	n := uint64(0)
	for _, ev := range batch {
		line, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		el.bw.Write(line)
		el.bw.WriteByte('\n')
		n++
	}
	el.bw.Flush()

	el.mu.Lock()
	el.written += n
	el.mu.Unlock()
}

func (el *EventLog) pruneSources(now time.Time) {
	el.mu.Lock()
	defer el.mu.Unlock()
	for src, b := range el.sources {
		if now.Sub(b.lastSeen) > sourceLimiterMaxAge {
			delete(el.sources, src)
		}
	}
}

// Stats returns the current counters
func (el *EventLog) Stats() EventLogStats {
	el.mu.Lock()
	defer el.mu.Unlock()
	return EventLogStats{
		Accepted: el.accepted,
		Dropped:  el.dropped,
		Pending:  el.pending,
		Written:  el.written,
		Running:  el.running,
		Path:     el.path,
	}
}

// Accepted returns how many events were taken in
func (el *EventLog) Accepted() uint64 { return el.Stats().Accepted }

// Dropped returns how many events were rate limited or overwritten
func (el *EventLog) Dropped() uint64 { return el.Stats().Dropped }

// ReadEventLog decodes a log written by EventLog, one event per line
func ReadEventLog(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var events []Event
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for line := 1; sc.Scan(); line++ {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return events, fmt.Errorf("event log line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	return events, sc.Err()
}
