package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"rocket-ragdoll/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values stay bounded: limbs, event types, stages and route patterns only
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.0167, 0.033},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_frame_duration_seconds",
		Help:    "Time spent rendering a frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	worldGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_world_objects",
		Help: "Live world objects by kind",
	}, []string{"kind"}) // bodies, joints, chunks, collectibles, particles, tasks

	fuelGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_thruster_fuel",
		Help: "Remaining fuel per limb thruster",
	}, []string{"limb"})

	scoreGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_score",
		Help: "Current and best score",
	}, []string{"kind"})

	multiplierGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_score_multiplier",
		Help: "Current rotation multiplier",
	})

	gameEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_events_total",
		Help: "Structured events raised by the simulation",
	}, []string{"type"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_stage_failures_total",
		Help: "Recovered tick stage failures",
	}, []string{"stage"})

	inputDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_input_dropped_total",
		Help: "Input commands dropped by a full queue",
	})

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Requests rejected by rate limiter, origin check or token check",
	}, []string{"reason"}) // "rate_limit", "origin", "unauthorized", "ws_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket messages by direction",
	}, []string{"direction"})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DebugConfigForPort binds the debug server to loopback on port; 0 disables it
func DebugConfigForPort(port int) ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    port > 0,
		ListenAddr: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
	}
}

// ErrDebugNotLoopback is returned for a debug address that is reachable from outside
var ErrDebugNotLoopback = errors.New("debug server must listen on a loopback address")

// checkLoopback rejects any debug address that is not loopback
func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDebugNotLoopback, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %s", ErrDebugNotLoopback, addr)
	}
	return nil
}

// DebugHandler serves pprof, prometheus metrics and a health probe
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the loopback observability server. The returned
// server is nil when disabled; shut it down with the API server.
func StartDebugServer(cfg ObservabilityConfig) (*http.Server, error) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil, nil
	}
	if err := checkLoopback(cfg.ListenAddr); err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv, nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestMetrics records latency and status per chi route pattern
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one message sent ("out") or received ("in")
func IncrementWSMessages(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}

// MetricsHook counts simulation events by type. Chain it with the event
// log through game.MultiHook.
type MetricsHook struct{}

func (MetricsHook) Emit(event game.Event) bool {
	gameEvents.WithLabelValues(event.Type.String()).Inc()
	return true
}

// EventLogCounters is the part of the event log the metrics loop reads
type EventLogCounters interface {
	Accepted() uint64
	Dropped() uint64
}

// StatsSource is the part of the engine the metrics loop samples
type StatsSource interface {
	Stats() game.EngineStats
	InputStats() game.QueueStats
}

// MetricsSampler copies engine counters into prometheus. Counters only
// move forward, so it remembers the last totals and adds the deltas.
type MetricsSampler struct {
	engine   StatsSource
	eventLog EventLogCounters

	mu           sync.Mutex
	lastTick     uint64
	lastFailures map[string]uint64
	lastDropped  uint64
	lastLogTotal uint64
	lastLogDrop  uint64
}

// NewMetricsSampler creates a sampler; eventLog may be nil
func NewMetricsSampler(engine StatsSource, eventLog EventLogCounters) *MetricsSampler {
	return &MetricsSampler{
		engine:       engine,
		eventLog:     eventLog,
		lastFailures: make(map[string]uint64),
	}
}

// Sample reads the engine once and updates every gauge and counter
func (m *MetricsSampler) Sample() {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.engine.Stats()
	if s.Tick != m.lastTick {
		tickDuration.Observe(s.LastTickMs / 1000)
		m.lastTick = s.Tick
	}

	worldGauge.WithLabelValues("bodies").Set(float64(s.Bodies))
	worldGauge.WithLabelValues("joints").Set(float64(s.Joints))
	worldGauge.WithLabelValues("chunks").Set(float64(s.Chunks))
	worldGauge.WithLabelValues("collectibles").Set(float64(s.Collectibles))
	worldGauge.WithLabelValues("particles").Set(float64(s.Particles))
	worldGauge.WithLabelValues("tasks").Set(float64(s.PendingTasks))

	for limb, fuel := range s.FuelByLimb {
		fuelGauge.WithLabelValues(limb).Set(fuel)
	}
	scoreGauge.WithLabelValues("current").Set(float64(s.Score))
	scoreGauge.WithLabelValues("best").Set(float64(s.BestScore))
	multiplierGauge.Set(s.Multiplier)

	for stage, n := range s.Failures {
		if prev := m.lastFailures[stage]; n > prev {
			stageFailures.WithLabelValues(stage).Add(float64(n - prev))
		}
		m.lastFailures[stage] = n
	}

	if dropped := m.engine.InputStats().Dropped; dropped > m.lastDropped {
		inputDropped.Add(float64(dropped - m.lastDropped))
		m.lastDropped = dropped
	}

	if m.eventLog != nil {
		if total := m.eventLog.Accepted(); total > m.lastLogTotal {
			eventLogTotal.Add(float64(total - m.lastLogTotal))
			m.lastLogTotal = total
		}
		if dropped := m.eventLog.Dropped(); dropped > m.lastLogDrop {
			eventLogDropped.Add(float64(dropped - m.lastLogDrop))
			m.lastLogDrop = dropped
		}
	}
}

// Run samples every interval until ctx is done
func (m *MetricsSampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}
