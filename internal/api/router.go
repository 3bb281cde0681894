package api

import (
	"io"
	"net/http"
	"time"

	"rocket-ragdoll/internal/game"
	"rocket-ragdoll/internal/levels"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface is the slice of the engine the HTTP layer calls.
// *game.Engine implements it.
type EngineInterface interface {
	GetSnapshot() *game.GameSnapshot
	Phase() game.Phase
	Mode() game.Mode
	Score() game.ScoreState
	Objective() game.ObjectiveProgress
	Limbs() []game.LimbState
	Thrusters() []game.ThrusterState
	Chunks() []game.ChunkView
	Camera() game.CameraView
	Indicators() []game.Indicator
	Events() []game.Event
	LastError() error
	Stats() game.EngineStats
	InputStats() game.QueueStats

	Enqueue(cmd game.InputCommand) bool
	StartGame() error
	TogglePause() error
	ResetPose() error
	StartEndless() error
	StartLevel(id string) error
	NextLevel() error
}

var _ EngineInterface = (*game.Engine)(nil)

// FrameRenderer turns a snapshot into an encoded image
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.GameSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine:         engine,
//	    DisableLogging: true,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Levels lists the training catalog on /api/levels; nil hides it
	Levels *levels.Catalog

	// Renderer serves /api/frame.png; nil answers 404
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is used only if RateLimiter is nil
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default localhost origins
	CORSOrigins []string

	// ControlToken, when set, is required as a bearer token on level and mode changes
	ControlToken string

	// DisableLogging disables the request logger middleware (useful for tests)
	DisableLogging bool
}

// routerHandlers holds what the handler functions need
type routerHandlers struct {
	engine   EngineInterface
	catalog  *levels.Catalog
	renderer FrameRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It is pure: no listeners are opened. Pass RateLimiter to share buckets
// between routers.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		catalog:  cfg.Levels,
		renderer: cfg.Renderer,
	}

	r.Route("/api", func(r chi.Router) {
		// Queries
		r.Get("/state", h.handleGetState)
		r.Get("/score", h.handleGetScore)
		r.Get("/objective", h.handleGetObjective)
		r.Get("/limbs", h.handleGetLimbs)
		r.Get("/thrusters", h.handleGetThrusters)
		r.Get("/chunks", h.handleGetChunks)
		r.Get("/camera", h.handleGetCamera)
		r.Get("/indicators", h.handleGetIndicators)
		r.Get("/events", h.handleGetEvents)
		r.Get("/stats", h.handleGetStats)
		r.Get("/levels", h.handleGetLevels)
		r.Get("/frame.png", h.handleGetFrame)

		// Player input
		r.Post("/input", h.handleInput)
		r.Post("/start", h.handleStart)
		r.Post("/pause", h.handlePause)
		r.Post("/reset", h.handleReset)

		// Level and mode control
		r.Group(func(r chi.Router) {
			r.Use(RequireControlToken(cfg.ControlToken))
			r.Post("/level/next", h.handleNextLevel)
			r.Post("/level/{id}", h.handleStartLevel)
			r.Post("/mode/{mode}", h.handleSetMode)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"ok": true, "time": time.Now().UTC()})
	})

	return r
}
