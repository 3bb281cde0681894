package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"rocket-ragdoll/internal/levels"

	"github.com/go-chi/chi/v5"
)

// ServerOptions configures NewServer
type ServerOptions struct {
	Engine       EngineInterface
	Levels       *levels.Catalog
	Renderer     FrameRenderer
	ControlToken string
	CORSOrigins  []string // extra origins beyond localhost
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the snapshot hub.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	cancelHub   context.CancelFunc
	hubDone     chan struct{}
}

// NewServer builds the router and hub.
//
// Background workers do NOT start until Start() is called, so tests can
// construct the server and use Router() with httptest.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		wsHub:       NewWebSocketHub(opts.Engine, opts.CORSOrigins),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	var corsOrigins []string
	if len(opts.CORSOrigins) > 0 {
		corsOrigins = append([]string{"http://localhost:*", "http://127.0.0.1:*"}, opts.CORSOrigins...)
	}

	s.router = NewRouter(RouterConfig{
		Engine:       opts.Engine,
		Levels:       opts.Levels,
		Renderer:     opts.Renderer,
		RateLimiter:  s.rateLimiter,
		CORSOrigins:  corsOrigins,
		ControlToken: opts.ControlToken,
	})

	// The hub instance lives here, not in the generic router factory
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start starts the snapshot broadcast and serves HTTP until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelHub = cancel
	s.hubDone = make(chan struct{})
	go func() {
		defer close(s.hubDone)
		s.wsHub.Run(ctx)
	}()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Snapshot stream: ws://localhost%s/ws", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
//
//	server := api.NewServer(api.ServerOptions{Engine: engine})
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes viewers and stops background workers
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.cancelHub != nil {
		s.cancelHub()
		select {
		case <-s.hubDone:
		case <-ctx.Done():
		}
	}
	return err
}
