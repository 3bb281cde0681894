package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rocket-ragdoll/internal/api"
	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/game"
	"rocket-ragdoll/internal/levels"
	"rocket-ragdoll/internal/render"
	"rocket-ragdoll/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🚀 ================================")
	log.Println("🚀  ROCKET RAGDOLL - GO ENGINE")
	log.Println("🚀 ================================")

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration rejected: %v", err)
	}
	if appConfig.TuningPath != "" {
		log.Printf("🎛️ Tuning file: %s", appConfig.TuningPath)
	}
	gameCfg := appConfig.Game
	serverCfg := appConfig.Server
	log.Printf("🎮 Config: %d TPS, %dx%d viewport, %d chunk radius",
		gameCfg.Viewport.TickRate, gameCfg.Viewport.Width, gameCfg.Viewport.Height, gameCfg.Streamer.VisibleRadius)

	store := openStore(appConfig.Storage.BestScoreDB)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Second)
	best, err := store.Load(loadCtx)
	cancelLoad()
	if err != nil {
		log.Printf("⚠️ Best score unavailable, starting from 0: %v", err)
		best = 0
	}
	log.Printf("🏆 Best score: %d", best)

	catalog, err := levels.Load()
	if err != nil {
		// Endless mode still works without training levels
		log.Printf("⚠️ Training levels disabled: %v", err)
		catalog = nil
	} else {
		log.Printf("🎯 Loaded %d training levels", catalog.Len())
	}

	eventLog := game.NewEventLog()
	if err := eventLog.Start(appConfig.Storage.EventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if appConfig.Storage.EventLogPath != "" {
		log.Printf("📝 Event log: %s", appConfig.Storage.EventLogPath)
	}

	engine, err := game.NewEngine(game.Options{
		Config:    gameCfg,
		Levels:    catalog,
		BestScore: best,
		Store:     store,
		Hook:      game.MultiHook{eventLog, api.MetricsHook{}},
	})
	if err != nil {
		log.Fatalf("❌ Engine rejected configuration: %v", err)
	}
	if err := engine.LastError(); err != nil {
		log.Printf("⚠️ Character not ready: %v", err)
	}

	debugSrv, err := api.StartDebugServer(api.DebugConfigForPort(serverCfg.DebugPort))
	if err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	go api.NewMetricsSampler(engine, eventLog).Run(metricsCtx, time.Second)

	server := api.NewServer(api.ServerOptions{
		Engine:       engine,
		Levels:       catalog,
		Renderer:     render.New(gameCfg.Viewport.Width, gameCfg.Viewport.Height),
		ControlToken: serverCfg.ControlToken,
		CORSOrigins:  serverCfg.CORSOrigins,
	})
	if serverCfg.ControlToken == "" {
		log.Println("⚠️ CONTROL_TOKEN not set - level and mode routes are open")
	}

	engine.Start()
	log.Println("✅ Game Engine started")

	addr := ":" + strconv.Itoa(serverCfg.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	if debugSrv != nil {
		debugSrv.Shutdown(ctx)
	}
	stopMetrics()
	engine.Stop()
	eventLog.Stop()
	if err := store.Close(); err != nil {
		log.Printf("⚠️ Best score store close: %v", err)
	}
	log.Println("👋 Goodbye!")
}

// openStore prefers SQLite and falls back to memory so a bad path never blocks play
func openStore(path string) storage.BestScoreStore {
	if path == "" {
		log.Println("💾 Best score kept in memory")
		return storage.NewMemoryStore()
	}
	db, err := storage.OpenSQLite(path)
	if err != nil {
		log.Printf("⚠️ Best score database unavailable, using memory: %v", err)
		return storage.NewMemoryStore()
	}
	log.Printf("💾 Best score database: %s", path)
	return db
}
