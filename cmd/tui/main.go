// Command tui runs the simulation in-process and plays it in a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/game"
	"rocket-ragdoll/internal/levels"
	"rocket-ragdoll/internal/storage"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

const frameInterval = 50 * time.Millisecond

func main() {
	logPath := flag.String("log", filepath.Join(os.TempDir(), "rocket-ragdoll-tui.log"), "log file")
	level := flag.String("level", "", "start this training level instead of endless mode")
	flag.Parse()

	// The terminal belongs to tcell, so logs go to a file
	if f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration rejected: %v", err)
	}

	store := storage.BestScoreStore(storage.NewMemoryStore())
	if path := appConfig.Storage.BestScoreDB; path != "" {
		if db, err := storage.OpenSQLite(path); err == nil {
			store = db
		} else {
			log.Printf("⚠️ Best score database unavailable: %v", err)
		}
	}
	defer store.Close()
	best, _ := store.Load(context.Background())

	catalog, err := levels.Load()
	if err != nil {
		log.Printf("⚠️ Training levels disabled: %v", err)
		catalog = nil
	}

	engine, err := game.NewEngine(game.Options{
		Config:    appConfig.Game,
		Levels:    catalog,
		BestScore: best,
		Store:     store,
	})
	if err != nil {
		log.Fatalf("❌ Engine rejected configuration: %v", err)
	}
	if *level != "" {
		if err := engine.StartLevel(*level); err != nil {
			log.Fatalf("❌ Level %s: %v", *level, err)
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("❌ Terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("❌ Terminal: %v", err)
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	engine.Start()
	defer engine.Stop()

	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	go screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			if !handleEvent(engine, screen, ev) {
				close(quit)
				return
			}
		case <-ticker.C:
			draw(screen, engine.GetSnapshot())
			screen.Show()
		}
	}
}

// handleEvent returns false when the player quits
func handleEvent(engine *game.Engine, screen tcell.Screen, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		screen.Sync()
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'n', 'N':
				logLevelErr(engine.NextLevel())
				return true
			case 'e', 'E':
				logLevelErr(engine.StartEndless())
				return true
			}
		}
		if cmd, ok := keyCommand(ev); ok {
			engine.Enqueue(cmd)
		}
	}
	return true
}

func logLevelErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, game.ErrTrainingComplete):
		log.Println("🎓 Training complete")
	default:
		log.Printf("⚠️ %v", err)
	}
}
