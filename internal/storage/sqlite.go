package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore writes best scores from a single writer goroutine so the tick
// never waits on disk. Saves that find the queue full are dropped; a later,
// higher score supersedes them anyway.
type SQLiteStore struct {
	db *sql.DB

	ch   chan int
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	written atomic.Uint64
	dropped atomic.Uint64
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, ch: make(chan int, 64)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS best_score (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			score INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the stored best score, zero for a fresh database
func (s *SQLiteStore) Load(ctx context.Context) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM best_score WHERE id = 1`).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load best score: %w", err)
	}
	return score, nil
}

// Save queues score for the writer (non-blocking)
func (s *SQLiteStore) Save(score int) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- score:
	default:
		s.dropped.Add(1)
	}
}

// Close drains pending saves and closes the database
func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Written returns the number of rows written
func (s *SQLiteStore) Written() uint64 { return s.written.Load() }

// Dropped returns the number of saves lost to a full queue
func (s *SQLiteStore) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteStore) loop() {
	upsert, err := s.db.Prepare(`INSERT INTO best_score(id, score, updated_at) VALUES(1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at
		WHERE excluded.score > best_score.score`)
	if err != nil {
		log.Printf("⚠️ best score writer disabled: %v", err)
		for range s.ch {
			s.dropped.Add(1)
		}
		return
	}
	defer upsert.Close()

	for score := range s.ch {
		// Coalesce a burst into its highest value
		for drained := false; !drained; {
			select {
			case next, ok := <-s.ch:
				if !ok {
					drained = true
				} else if next > score {
					score = next
				}
			default:
				drained = true
			}
		}
		if _, err := upsert.Exec(score, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			log.Printf("⚠️ best score write failed: %v", err)
			continue
		}
		s.written.Add(1)
	}
}
