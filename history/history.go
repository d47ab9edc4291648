// Package history writes table events to a sqlite database off the server
// loop and reads them back for reporting.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/protocol"
	"github.com/lcx/pokernet/server"
)

type eventKind int

const (
	evJoined eventKind = iota
	evLeft
	evGameStarted
	evHandStarted
)

type event struct {
	kind    eventKind
	at      time.Time
	player  server.PlayerData
	reason  protocol.ErrorCode
	players []server.PlayerData
	hand    uint32
	count   int
}

// Recorder implements server.Recorder. Calls only enqueue; a single writer
// goroutine owns the database connection and the open row ids.
type Recorder struct {
	db      *sql.DB
	path    string
	events  chan event
	done    chan struct{}
	dropped atomic.Int64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	// writer state
	sessions map[uint32]int64
	game     int64
}

var _ server.Recorder = (*Recorder)(nil)

// Open creates the database file and schema if needed and starts the writer.
func Open(cfg *Cfg) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer, readers share it; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	r := &Recorder{
		db:       db,
		path:     cfg.Path,
		events:   make(chan event, cfg.QueueSize),
		done:     make(chan struct{}),
		sessions: make(map[uint32]int64),
	}
	go r.run()
	log.Info().Str("path", cfg.Path).Msg("history recorder opened")
	return r, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		computer BOOLEAN NOT NULL DEFAULT FALSE,
		peer TEXT,
		joined_at DATETIME NOT NULL,
		left_at DATETIME,
		leave_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS game_players (
		game_id INTEGER NOT NULL,
		seat INTEGER NOT NULL,
		player_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (game_id, seat),
		FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS hands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL,
		hand_num INTEGER NOT NULL,
		players INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name);
	CREATE INDEX IF NOT EXISTS idx_hands_game ON hands(game_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file.
func (r *Recorder) Path() string {
	return r.path
}

// Dropped returns the number of events lost to a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(ev event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
		metrics.IncrCounterWithGroup("history", "event_dropped_total", 1)
	}
}

func (r *Recorder) PlayerJoined(player server.PlayerData) {
	r.enqueue(event{kind: evJoined, at: time.Now(), player: player})
}

func (r *Recorder) PlayerLeft(player server.PlayerData, reason protocol.ErrorCode) {
	r.enqueue(event{kind: evLeft, at: time.Now(), player: player, reason: reason})
}

func (r *Recorder) GameStarted(players []server.PlayerData) {
	r.enqueue(event{kind: evGameStarted, at: time.Now(), players: append([]server.PlayerData(nil), players...)})
}

func (r *Recorder) HandStarted(hand uint32, players int) {
	r.enqueue(event{kind: evHandStarted, at: time.Now(), hand: hand, count: players})
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.events {
		start := time.Now()
		if err := r.write(ev); err != nil {
			log.Error().Err(err).Int("event", int(ev.kind)).Msg("history write failed")
			metrics.IncrCounterWithGroup("history", "write_error_total", 1)
			continue
		}
		metrics.ObserveWithGroup("history", "write_seconds", metrics.Value(time.Since(start).Seconds()))
	}
}

func (r *Recorder) write(ev event) error {
	ctx := context.Background()
	switch ev.kind {
	case evJoined:
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO sessions (player_id, name, computer, peer, joined_at) VALUES (?, ?, ?, ?, ?)`,
			ev.player.ID, ev.player.Name, ev.player.Type == protocol.PlayerTypeComputer, ev.player.Peer.String(), ev.at)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("session id: %w", err)
		}
		r.sessions[ev.player.ID] = id
	case evLeft:
		id, ok := r.sessions[ev.player.ID]
		if !ok {
			return fmt.Errorf("no open session for player %d", ev.player.ID)
		}
		delete(r.sessions, ev.player.ID)
		if _, err := r.db.ExecContext(ctx,
			`UPDATE sessions SET left_at = ?, leave_reason = ? WHERE id = ?`,
			ev.at, ev.reason.String(), id); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	case evGameStarted:
		return r.writeGame(ctx, ev)
	case evHandStarted:
		if r.game == 0 {
			return fmt.Errorf("hand %d without a game", ev.hand)
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO hands (game_id, hand_num, players, started_at) VALUES (?, ?, ?, ?)`,
			r.game, ev.hand, ev.count, ev.at); err != nil {
			return fmt.Errorf("insert hand: %w", err)
		}
	}
	return nil
}

func (r *Recorder) writeGame(ctx context.Context, ev event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO games (started_at) VALUES (?)`, ev.at)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("game id: %w", err)
	}
	for seat, p := range ev.players {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO game_players (game_id, seat, player_id, name) VALUES (?, ?, ?, ?)`,
			id, seat, p.ID, p.Name); err != nil {
			return fmt.Errorf("insert game player: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.game = id
	return nil
}

// Close stops accepting events, writes the queued ones and closes the database.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()
		<-r.done
		err = r.db.Close()
		log.Info().Str("path", r.path).Int64("dropped", r.dropped.Load()).Msg("history recorder closed")
	})
	return err
}

// FactoryName implements plugin.Plugin.
func (r *Recorder) FactoryName() string {
	return "sqlite"
}
