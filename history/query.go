package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session is one stay of a player at the table.
type Session struct {
	PlayerID    uint32
	Name        string
	Computer    bool
	Peer        string
	JoinedAt    time.Time
	LeftAt      *time.Time
	LeaveReason string
}

// Game summarizes a started game.
type Game struct {
	ID        int64
	StartedAt time.Time
	Players   []string
	Hands     int
}

// Sessions returns the recorded stays of name, most recent first.
func (r *Recorder) Sessions(ctx context.Context, name string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT player_id, name, computer, COALESCE(peer, ''), joined_at, left_at, COALESCE(leave_reason, '')
		 FROM sessions WHERE name = ? ORDER BY id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var left sql.NullTime
		if err := rows.Scan(&s.PlayerID, &s.Name, &s.Computer, &s.Peer, &s.JoinedAt, &left, &s.LeaveReason); err != nil {
			return nil, fmt.Errorf("result scan: %w", err)
		}
		if left.Valid {
			s.LeftAt = &left.Time
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentGames returns up to limit games, most recent first.
func (r *Recorder) RecentGames(ctx context.Context, limit int) ([]Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.started_at, (SELECT COUNT(*) FROM hands h WHERE h.game_id = g.id)
		 FROM games g ORDER BY g.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.StartedAt, &g.Hands); err != nil {
			rows.Close()
			return nil, fmt.Errorf("result scan: %w", err)
		}
		games = append(games, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range games {
		names, err := r.gamePlayers(ctx, games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].Players = names
	}
	return games, nil
}

func (r *Recorder) gamePlayers(ctx context.Context, game int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM game_players WHERE game_id = ? ORDER BY seat`, game)
	if err != nil {
		return nil, fmt.Errorf("query game players: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("result scan: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
