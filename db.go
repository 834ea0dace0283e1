// db.go
//
// Database helpers for the rooms server.
// Responsibilities:
//   - Opening SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying migrations from ./sql/*.sql (idempotent, recorded in _migrations).
//   - MatchArchive: durable record of finished matches plus query helpers
//     (recent matches, per-player win leaderboard).
//
// Note: This file assumes SQLite but can be adapted for other backends.

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/dashanddots/go-server/internal/coord"
	"github.com/dashanddots/go-server/internal/httpserver"
)

/**
 * openDB opens (and creates if missing) a SQLite database file.
 *
 * - Ensures parent directory exists for relative DSNs (e.g. ./data/app.db).
 * - Configures busy timeout and WAL journaling mode.
 * - Enforces foreign keys.
 *
 * @param dsn Database path or DSN string.
 * @returns *sql.DB ready for queries/migrations.
 */
func openDB(dsn string) (*sql.DB, error) {
	// Ensure directory exists for ./data/app.db, etc.
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// Open DB with busy timeout and WAL journaling.
	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Explicitly enforce foreign keys + WAL.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * migrate applies SQL migrations from ./sql directory.
 *
 * - Uses a _migrations table to track applied files.
 * - Executes each *.sql file in lexical order.
 * - Skips if already applied.
 * - Detects "self-managed" scripts (with BEGIN TRANSACTION or PRAGMA FOREIGN_KEYS=OFF)
 *   and runs them outside of an outer transaction.
 */
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	// Collect ./sql/*.sql
	root := "sql"
	var files []string
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk sql dir: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		// Skip if already applied
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Info().Str("migration", f).Msg("already applied")
			continue
		}
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}

		// Read file contents
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		sqlText := string(sqlBytes)

		// Detect scripts that manage their own tx or FK pragmas.
		upper := strings.ToUpper(sqlText)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			// Run as-is
			if _, err := db.Exec(sqlText); err != nil {
				return fmt.Errorf("apply %s: %w", f, err)
			}
			if _, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
				return fmt.Errorf("record %s: %w", f, err)
			}
			log.Info().Str("migration", f).Msg("applied (self-managed)")
			continue
		}

		// Run inside dedicated transaction
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

/* -------------------------- Match archive ------------------------------- */

/**
 * MatchArchive persists finished matches to the matches table.
 *
 * It backs two surfaces: the coordinator writes through RecordMatch when
 * a game reaches its terminal state, and the HTTP API reads back via
 * RecentMatches / WinLeaderboard.
 */
type MatchArchive struct {
	db *sql.DB
}

/** NewMatchArchive wraps an opened database handle. */
func NewMatchArchive(db *sql.DB) *MatchArchive { return &MatchArchive{db: db} }

/**
 * RecordMatch inserts one finished match.
 *
 * - players and scores are stored as JSON text columns.
 * - winner is empty for a draw.
 */
func (a *MatchArchive) RecordMatch(ctx context.Context, rec coord.MatchRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return err
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `
        INSERT INTO matches (room_id, game_id, players, scores, winner, finished_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RoomID, rec.GameID, string(players), string(scores), rec.Winner,
		rec.FinishedAt.UTC().Format(time.RFC3339),
	)
	return err
}

/**
 * RecentMatches returns the newest finished matches, newest first.
 * Default limit is 50 if not specified.
 */
func (a *MatchArchive) RecentMatches(ctx context.Context, limit int) ([]coord.MatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
        SELECT room_id, game_id, players, scores, winner, finished_at
        FROM matches
        ORDER BY finished_at DESC, id DESC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]coord.MatchRecord, 0, limit)
	for rows.Next() {
		var rec coord.MatchRecord
		var players, scores, finished string
		if err := rows.Scan(&rec.RoomID, &rec.GameID, &players, &scores, &rec.Winner, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
			log.Warn().Err(err).Str("room", rec.RoomID).Msg("decode players column")
		}
		if err := json.Unmarshal([]byte(scores), &rec.Scores); err != nil {
			log.Warn().Err(err).Str("room", rec.RoomID).Msg("decode scores column")
		}
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

/**
 * WinLeaderboard counts wins per player across all archived matches.
 * Draws (empty winner) are excluded. Default limit is 20.
 */
func (a *MatchArchive) WinLeaderboard(ctx context.Context, limit int) ([]httpserver.WinRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
        SELECT winner, COUNT(1) AS wins
        FROM matches
        WHERE winner != ''
        GROUP BY winner
        ORDER BY wins DESC, winner ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]httpserver.WinRow, 0, limit)
	for rows.Next() {
		var r httpserver.WinRow
		if err := rows.Scan(&r.Player, &r.Wins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
