package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/tornodes/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "tornodes.db"

// DefaultRecentLimit is the number of events returned when no limit is given.
const DefaultRecentLimit = 50

// ErrNotFound is returned when the database file is missing and creation
// was not requested.
var ErrNotFound = errors.New("history database not found")

// HistoryDB stores refresh events in SQLite.
// It is safe for concurrent use.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
// Times are stored as Unix nanoseconds and durations as nanoseconds.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS refreshes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cache TEXT NOT NULL,
		trigger_name TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_refreshes_cache ON refreshes(cache);
	CREATE INDEX IF NOT EXISTS idx_refreshes_started ON refreshes(started_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RecordRefresh appends one refresh event.
func (h *HistoryDB) RecordRefresh(ctx context.Context, event model.RefreshEvent) error {
	query := `
	INSERT INTO refreshes (cache, trigger_name, started_at, duration_ns, item_count, success, error)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := h.db.ExecContext(ctx, query,
		event.Cache.String(),
		event.Trigger.String(),
		event.StartedAt.UnixNano(),
		int64(event.Duration),
		event.ItemCount,
		boolToInt(event.Success),
		event.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record refresh: %w", err)
	}
	return nil
}

// Recent returns the newest events first, at most limit of them.
// A non-positive limit means DefaultRecentLimit.
func (h *HistoryDB) Recent(ctx context.Context, limit int) ([]model.RefreshEvent, error) {
	query := `
	SELECT id, cache, trigger_name, started_at, duration_ns, item_count, success, error
	FROM refreshes
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	return h.query(ctx, query, normalizeLimit(limit))
}

// RecentByCache is Recent restricted to one cache.
func (h *HistoryDB) RecentByCache(ctx context.Context, cache model.CacheName, limit int) ([]model.RefreshEvent, error) {
	query := `
	SELECT id, cache, trigger_name, started_at, duration_ns, item_count, success, error
	FROM refreshes
	WHERE cache = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	return h.query(ctx, query, cache.String(), normalizeLimit(limit))
}

// LastSuccess returns the newest successful event of cache, or nil when
// there is none.
func (h *HistoryDB) LastSuccess(ctx context.Context, cache model.CacheName) (*model.RefreshEvent, error) {
	query := `
	SELECT id, cache, trigger_name, started_at, duration_ns, item_count, success, error
	FROM refreshes
	WHERE cache = ? AND success = 1
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	events, err := h.query(ctx, query, cache.String())
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// Prune deletes events that started before cutoff and returns how many
// were removed.
func (h *HistoryDB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := h.db.ExecContext(ctx, "DELETE FROM refreshes WHERE started_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

func (h *HistoryDB) query(ctx context.Context, query string, args ...any) ([]model.RefreshEvent, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // read-only query

	events := make([]model.RefreshEvent, 0)
	for rows.Next() {
		var (
			e          model.RefreshEvent
			cache      string
			trigger    string
			startedAt  int64
			durationNs int64
		)
		if err := rows.Scan(&e.ID, &cache, &trigger, &startedAt, &durationNs, &e.ItemCount, &e.Success, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Cache = model.CacheName(cache)
		e.Trigger = model.RefreshTrigger(trigger)
		e.StartedAt = time.Unix(0, startedAt).UTC()
		e.Duration = time.Duration(durationNs)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return events, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
