package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// Key identifies a cached density row. A row is reused only when the file is
// unchanged and it was computed with the same analysis parameters.
type Key struct {
	Path    string
	Params  string
	ModTime int64
	Size    int64
}

// KeyFor builds the cache key of a recording from its file metadata
func KeyFor(path, params string) (Key, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Key{}, err
	}
	return Key{Path: path, Params: params, ModTime: info.ModTime().UnixNano(), Size: info.Size()}, nil
}

// Fingerprint hashes the analysis parameters into a cache namespace
func Fingerprint(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// SQLiteStore caches per-recording density rows between runs
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the cache database at dataSourceName
func Open(dataSourceName string) (*SQLiteStore, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	createDensityTable := `
    CREATE TABLE IF NOT EXISTS density_rows (
        path TEXT NOT NULL,
        params TEXT NOT NULL,
        mod_time INTEGER NOT NULL,
        size INTEGER NOT NULL,
        hour INTEGER NOT NULL,
        frames INTEGER NOT NULL,
        freq_axis TEXT NOT NULL,
        density TEXT NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (path, params)
    );
    `

	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        started_at DATETIME NOT NULL,
        finished_at DATETIME NOT NULL,
        input TEXT NOT NULL,
        params TEXT NOT NULL,
        processed INTEGER NOT NULL,
        cached INTEGER NOT NULL,
        skipped INTEGER NOT NULL,
        partial INTEGER NOT NULL DEFAULT 0
    );
    `

	if _, err := db.Exec(createDensityTable); err != nil {
		return fmt.Errorf("error creating density table: %w", err)
	}
	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("error creating runs table: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the cached row for key, or false when absent or stale
func (s *SQLiteStore) Get(ctx context.Context, key Key) (*soundscape.DensityRow, bool, error) {
	var (
		modTime, size int64
		hour, frames  int
		axisJSON      string
		densityJSON   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT mod_time, size, hour, frames, freq_axis, density FROM density_rows WHERE path = ? AND params = ?",
		key.Path, key.Params,
	).Scan(&modTime, &size, &hour, &frames, &axisJSON, &densityJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error querying density row: %w", err)
	}
	if modTime != key.ModTime || size != key.Size {
		return nil, false, nil
	}

	row := &soundscape.DensityRow{ID: key.Path, Hour: hour, Frames: frames}
	if err := json.Unmarshal([]byte(axisJSON), &row.FreqAxis); err != nil {
		return nil, false, fmt.Errorf("error decoding cached frequency axis: %w", err)
	}
	if err := json.Unmarshal([]byte(densityJSON), &row.Values); err != nil {
		return nil, false, fmt.Errorf("error decoding cached density: %w", err)
	}
	return row, true, nil
}

// Put stores row under key, replacing any previous entry
func (s *SQLiteStore) Put(ctx context.Context, key Key, row *soundscape.DensityRow) error {
	axisJSON, err := json.Marshal(row.FreqAxis)
	if err != nil {
		return err
	}
	densityJSON, err := json.Marshal(row.Values)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO density_rows (path, params, mod_time, size, hour, frames, freq_axis, density)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Path, key.Params, key.ModTime, key.Size, row.Hour, row.Frames, string(axisJSON), string(densityJSON),
	)
	if err != nil {
		return fmt.Errorf("error storing density row: %w", err)
	}
	return nil
}

// Run is a record of one aggregation run
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Input      string
	Params     string
	Processed  int
	Cached     int
	Skipped    int
	Partial    bool
}

// RecordRun appends a run to the history
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	partial := 0
	if run.Partial {
		partial = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, input, params, processed, cached, skipped, partial)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Input, run.Params, run.Processed, run.Cached, run.Skipped, partial,
	)
	if err != nil {
		return fmt.Errorf("error recording run: %w", err)
	}
	return nil
}

// CountRows returns the number of cached density rows
func (s *SQLiteStore) CountRows(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM density_rows").Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting density rows: %w", err)
	}
	return count, nil
}

// CountRuns returns the number of recorded runs
func (s *SQLiteStore) CountRuns(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting runs: %w", err)
	}
	return count, nil
}
