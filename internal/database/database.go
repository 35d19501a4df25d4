package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicatePath is returned when inserting a photo whose path is already
// indexed.
var ErrDuplicatePath = errors.New("photo path already indexed")

// tableNames holds the per-library logical collection names, derived from
// the library base name (photosFileInfo, photosFaceData, ...).
type tableNames struct {
	fileInfo  string
	faceData  string
	people    string
	meta      string
	metaItems string
}

// Database provides typed access to the five record collections. All other
// components read and write exclusively through this layer.
type Database struct {
	db *sql.DB
	t  tableNames
	mu sync.RWMutex
}

// New opens (and if needed creates) the sqlite database at dbPath, with one
// set of tables per library base name. dbPath must point at the database
// file itself and its parent directory must exist and be writable; use
// startup.LoadConfig for validation.
func New(ctx context.Context, dbPath, libraryName string) (*Database, error) {
	if libraryName == "" {
		return nil, errors.New("library name cannot be empty")
	}

	// WAL mode and busy_timeout prevent most "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db: db,
		t: tableNames{
			fileInfo:  libraryName + "FileInfo",
			faceData:  libraryName + "FaceData",
			people:    libraryName + "People",
			meta:      libraryName + "DbMeta",
			metaItems: libraryName + "DbMetaItems",
		},
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized with collections %s, %s, %s, %s, %s",
		d.t.fileInfo, d.t.faceData, d.t.people, d.t.meta, d.t.metaItems)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := fmt.Sprintf(`
	-- Per-photo metadata records
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		dirname TEXT NOT NULL,
		extension TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		uid INTEGER NOT NULL DEFAULT 0,
		gid INTEGER NOT NULL DEFAULT 0,
		width INTEGER,
		height INTEGER,
		aspect REAL,
		taken_at INTEGER,
		make TEXT,
		model TEXT,
		orientation INTEGER,
		fingerprint TEXT,
		rating INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		collections TEXT NOT NULL DEFAULT '[]',
		ctrl TEXT,
		face_data_id TEXT,
		missing_at INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_dirname ON %[1]s(dirname);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_taken_at ON %[1]s(taken_at);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_missing_at ON %[1]s(missing_at);

	-- Face detections, one record per photo that has been scanned
	CREATE TABLE IF NOT EXISTS %[2]s (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		detections TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_%[2]s_path ON %[2]s(path);

	-- Named individuals with their reference descriptors
	CREATE TABLE IF NOT EXISTS %[3]s (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		descriptors TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	-- Meta items: collections, tags, folders, and filter cursors
	CREATE TABLE IF NOT EXISTS %[4]s (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		cursor_index INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
		UNIQUE(kind, name)
	);

	-- Membership edges between photos and meta items
	CREATE TABLE IF NOT EXISTS %[5]s (
		id TEXT PRIMARY KEY,
		file_info_id TEXT NOT NULL,
		meta_type_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		item_kind TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
		UNIQUE(file_info_id, meta_type_id)
	);

	CREATE INDEX IF NOT EXISTS idx_%[5]s_photo ON %[5]s(file_info_id);
	CREATE INDEX IF NOT EXISTS idx_%[5]s_item ON %[5]s(meta_type_id);
	`, d.t.fileInfo, d.t.faceData, d.t.people, d.t.meta, d.t.metaItems)

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// UpdateStoreMetrics refreshes connection-level gauges.
func (d *Database) UpdateStoreMetrics() {
	stats := d.db.Stats()
	metrics.StoreConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records store query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)
}

// observeQuery returns a completion callback for deferred metric recording.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}

// nullableMillis converts an optional timestamp to epoch milliseconds.
func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

// millisToTime converts a nullable epoch-milliseconds column back.
func millisToTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
