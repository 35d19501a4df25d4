// Package photos coordinates the library: ingesting files from disk,
// keeping metadata and membership edges consistent, and serving filtered
// browse requests.
package photos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"photo-library/internal/browse"
	"photo-library/internal/ctrlfield"
	"photo-library/internal/database"
	"photo-library/internal/exif"
	"photo-library/internal/faces"
	"photo-library/internal/logging"
	"photo-library/internal/metaindex"
	"photo-library/internal/metrics"
	"photo-library/internal/scan"
	"photo-library/internal/startup"
)

// Library is the facade every caller goes through.
type Library struct {
	cfg     *startup.Config
	db      *database.Database
	index   *metaindex.Engine
	browser *browse.Browser
	faces   *faces.Service
	ctrl    *ctrlfield.Client

	// Serializes ingest runs; the watcher and manual rescans may overlap.
	ingestMu sync.Mutex
}

// New wires the library together. detector may be nil to disable face
// indexing.
func New(cfg *startup.Config, db *database.Database, detector faces.Detector) *Library {
	return &Library{
		cfg:     cfg,
		db:      db,
		index:   metaindex.New(db),
		browser: browse.New(db),
		faces:   faces.New(db, detector, cfg.FaceMatchThreshold),
		ctrl:    ctrlfield.New(cfg.CtrlFieldURL),
	}
}

// Faces exposes the face service for recognition endpoints.
func (l *Library) Faces() *faces.Service {
	return l.faces
}

// IngestStats summarizes one ingest run.
type IngestStats struct {
	Found     int           `json:"found"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// IngestDirectory walks the photo tree and indexes every file not yet known.
// Files are processed one at a time; a single broken file logs and moves on.
// Already indexed paths are skipped, so re-running is cheap and idempotent.
func (l *Library) IngestDirectory(ctx context.Context) (*IngestStats, error) {
	l.ingestMu.Lock()
	defer l.ingestMu.Unlock()

	start := time.Now()
	metrics.IngestRunsTotal.Inc()

	paths, err := scan.Files(l.cfg.PhotosDir, l.cfg.Extensions)
	if err != nil {
		return nil, err
	}

	// One control payload per run; every record from this run gets the same
	// stamp. Fetch failures are logged and ingest proceeds unstamped.
	ctrl, err := l.ctrl.Fetch(ctx)
	if err != nil {
		logging.Warn("control field unavailable, records will be unstamped: %v", err)
	}

	stats := &IngestStats{Found: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		_, err := l.db.GetPhotoByPath(ctx, path)
		if err == nil {
			stats.Skipped++
			metrics.IngestFilesSkipped.Inc()
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return stats, err
		}

		if err := l.ingestFile(ctx, path, ctrl); err != nil {
			logging.Error("failed to index %s: %v", path, err)
			stats.Failed++
			continue
		}
		stats.Processed++
		metrics.IngestFilesProcessed.Inc()
	}

	stats.Duration = time.Since(start)
	metrics.IngestLastRunDuration.Set(stats.Duration.Seconds())
	logging.Info("ingest finished: %d found, %d new, %d skipped, %d failed in %s",
		stats.Found, stats.Processed, stats.Skipped, stats.Failed, stats.Duration.Round(time.Millisecond))
	return stats, nil
}

func (l *Library) ingestFile(ctx context.Context, path string, ctrl []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	uid, gid := fileOwnership(info)

	record := &database.PhotoRecord{
		Path:        path,
		Filename:    filepath.Base(path),
		Dirname:     filepath.Dir(path),
		Extension:   strings.ToLower(filepath.Ext(path)),
		Size:        info.Size(),
		UID:         uid,
		GID:         gid,
		Tags:        []string{},
		Collections: []string{},
		CtrlField:   ctrl,
	}

	meta, err := exif.Extract(path)
	if err != nil {
		return err
	}
	record.Width = meta.Width
	record.Height = meta.Height
	record.Aspect = meta.Aspect
	record.TakenAt = meta.TakenAt
	record.Make = meta.Make
	record.Model = meta.Model
	record.Orientation = meta.Orientation
	record.Fingerprint = meta.Fingerprint

	// The directory name supplies tags, and a capture date when the file
	// itself has none.
	dirTags, dirDate := exif.ParseDirname(record.Dirname)
	record.Tags = append(record.Tags, dirTags...)
	if record.TakenAt == nil {
		record.TakenAt = dirDate
	}

	if l.faces.Enabled() {
		faceDataID, err := l.faces.DetectAndStore(ctx, path)
		if err != nil {
			logging.Warn("face detection failed for %s: %v", path, err)
		} else {
			record.FaceDataID = &faceDataID
		}
	}

	if err := l.db.InsertPhoto(ctx, record); err != nil {
		return err
	}
	return l.index.ReconcileAll(ctx, record)
}

// fileOwnership extracts the numeric owner of a file where the platform
// exposes one.
func fileOwnership(info os.FileInfo) (int, int) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(stat.Uid), int(stat.Gid)
	}
	return 0, 0
}
