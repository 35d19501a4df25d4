package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"photo-library/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Config holds all application configuration.
type Config struct {
	// PhotosDir is the root of the photo tree to ingest.
	PhotosDir string

	// DatabasePath is the full path to the sqlite database file.
	DatabasePath string

	// LibraryName is the base name prefixed onto the logical record
	// collections (photosFileInfo, photosFaceData, ...).
	LibraryName string

	// Extensions lists the file extensions considered for ingest,
	// lower-case with leading dot.
	Extensions []string

	// CtrlFieldURL, when set, is fetched to stamp newly ingested records
	// with an externally managed control field. Optional.
	CtrlFieldURL string

	// FaceMatchThreshold is the maximum descriptor distance that still
	// counts as a match.
	FaceMatchThreshold float64

	// FolderLabelTrimPrefixes are path prefixes hidden from folder labels
	// in library summaries.
	FolderLabelTrimPrefixes []string

	Port            string
	MetricsEnabled  bool
	WatcherEnabled  bool
	ShutdownTimeout time.Duration
}

const (
	defaultLibraryName    = "photos"
	defaultExtensions     = ".jpg,.jpeg"
	defaultPort           = "3020"
	defaultFaceThreshold  = 0.5
	defaultShutdownWindow = 10 * time.Second
)

// LoadConfig loads and validates configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		PhotosDir:          os.Getenv("PHOTOS_DIR"),
		DatabasePath:       os.Getenv("DATABASE_PATH"),
		LibraryName:        envOrDefault("LIBRARY_NAME", defaultLibraryName),
		CtrlFieldURL:       os.Getenv("CTRL_FIELD_URL"),
		Port:               envOrDefault("PORT", defaultPort),
		MetricsEnabled:     envBool("METRICS_ENABLED", true),
		WatcherEnabled:     envBool("WATCHER_ENABLED", false),
		FaceMatchThreshold: defaultFaceThreshold,
		ShutdownTimeout:    defaultShutdownWindow,
	}

	if cfg.PhotosDir == "" {
		return nil, fmt.Errorf("PHOTOS_DIR must be set")
	}
	info, err := os.Stat(cfg.PhotosDir)
	if err != nil {
		return nil, fmt.Errorf("PHOTOS_DIR is not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("PHOTOS_DIR is not a directory: %s", cfg.PhotosDir)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(".", "photo-library.db")
	}
	if err := validateDatabaseDir(cfg.DatabasePath); err != nil {
		return nil, err
	}

	cfg.Extensions = parseExtensions(envOrDefault("PHOTO_EXTENSIONS", defaultExtensions))
	if len(cfg.Extensions) == 0 {
		return nil, fmt.Errorf("PHOTO_EXTENSIONS yielded no usable extensions")
	}

	if raw := os.Getenv("FACE_MATCH_THRESHOLD"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 {
			return nil, fmt.Errorf("invalid FACE_MATCH_THRESHOLD %q", raw)
		}
		cfg.FaceMatchThreshold = threshold
	}

	if raw := os.Getenv("FOLDER_LABEL_TRIM_PREFIXES"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				cfg.FolderLabelTrimPrefixes = append(cfg.FolderLabelTrimPrefixes, part)
			}
		}
	}

	logSummary(cfg)
	return cfg, nil
}

// validateDatabaseDir ensures the database's parent directory exists and is
// writable before sqlite gets a chance to produce a less helpful error.
func validateDatabaseDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("database directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("database directory is not a directory: %s", dir)
	}

	probe := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	_ = os.Remove(probe)
	return nil
}

func parseExtensions(raw string) []string {
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, part)
	}
	return exts
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func logSummary(cfg *Config) {
	logging.Info("photo-library %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("Photos directory: %s", cfg.PhotosDir)
	logging.Info("Database path: %s", cfg.DatabasePath)
	logging.Info("Library name: %s", cfg.LibraryName)
	logging.Info("Extensions for processing: %s", strings.Join(cfg.Extensions, ", "))
	if cfg.CtrlFieldURL != "" {
		logging.Info("Control field URL: %s", cfg.CtrlFieldURL)
	} else {
		logging.Info("Control field stamping disabled (CTRL_FIELD_URL not set)")
	}
	logging.Info("Face match threshold: %.2f", cfg.FaceMatchThreshold)
	logging.Info("Metrics enabled: %v, watcher enabled: %v", cfg.MetricsEnabled, cfg.WatcherEnabled)
}
