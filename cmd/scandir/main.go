// Command scandir runs one ingest pass over the photo directory and exits.
// Useful for cron-driven indexing without the long-running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"photo-library/internal/database"
	"photo-library/internal/logging"
	"photo-library/internal/photos"
	"photo-library/internal/startup"
)

func main() {
	purge := flag.Bool("purge", false, "permanently delete records whose files are flagged missing")
	flag.Parse()

	cfg, err := startup.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabasePath, cfg.LibraryName)
	if err != nil {
		logging.Fatal("database error: %v", err)
	}
	defer func() { _ = db.Close() }()

	library := photos.New(cfg, db, nil)

	stats, err := library.IngestDirectory(ctx)
	if err != nil {
		logging.Fatal("ingest failed: %v", err)
	}
	fmt.Printf("found %d files: %d new, %d already indexed, %d failed\n",
		stats.Found, stats.Processed, stats.Skipped, stats.Failed)

	if *purge {
		purged, err := library.PurgeMissingRecords(ctx)
		if err != nil {
			logging.Fatal("purge failed: %v", err)
		}
		fmt.Printf("purged %d missing records\n", purged)
	}
}
