// Command recognize re-runs face matching across the whole library. Run it
// after confirming new reference faces so existing detections pick up the
// new identities.
package main

import (
	"context"
	"fmt"
	"os"

	"photo-library/internal/database"
	"photo-library/internal/faces"
	"photo-library/internal/filter"
	"photo-library/internal/logging"
	"photo-library/internal/startup"
)

func main() {
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

	service := faces.New(db, nil, cfg.FaceMatchThreshold)

	records, err := db.ListPhotos(ctx, &filter.Query{})
	if err != nil {
		logging.Fatal("listing photos: %v", err)
	}

	scanned, assigned := 0, 0
	for _, record := range records {
		if record.FaceDataID == nil {
			continue
		}
		n, err := service.Recognize(ctx, *record.FaceDataID)
		if err != nil {
			logging.Error("recognition failed for %s: %v", record.Path, err)
			continue
		}
		scanned++
		assigned += n
	}

	fmt.Printf("scanned %d photos with face data, assigned %d faces\n", scanned, assigned)
}
