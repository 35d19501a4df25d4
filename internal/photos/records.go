package photos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"photo-library/internal/browse"
	"photo-library/internal/database"
	"photo-library/internal/filter"
	"photo-library/internal/logging"
)

// UpdateRecord applies caller-supplied edits to a photo record and brings
// the membership edges back in line. Collections are normalized first:
// "trashed" is exclusive and evicts every other collection, and any other
// non-empty set always includes "general". The stored record wins no fields;
// this is a full overwrite of the mutable metadata.
func (l *Library) UpdateRecord(ctx context.Context, record *database.PhotoRecord) (*database.PhotoRecord, error) {
	existing, err := l.db.GetPhotoByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	updated.Rating = record.Rating
	updated.Tags = dedupe(record.Tags)
	updated.Collections = normalizeCollections(record.Collections)
	if record.TakenAt != nil {
		updated.TakenAt = record.TakenAt
	}

	if err := l.db.UpdatePhoto(ctx, updated); err != nil {
		return nil, err
	}
	if err := l.index.ReconcileAll(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// normalizeCollections enforces the collection invariants. A trashed photo is
// in exactly one collection; any other photo with collections carries
// "general"; an empty set stays empty, which makes the photo unsorted.
func normalizeCollections(collections []string) []string {
	collections = dedupe(collections)

	for _, name := range collections {
		if name == database.CollectionTrashed {
			return []string{database.CollectionTrashed}
		}
	}
	if len(collections) == 0 {
		return []string{}
	}
	for _, name := range collections {
		if name == database.CollectionGeneral {
			return collections
		}
	}
	return append([]string{database.CollectionGeneral}, collections...)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// Browse resolves the wire-shape filter and sort, steps the filter's
// persisted cursor and returns the record there.
func (l *Library) Browse(ctx context.Context, rawFilter, rawSort []byte, step int) (*browse.Result, error) {
	expr, err := l.resolveFilter(rawFilter)
	if err != nil {
		return nil, err
	}
	order, err := filter.ParseSortOrder(rawSort)
	if err != nil {
		return nil, err
	}
	return l.browser.Step(ctx, expr, order, step)
}

// RecordAtIndex fetches the record at an absolute position within the
// filtered, sorted view, without touching the persisted cursor.
func (l *Library) RecordAtIndex(ctx context.Context, rawFilter, rawSort []byte, index int) (*database.PhotoRecord, error) {
	if index < 0 {
		return nil, fmt.Errorf("index must not be negative")
	}
	expr, err := l.resolveFilter(rawFilter)
	if err != nil {
		return nil, err
	}
	order, err := filter.ParseSortOrder(rawSort)
	if err != nil {
		return nil, err
	}

	q, err := filter.Compile(expr)
	if err != nil {
		return nil, err
	}
	orderBy, err := filter.CompileSort(order)
	if err != nil {
		return nil, err
	}
	record, err := l.db.PhotoAtOffset(ctx, q, orderBy, index)
	if errors.Is(err, database.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	return record, err
}

func (l *Library) resolveFilter(rawFilter []byte) (filter.Expr, error) {
	if len(rawFilter) == 0 || string(rawFilter) == "null" {
		return filter.MatchAll(), nil
	}
	return filter.Resolve(rawFilter)
}

// RecordByID fetches one record by id.
func (l *Library) RecordByID(ctx context.Context, id string) (*database.PhotoRecord, error) {
	return l.db.GetPhotoByID(ctx, id)
}

// RandomRecord fetches one random non-missing record.
func (l *Library) RandomRecord(ctx context.Context) (*database.PhotoRecord, error) {
	return l.db.RandomPhoto(ctx)
}

// FileData bundles everything known about one photo: the metadata record,
// its face detections if it was scanned, and the people roster for naming
// faces.
type FileData struct {
	Record   *database.PhotoRecord    `json:"record"`
	FaceData *database.FaceDataRecord `json:"faceData,omitempty"`
	People   []*database.PersonRecord `json:"people,omitempty"`
}

// DataForFile fetches the full data bundle for a photo after validating its
// backing file. A file gone from disk flags the record missing; a file that
// reappeared clears the flag. The record comes back either way.
func (l *Library) DataForFile(ctx context.Context, id string) (*FileData, error) {
	record, err := l.db.GetPhotoByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(record.Path)
	switch {
	case statErr == nil && record.MissingAt != nil:
		record.MissingAt = nil
		if err := l.db.UpdatePhoto(ctx, record); err != nil {
			return nil, err
		}
		logging.Info("file %s reappeared, cleared missing flag", record.Path)

	case errors.Is(statErr, os.ErrNotExist) && record.MissingAt == nil:
		now := time.Now()
		record.MissingAt = &now
		if err := l.db.UpdatePhoto(ctx, record); err != nil {
			return nil, err
		}
		logging.Warn("file %s is gone from disk, flagged missing", record.Path)

	case statErr != nil && !errors.Is(statErr, os.ErrNotExist):
		// Transient stat failure: report the record as stored.
		logging.Warn("cannot validate %s: %v", record.Path, statErr)
	}

	data := &FileData{Record: record}
	if record.FaceDataID != nil {
		faceData, err := l.db.GetFaceData(ctx, *record.FaceDataID)
		switch {
		case err == nil:
			data.FaceData = faceData
		case errors.Is(err, database.ErrNotFound):
			logging.Warn("photo %s references missing face data %s", record.ID, *record.FaceDataID)
		default:
			return nil, err
		}
	}
	people, err := l.db.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	data.People = people

	return data, nil
}

// PurgeMissingRecords permanently deletes every record flagged missing,
// together with its face data and membership edges. Person records keep
// their reference descriptors: identity knowledge outlives the photos it
// was learned from. Returns the number of records purged.
func (l *Library) PurgeMissingRecords(ctx context.Context) (int, error) {
	missing, err := l.db.ListMissingPhotos(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, record := range missing {
		if record.FaceDataID != nil {
			if err := l.db.DeleteFaceData(ctx, *record.FaceDataID); err != nil {
				return purged, fmt.Errorf("purging face data of %s: %w", record.ID, err)
			}
		}
		if err := l.index.RemoveAll(ctx, record.ID); err != nil {
			return purged, fmt.Errorf("purging memberships of %s: %w", record.ID, err)
		}
		if err := l.db.DeletePhoto(ctx, record.ID); err != nil {
			return purged, fmt.Errorf("purging record %s: %w", record.ID, err)
		}
		logging.Info("purged missing photo %s (%s)", record.ID, record.Path)
		purged++
	}
	return purged, nil
}
