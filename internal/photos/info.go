package photos

import (
	"context"
	"path/filepath"
	"strings"

	"photo-library/internal/database"
)

// LibraryInfo is the per-dimension summary of the whole library.
type LibraryInfo struct {
	TotalPhotos int                  `json:"totalPhotos"`
	Collections []database.MetaCount `json:"collections"`
	Tags        []database.MetaCount `json:"tags"`
	Folders     []database.MetaCount `json:"folders"`
	People      []string             `json:"people"`
}

// Info summarizes the library: member counts per collection, tag and folder,
// plus the known people. The virtual "unsorted" collection is synthesized
// from the empty-collections count, and "general" and "trashed" always
// appear even before any photo has joined them.
func (l *Library) Info(ctx context.Context) (*LibraryInfo, error) {
	info := &LibraryInfo{}

	total, err := l.db.CountAllPhotos(ctx)
	if err != nil {
		return nil, err
	}
	info.TotalPhotos = total

	collections, err := l.index.Counts(ctx, database.MetaKindCollection)
	if err != nil {
		return nil, err
	}
	unsorted, err := l.db.CountUnsortedPhotos(ctx)
	if err != nil {
		return nil, err
	}
	info.Collections = withStandardCollections(collections, unsorted)

	if info.Tags, err = l.index.Counts(ctx, database.MetaKindTag); err != nil {
		return nil, err
	}

	folders, err := l.index.Counts(ctx, database.MetaKindFolder)
	if err != nil {
		return nil, err
	}
	for i := range folders {
		folders[i].Label, folders[i].Long = l.folderLabels(folders[i].Item)
	}
	info.Folders = folders

	people, err := l.db.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	for _, person := range people {
		info.People = append(info.People, person.FullName)
	}

	return info, nil
}

func withStandardCollections(counts []database.MetaCount, unsorted int) []database.MetaCount {
	present := make(map[string]bool, len(counts))
	for _, c := range counts {
		present[c.Item] = true
	}
	if !present[database.CollectionGeneral] {
		counts = append(counts, database.MetaCount{Item: database.CollectionGeneral})
	}
	if !present[database.CollectionTrashed] {
		counts = append(counts, database.MetaCount{Item: database.CollectionTrashed})
	}
	counts = append(counts, database.MetaCount{Item: database.CollectionUnsorted, Count: unsorted})
	return counts
}

// folderLabels derives the display names of a folder item: a short label
// from the last path segment and a long form with the configured prefixes
// hidden.
func (l *Library) folderLabels(path string) (string, string) {
	long := path
	for _, prefix := range l.cfg.FolderLabelTrimPrefixes {
		if strings.HasPrefix(long, prefix) {
			long = strings.TrimPrefix(long, prefix)
			break
		}
	}
	long = strings.TrimPrefix(long, string(filepath.Separator))
	if long == "" {
		long = path
	}
	return filepath.Base(path), long
}

// SelectionEdit is a bulk metadata edit applied to many records at once.
type SelectionEdit struct {
	AddCollections    []string `json:"addCollections,omitempty"`
	RemoveCollections []string `json:"removeCollections,omitempty"`
	AddTags           []string `json:"addTags,omitempty"`
	RemoveTags        []string `json:"removeTags,omitempty"`
}

// ApplyToSelection applies one edit to every listed record, running the
// usual normalization and reconciliation per record. Processing stops at the
// first failure; the records already updated stay updated.
func (l *Library) ApplyToSelection(ctx context.Context, ids []string, edit SelectionEdit) (int, error) {
	applied := 0
	for _, id := range ids {
		record, err := l.db.GetPhotoByID(ctx, id)
		if err != nil {
			return applied, err
		}

		record.Collections = applyEdit(record.Collections, edit.AddCollections, edit.RemoveCollections)
		record.Tags = applyEdit(record.Tags, edit.AddTags, edit.RemoveTags)

		if _, err := l.UpdateRecord(ctx, record); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func applyEdit(items, add, remove []string) []string {
	removing := make(map[string]bool, len(remove))
	for _, item := range remove {
		removing[item] = true
	}

	out := make([]string, 0, len(items)+len(add))
	for _, item := range items {
		if !removing[item] {
			out = append(out, item)
		}
	}
	return dedupe(append(out, add...))
}
