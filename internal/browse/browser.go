package browse

import (
	"context"
	"fmt"

	"photo-library/internal/database"
	"photo-library/internal/filter"
	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// Store is the slice of the record store the browser needs.
type Store interface {
	GetOrCreateMetaType(ctx context.Context, kind database.MetaKind, name string) (*database.MetaTypeRecord, error)
	UpdateMetaCursor(ctx context.Context, id string, cursorIndex int) error
	CountPhotos(ctx context.Context, q *filter.Query) (int, error)
	PhotoAtOffset(ctx context.Context, q *filter.Query, orderBy string, offset int) (*database.PhotoRecord, error)
}

// Result is one browse step's outcome.
type Result struct {
	Record *database.PhotoRecord `json:"record"`
	Index  int                   `json:"index"`
	Count  int                   `json:"count"`
}

// Browser steps a persisted cursor through a filtered, sorted view of the
// library. Each distinct resolved filter owns one cursor, stored as a meta
// item keyed by the filter's canonical serialization, so a browsing position
// survives restarts and is shared by every caller using the same filter.
//
// The read-step-write sequence is not atomic: two concurrent callers on the
// same filter may observe the same position and race the write. The cursor is
// a convenience position, not a correctness guarantee, so last write wins.
type Browser struct {
	store Store
}

// New returns a browser backed by the given store.
func New(store Store) *Browser {
	return &Browser{store: store}
}

// Step advances the filter's cursor by step (which may be zero or negative),
// persists the new position and returns the record there. The cursor wraps a
// single lap past either end; a position that is still out of range after one
// wrap resets to the first record. An empty filtered set is not an error: the
// result carries a nil record, index 0 and count 0.
func (b *Browser) Step(ctx context.Context, expr filter.Expr, order filter.SortOrder, step int) (*Result, error) {
	metrics.BrowseStepsTotal.Inc()

	q, err := filter.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling filter: %w", err)
	}
	orderBy, err := filter.CompileSort(order)
	if err != nil {
		return nil, fmt.Errorf("compiling sort order: %w", err)
	}

	cursor, err := b.store.GetOrCreateMetaType(ctx, database.MetaKindFilter, filter.Canonical(expr))
	if err != nil {
		return nil, fmt.Errorf("loading cursor: %w", err)
	}

	count, err := b.store.CountPhotos(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("counting filtered records: %w", err)
	}
	if count == 0 {
		if err := b.store.UpdateMetaCursor(ctx, cursor.ID, 0); err != nil {
			return nil, fmt.Errorf("persisting cursor: %w", err)
		}
		return &Result{Index: 0, Count: 0}, nil
	}

	index := clampIndex(cursor.CursorIndex+step, count)

	record, err := b.store.PhotoAtOffset(ctx, q, orderBy, index)
	if err != nil {
		return nil, fmt.Errorf("fetching record at %d: %w", index, err)
	}

	if err := b.store.UpdateMetaCursor(ctx, cursor.ID, index); err != nil {
		return nil, fmt.Errorf("persisting cursor: %w", err)
	}

	logging.Debug("browse step %+d on filter %s: index %d of %d", step, cursor.ID, index, count)
	return &Result{Record: record, Index: index, Count: count}, nil
}

// clampIndex wraps an index one lap around a set of the given size. Anything
// still outside after one wrap (a cursor gone stale against a shrunk set, or
// an oversized step) resets to zero.
func clampIndex(index, count int) int {
	if index >= count {
		index -= count
	} else if index < 0 {
		index += count
	}
	if index < 0 || index >= count {
		metrics.BrowseCursorResets.Inc()
		return 0
	}
	return index
}
