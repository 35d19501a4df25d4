package metaindex

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"photo-library/internal/database"
	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// Store is the slice of the record store the engine needs.
type Store interface {
	GetOrCreateMetaType(ctx context.Context, kind database.MetaKind, name string) (*database.MetaTypeRecord, error)
	InsertMembership(ctx context.Context, edge *database.MetaItemMembership) error
	DeleteMembership(ctx context.Context, photoID, metaTypeID string) error
	ListMemberships(ctx context.Context, photoID string) ([]*database.MetaItemMembership, error)
	DeleteMembershipsForPhoto(ctx context.Context, photoID string) error
	CountsByKind(ctx context.Context, kind database.MetaKind) ([]database.MetaCount, error)
}

// Engine keeps membership edges consistent with the array fields on photo
// records. Reconciliation is driven entirely by the record's current state,
// so re-running it is always a no-op.
type Engine struct {
	store Store
}

// New returns an engine backed by the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Reconcile brings the membership edges of one dimension in line with the
// desired item names. Missing edges are inserted, stale ones deleted, and
// meta items are created on first use. Items that lose their last member are
// kept with a zero count.
func (e *Engine) Reconcile(ctx context.Context, record *database.PhotoRecord, kind database.MetaKind, desired []string) error {
	want := make(map[string]bool, len(desired))
	for _, name := range desired {
		if name != "" {
			want[name] = true
		}
	}

	edges, err := e.store.ListMemberships(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("listing memberships for %s: %w", record.ID, err)
	}

	have := make(map[string]string) // item name -> meta type id
	for _, edge := range edges {
		if edge.ItemKind == kind {
			have[edge.ItemName] = edge.MetaTypeID
		}
	}

	for name := range want {
		if _, ok := have[name]; ok {
			continue
		}
		item, err := e.store.GetOrCreateMetaType(ctx, kind, name)
		if err != nil {
			return fmt.Errorf("resolving %s %q: %w", kind, name, err)
		}
		edge := &database.MetaItemMembership{
			PhotoID:    record.ID,
			MetaTypeID: item.ID,
			ItemName:   name,
			ItemKind:   kind,
		}
		if err := e.store.InsertMembership(ctx, edge); err != nil {
			return fmt.Errorf("linking %s to %s %q: %w", record.ID, kind, name, err)
		}
		metrics.MembershipEdgesAdded.WithLabelValues(string(kind)).Inc()
		logging.Debug("linked photo %s to %s %q", record.ID, kind, name)
	}

	for name, metaTypeID := range have {
		if want[name] {
			continue
		}
		if err := e.store.DeleteMembership(ctx, record.ID, metaTypeID); err != nil {
			return fmt.Errorf("unlinking %s from %s %q: %w", record.ID, kind, name, err)
		}
		metrics.MembershipEdgesRemoved.WithLabelValues(string(kind)).Inc()
		logging.Debug("unlinked photo %s from %s %q", record.ID, kind, name)
	}

	return nil
}

// ReconcileTags syncs the tag edges with the record's tags array.
func (e *Engine) ReconcileTags(ctx context.Context, record *database.PhotoRecord) error {
	return e.Reconcile(ctx, record, database.MetaKindTag, record.Tags)
}

// ReconcileCollections syncs the collection edges with the record's
// collections array. The virtual "unsorted" collection never gets an edge.
func (e *Engine) ReconcileCollections(ctx context.Context, record *database.PhotoRecord) error {
	desired := make([]string, 0, len(record.Collections))
	for _, name := range record.Collections {
		if name != database.CollectionUnsorted {
			desired = append(desired, name)
		}
	}
	return e.Reconcile(ctx, record, database.MetaKindCollection, desired)
}

// ReconcileFolder syncs the single folder edge with the record's dirname.
func (e *Engine) ReconcileFolder(ctx context.Context, record *database.PhotoRecord) error {
	return e.Reconcile(ctx, record, database.MetaKindFolder, []string{record.Dirname})
}

// ReconcileAll reconciles every dimension of one record concurrently.
func (e *Engine) ReconcileAll(ctx context.Context, record *database.PhotoRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.ReconcileTags(gctx, record) })
	g.Go(func() error { return e.ReconcileCollections(gctx, record) })
	g.Go(func() error { return e.ReconcileFolder(gctx, record) })
	return g.Wait()
}

// RemoveAll deletes every membership edge of a photo. Used when a record is
// purged.
func (e *Engine) RemoveAll(ctx context.Context, photoID string) error {
	return e.store.DeleteMembershipsForPhoto(ctx, photoID)
}

// Counts returns the per-item member counts along one dimension.
func (e *Engine) Counts(ctx context.Context, kind database.MetaKind) ([]database.MetaCount, error) {
	return e.store.CountsByKind(ctx, kind)
}
