package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateMetaType returns the meta item record for (kind, name),
// creating it when it does not yet exist.
func (d *Database) GetOrCreateMetaType(ctx context.Context, kind MetaKind, name string) (*MetaTypeRecord, error) {
	done := observeQuery("get_or_create_meta_type")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record, err := d.getMetaType(ctx, kind, name)
	if err == nil {
		done(nil)
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		done(err)
		return nil, err
	}

	record = &MetaTypeRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now(),
	}
	query := fmt.Sprintf("INSERT INTO %s (id, kind, name, cursor_index, created_at) VALUES (?, ?, ?, 0, ?)", d.t.meta)
	if _, err := d.db.ExecContext(ctx, query, record.ID, string(kind), name, record.CreatedAt.Unix()); err != nil {
		// Lost a race with a concurrent insert; read the winner.
		if isUniqueViolation(err) {
			record, err = d.getMetaType(ctx, kind, name)
			done(err)
			return record, err
		}
		done(err)
		return nil, err
	}
	done(nil)
	return record, nil
}

// GetMetaType returns the meta item record for (kind, name), or ErrNotFound.
func (d *Database) GetMetaType(ctx context.Context, kind MetaKind, name string) (*MetaTypeRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return d.getMetaType(ctx, kind, name)
}

func (d *Database) getMetaType(ctx context.Context, kind MetaKind, name string) (*MetaTypeRecord, error) {
	query := fmt.Sprintf("SELECT id, kind, name, cursor_index, created_at FROM %s WHERE kind = ? AND name = ?", d.t.meta)
	return scanMetaType(d.db.QueryRowContext(ctx, query, string(kind), name))
}

// UpdateMetaCursor persists the browse cursor position of a filter record.
func (d *Database) UpdateMetaCursor(ctx context.Context, id string, cursorIndex int) error {
	done := observeQuery("update_meta_cursor")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("UPDATE %s SET cursor_index = ? WHERE id = ?", d.t.meta)
	result, err := d.db.ExecContext(ctx, query, cursorIndex, id)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows == 0 {
			err = fmt.Errorf("%w: meta item %s", ErrNotFound, id)
		}
	}
	done(err)
	return err
}

// DeleteMetaType removes a meta item and all of its membership edges.
func (d *Database) DeleteMetaType(ctx context.Context, id string) error {
	done := observeQuery("delete_meta_type")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := d.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE meta_type_id = ?", d.t.metaItems), id); err != nil {
		done(err)
		return err
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.t.meta), id)
	done(err)
	return err
}

// MembershipExists reports whether a membership edge links the photo to the
// meta item.
func (d *Database) MembershipExists(ctx context.Context, photoID, metaTypeID string) (bool, error) {
	done := observeQuery("membership_exists")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE file_info_id = ? AND meta_type_id = ?", d.t.metaItems)
	var count int
	err := d.db.QueryRowContext(ctx, query, photoID, metaTypeID).Scan(&count)
	done(err)
	return count > 0, err
}

// InsertMembership creates a membership edge. Inserting an edge that already
// exists is not an error; the existing edge stands.
func (d *Database) InsertMembership(ctx context.Context, edge *MetaItemMembership) error {
	done := observeQuery("insert_membership")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.CreatedAt = time.Now()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, file_info_id, meta_type_id, item_name, item_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_info_id, meta_type_id) DO NOTHING
	`, d.t.metaItems)

	_, err := d.db.ExecContext(ctx, query,
		edge.ID, edge.PhotoID, edge.MetaTypeID, edge.ItemName, string(edge.ItemKind), edge.CreatedAt.Unix())
	done(err)
	return err
}

// DeleteMembership removes the edge between a photo and a meta item, if any.
func (d *Database) DeleteMembership(ctx context.Context, photoID, metaTypeID string) error {
	done := observeQuery("delete_membership")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE file_info_id = ? AND meta_type_id = ?", d.t.metaItems)
	_, err := d.db.ExecContext(ctx, query, photoID, metaTypeID)
	done(err)
	return err
}

// ListMemberships returns every membership edge of a photo, across all
// dimensions.
func (d *Database) ListMemberships(ctx context.Context, photoID string) ([]*MetaItemMembership, error) {
	done := observeQuery("list_memberships")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, file_info_id, meta_type_id, item_name, item_kind, created_at
		FROM %s WHERE file_info_id = ? ORDER BY item_kind, item_name
	`, d.t.metaItems)

	rows, err := d.db.QueryContext(ctx, query, photoID)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var edges []*MetaItemMembership
	for rows.Next() {
		var (
			edge      MetaItemMembership
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&edge.ID, &edge.PhotoID, &edge.MetaTypeID, &edge.ItemName, &kind, &createdAt); err != nil {
			done(err)
			return nil, err
		}
		edge.ItemKind = MetaKind(kind)
		edge.CreatedAt = time.Unix(createdAt, 0)
		edges = append(edges, &edge)
	}

	err = rows.Err()
	done(err)
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// DeleteMembershipsForPhoto removes every membership edge of a photo.
func (d *Database) DeleteMembershipsForPhoto(ctx context.Context, photoID string) error {
	done := observeQuery("delete_memberships_for_photo")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE file_info_id = ?", d.t.metaItems)
	_, err := d.db.ExecContext(ctx, query, photoID)
	done(err)
	return err
}

// CountsByKind returns the per-item photo counts along one dimension, sorted
// by item name. Items with no members report zero.
func (d *Database) CountsByKind(ctx context.Context, kind MetaKind) ([]MetaCount, error) {
	done := observeQuery("counts_by_kind")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT m.name, COUNT(i.id)
		FROM %s m
		LEFT JOIN %s i ON i.meta_type_id = m.id
		WHERE m.kind = ?
		GROUP BY m.id
		ORDER BY m.name
	`, d.t.meta, d.t.metaItems)

	rows, err := d.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var counts []MetaCount
	for rows.Next() {
		var c MetaCount
		if err := rows.Scan(&c.Item, &c.Count); err != nil {
			done(err)
			return nil, err
		}
		counts = append(counts, c)
	}

	err = rows.Err()
	done(err)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func scanMetaType(row *sql.Row) (*MetaTypeRecord, error) {
	var (
		record    MetaTypeRecord
		kind      string
		createdAt int64
	)
	err := row.Scan(&record.ID, &kind, &record.Name, &record.CursorIndex, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	record.Kind = MetaKind(kind)
	record.CreatedAt = time.Unix(createdAt, 0)
	return &record, nil
}
