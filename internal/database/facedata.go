package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertFaceData stores the detections for one photo and returns the new
// record id.
func (d *Database) InsertFaceData(ctx context.Context, record *FaceDataRecord) error {
	done := observeQuery("insert_face_data")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	if record.Detections == nil {
		record.Detections = []FaceDetection{}
	}
	detections, err := json.Marshal(record.Detections)
	if err != nil {
		done(err)
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, path, detections, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.t.faceData)

	_, err = d.db.ExecContext(ctx, query, record.ID, record.Path, string(detections), now.Unix(), now.Unix())
	done(err)
	return err
}

// UpdateFaceData overwrites the detections of an existing record.
func (d *Database) UpdateFaceData(ctx context.Context, record *FaceDataRecord) error {
	done := observeQuery("update_face_data")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record.UpdatedAt = time.Now()

	detections, err := json.Marshal(record.Detections)
	if err != nil {
		done(err)
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET path = ?, detections = ?, updated_at = ? WHERE id = ?", d.t.faceData)
	result, err := d.db.ExecContext(ctx, query, record.Path, string(detections), record.UpdatedAt.Unix(), record.ID)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows == 0 {
			err = fmt.Errorf("%w: face data %s", ErrNotFound, record.ID)
		}
	}
	done(err)
	return err
}

// GetFaceData retrieves a face data record by id.
func (d *Database) GetFaceData(ctx context.Context, id string) (*FaceDataRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT id, path, detections, created_at, updated_at FROM %s WHERE id = ?", d.t.faceData)
	return scanFaceData(d.db.QueryRowContext(ctx, query, id))
}

// DeleteFaceData removes a face data record. Reference descriptors held on
// person records are left untouched.
func (d *Database) DeleteFaceData(ctx context.Context, id string) error {
	done := observeQuery("delete_face_data")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.t.faceData), id)
	done(err)
	return err
}

func scanFaceData(row rowScanner) (*FaceDataRecord, error) {
	var (
		record               FaceDataRecord
		detections           string
		createdAt, updatedAt int64
	)
	err := row.Scan(&record.ID, &record.Path, &detections, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(detections), &record.Detections); err != nil {
		return nil, fmt.Errorf("corrupt detections column on %s: %w", record.ID, err)
	}
	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)
	return &record, nil
}
