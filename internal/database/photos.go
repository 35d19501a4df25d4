package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"photo-library/internal/filter"
)

const photoColumns = `id, path, filename, dirname, extension, size, uid, gid,
	width, height, aspect, taken_at, make, model, orientation, fingerprint,
	rating, tags, collections, ctrl, face_data_id, missing_at, created_at, updated_at`

// InsertPhoto inserts a new photo record. The path must not already be
// indexed; ErrDuplicatePath is returned if it is. A missing id is generated.
func (d *Database) InsertPhoto(ctx context.Context, record *PhotoRecord) error {
	done := observeQuery("insert_photo")

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

	tags, collections, err := marshalArrayFields(record)
	if err != nil {
		done(err)
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.t.fileInfo, photoColumns)

	_, err = d.db.ExecContext(ctx, query,
		record.ID, record.Path, record.Filename, record.Dirname, record.Extension,
		record.Size, record.UID, record.GID,
		record.Width, record.Height, record.Aspect, nullableMillis(record.TakenAt),
		record.Make, record.Model, record.Orientation, record.Fingerprint,
		record.Rating, tags, collections, nullableRaw(record.CtrlField),
		record.FaceDataID, nullableMillis(record.MissingAt),
		now.Unix(), now.Unix(),
	)
	if err != nil && isUniqueViolation(err) {
		err = fmt.Errorf("%w: %s", ErrDuplicatePath, record.Path)
	}
	done(err)
	return err
}

// UpdatePhoto overwrites the stored record with the given state
// (last-write-wins).
func (d *Database) UpdatePhoto(ctx context.Context, record *PhotoRecord) error {
	done := observeQuery("update_photo")

	if record.ID == "" {
		err := errors.New("photo record has no id")
		done(err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record.UpdatedAt = time.Now()

	tags, collections, err := marshalArrayFields(record)
	if err != nil {
		done(err)
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			path = ?, filename = ?, dirname = ?, extension = ?,
			size = ?, uid = ?, gid = ?,
			width = ?, height = ?, aspect = ?, taken_at = ?,
			make = ?, model = ?, orientation = ?, fingerprint = ?,
			rating = ?, tags = ?, collections = ?, ctrl = ?,
			face_data_id = ?, missing_at = ?, updated_at = ?
		WHERE id = ?
	`, d.t.fileInfo)

	result, err := d.db.ExecContext(ctx, query,
		record.Path, record.Filename, record.Dirname, record.Extension,
		record.Size, record.UID, record.GID,
		record.Width, record.Height, record.Aspect, nullableMillis(record.TakenAt),
		record.Make, record.Model, record.Orientation, record.Fingerprint,
		record.Rating, tags, collections, nullableRaw(record.CtrlField),
		record.FaceDataID, nullableMillis(record.MissingAt), record.UpdatedAt.Unix(),
		record.ID,
	)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows == 0 {
			err = fmt.Errorf("%w: photo %s", ErrNotFound, record.ID)
		}
	}
	done(err)
	return err
}

// GetPhotoByPath retrieves a photo record by its unique path.
func (d *Database) GetPhotoByPath(ctx context.Context, path string) (*PhotoRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE path = ?", photoColumns, d.t.fileInfo)
	return d.scanPhoto(d.db.QueryRowContext(ctx, query, path))
}

// GetPhotoByID retrieves a photo record by id.
func (d *Database) GetPhotoByID(ctx context.Context, id string) (*PhotoRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", photoColumns, d.t.fileInfo)
	return d.scanPhoto(d.db.QueryRowContext(ctx, query, id))
}

// CountPhotos returns the number of records matching the compiled filter.
func (d *Database) CountPhotos(ctx context.Context, q *filter.Query) (int, error) {
	done := observeQuery("count_photos")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", d.t.fileInfo, whereClause(q))

	var count int
	err := d.db.QueryRowContext(ctx, query, q.Args...).Scan(&count)
	done(err)
	return count, err
}

// PhotoAtOffset returns the single record at the given offset within the
// filtered set ordered by orderBy. Returns ErrNotFound when the offset is
// past the end.
func (d *Database) PhotoAtOffset(ctx context.Context, q *filter.Query, orderBy string, offset int) (*PhotoRecord, error) {
	done := observeQuery("photo_at_offset")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT 1 OFFSET ?",
		photoColumns, d.t.fileInfo, whereClause(q), orderBy)
	args := append(append([]any{}, q.Args...), offset)

	record, err := d.scanPhoto(d.db.QueryRowContext(ctx, query, args...))
	done(err)
	return record, err
}

// ListPhotos returns every record matching the compiled filter, ordered by
// path for reproducible output.
func (d *Database) ListPhotos(ctx context.Context, q *filter.Query) ([]*PhotoRecord, error) {
	done := observeQuery("list_photos")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY path", photoColumns, d.t.fileInfo, whereClause(q))
	return d.queryPhotos(ctx, done, query, q.Args...)
}

// RandomPhoto returns one random record whose backing file is not missing.
// Returns ErrNotFound on an empty library.
func (d *Database) RandomPhoto(ctx context.Context) (*PhotoRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE missing_at IS NULL ORDER BY RANDOM() LIMIT 1",
		photoColumns, d.t.fileInfo)
	return d.scanPhoto(d.db.QueryRowContext(ctx, query))
}

// ListMissingPhotos returns every record flagged with a missing backing file.
func (d *Database) ListMissingPhotos(ctx context.Context) ([]*PhotoRecord, error) {
	done := observeQuery("list_missing_photos")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE missing_at IS NOT NULL ORDER BY path",
		photoColumns, d.t.fileInfo)
	return d.queryPhotos(ctx, done, query)
}

// DeletePhoto removes a photo record. Membership edges and face data are the
// caller's responsibility.
func (d *Database) DeletePhoto(ctx context.Context, id string) error {
	done := observeQuery("delete_photo")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.t.fileInfo), id)
	done(err)
	return err
}

// CountAllPhotos returns the total number of photo records.
func (d *Database) CountAllPhotos(ctx context.Context) (int, error) {
	return d.CountPhotos(ctx, &filter.Query{})
}

// CountUnsortedPhotos returns the number of photos with an empty collections
// array, i.e. members of the virtual "unsorted" collection.
func (d *Database) CountUnsortedPhotos(ctx context.Context) (int, error) {
	return d.CountPhotos(ctx, &filter.Query{Where: "json_array_length(collections) = 0"})
}

func (d *Database) queryPhotos(ctx context.Context, done func(error), query string, args ...any) ([]*PhotoRecord, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*PhotoRecord
	for rows.Next() {
		record, err := scanPhotoRow(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		records = append(records, record)
	}

	err = rows.Err()
	done(err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *Database) scanPhoto(row rowScanner) (*PhotoRecord, error) {
	record, err := scanPhotoRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

func scanPhotoRow(row rowScanner) (*PhotoRecord, error) {
	var (
		record                   PhotoRecord
		width, height            sql.NullInt64
		aspect                   sql.NullFloat64
		takenAt, missingAt       sql.NullInt64
		makeCol, modelCol        sql.NullString
		orientation              sql.NullInt64
		fingerprint, faceDataID  sql.NullString
		tagsJSON, collectionsCol string
		ctrl                     sql.NullString
		createdAt, updatedAt     int64
	)

	err := row.Scan(
		&record.ID, &record.Path, &record.Filename, &record.Dirname, &record.Extension,
		&record.Size, &record.UID, &record.GID,
		&width, &height, &aspect, &takenAt,
		&makeCol, &modelCol, &orientation, &fingerprint,
		&record.Rating, &tagsJSON, &collectionsCol, &ctrl,
		&faceDataID, &missingAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Width = nullableInt(width)
	record.Height = nullableInt(height)
	if aspect.Valid {
		record.Aspect = &aspect.Float64
	}
	record.TakenAt = millisToTime(takenAt)
	record.MissingAt = millisToTime(missingAt)
	record.Make = nullableString(makeCol)
	record.Model = nullableString(modelCol)
	record.Orientation = nullableInt(orientation)
	if fingerprint.Valid {
		record.Fingerprint = fingerprint.String
	}
	if faceDataID.Valid {
		record.FaceDataID = &faceDataID.String
	}
	if ctrl.Valid && ctrl.String != "" {
		record.CtrlField = json.RawMessage(ctrl.String)
	}
	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(tagsJSON), &record.Tags); err != nil {
		return nil, fmt.Errorf("corrupt tags column on %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(collectionsCol), &record.Collections); err != nil {
		return nil, fmt.Errorf("corrupt collections column on %s: %w", record.ID, err)
	}

	return &record, nil
}

func marshalArrayFields(record *PhotoRecord) (string, string, error) {
	if record.Tags == nil {
		record.Tags = []string{}
	}
	if record.Collections == nil {
		record.Collections = []string{}
	}
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return "", "", err
	}
	collections, err := json.Marshal(record.Collections)
	if err != nil {
		return "", "", err
	}
	return string(tags), string(collections), nil
}

func whereClause(q *filter.Query) string {
	if q == nil || q.Where == "" {
		return ""
	}
	return " WHERE " + q.Where
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
