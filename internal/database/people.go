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

const personColumns = "id, full_name, first_name, last_name, descriptors, created_at, updated_at"

// InsertPerson creates a new person record. Full names are unique.
func (d *Database) InsertPerson(ctx context.Context, record *PersonRecord) error {
	done := observeQuery("insert_person")

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

	if record.Descriptors == nil {
		record.Descriptors = []ReferenceDescriptor{}
	}
	descriptors, err := json.Marshal(record.Descriptors)
	if err != nil {
		done(err)
		return err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)", d.t.people, personColumns)
	_, err = d.db.ExecContext(ctx, query,
		record.ID, record.FullName, record.FirstName, record.LastName,
		string(descriptors), now.Unix(), now.Unix())
	done(err)
	return err
}

// UpdatePerson overwrites an existing person record.
func (d *Database) UpdatePerson(ctx context.Context, record *PersonRecord) error {
	done := observeQuery("update_person")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record.UpdatedAt = time.Now()

	descriptors, err := json.Marshal(record.Descriptors)
	if err != nil {
		done(err)
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET full_name = ?, first_name = ?, last_name = ?, descriptors = ?, updated_at = ?
		WHERE id = ?
	`, d.t.people)

	result, err := d.db.ExecContext(ctx, query,
		record.FullName, record.FirstName, record.LastName,
		string(descriptors), record.UpdatedAt.Unix(), record.ID)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows == 0 {
			err = fmt.Errorf("%w: person %s", ErrNotFound, record.ID)
		}
	}
	done(err)
	return err
}

// GetPersonByID retrieves a person record by id.
func (d *Database) GetPersonByID(ctx context.Context, id string) (*PersonRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", personColumns, d.t.people)
	return scanPerson(d.db.QueryRowContext(ctx, query, id))
}

// GetPersonByFullName retrieves a person record by their unique full name.
func (d *Database) GetPersonByFullName(ctx context.Context, fullName string) (*PersonRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE full_name = ?", personColumns, d.t.people)
	return scanPerson(d.db.QueryRowContext(ctx, query, fullName))
}

// ListPeople returns every person, ordered by last then first name.
func (d *Database) ListPeople(ctx context.Context) ([]*PersonRecord, error) {
	done := observeQuery("list_people")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY last_name, first_name, full_name", personColumns, d.t.people)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var people []*PersonRecord
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		people = append(people, person)
	}

	err = rows.Err()
	done(err)
	if err != nil {
		return nil, err
	}
	return people, nil
}

func scanPerson(row rowScanner) (*PersonRecord, error) {
	var (
		record               PersonRecord
		descriptors          string
		createdAt, updatedAt int64
	)
	err := row.Scan(&record.ID, &record.FullName, &record.FirstName, &record.LastName,
		&descriptors, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(descriptors), &record.Descriptors); err != nil {
		return nil, fmt.Errorf("corrupt descriptors column on %s: %w", record.ID, err)
	}
	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)
	return &record, nil
}
