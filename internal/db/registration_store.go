package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegistrationRecord is a persisted registration attempt that
// succeeded. Failed attempts produce no transform and are not
// recorded.
type RegistrationRecord struct {
	ID            string          `json:"registration_id"`
	PhantomName   string          `json:"phantom_name,omitempty"`
	LandmarkCount int             `json:"landmark_count"`
	Transform     json.RawMessage `json:"transform"`
	MeanError     float64         `json:"mean_error"`
	Quality       string          `json:"quality"`
	Residuals     json.RawMessage `json:"residuals,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InsertRegistration persists a successful registration and returns
// the generated record ID.
func (db *DB) InsertRegistration(record RegistrationRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO registrations (
			registration_id, phantom_name, landmark_count,
			transform, mean_error, quality, residuals, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		nullStr(record.PhantomName),
		record.LandmarkCount,
		string(record.Transform),
		record.MeanError,
		record.Quality,
		nullJSON(record.Residuals),
		record.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("inserting registration %s: %w", record.ID, err)
	}
	return record.ID, nil
}

// GetRegistration fetches a single registration by ID. Returns
// sql.ErrNoRows wrapped if no such record exists.
func (db *DB) GetRegistration(id string) (*RegistrationRecord, error) {
	row := db.QueryRow(`
		SELECT registration_id, phantom_name, landmark_count,
		       transform, mean_error, quality, residuals, created_at
		FROM registrations WHERE registration_id = ?`, id)

	record, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("fetching registration %s: %w", id, err)
	}
	return record, nil
}

// ListRegistrations returns the most recent registrations, newest
// first, up to limit (or all when limit <= 0).
func (db *DB) ListRegistrations(limit int) ([]RegistrationRecord, error) {
	query := `
		SELECT registration_id, phantom_name, landmark_count,
		       transform, mean_error, quality, residuals, created_at
		FROM registrations ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	var records []RegistrationRecord
	for rows.Next() {
		record, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistration(row rowScanner) (*RegistrationRecord, error) {
	var record RegistrationRecord
	var phantomName, residuals sql.NullString
	var transform, createdAt string

	err := row.Scan(
		&record.ID,
		&phantomName,
		&record.LandmarkCount,
		&transform,
		&record.MeanError,
		&record.Quality,
		&residuals,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	record.Transform = json.RawMessage(transform)
	if phantomName.Valid {
		record.PhantomName = phantomName.String
	}
	if residuals.Valid && residuals.String != "" {
		record.Residuals = json.RawMessage(residuals.String)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		record.CreatedAt = t
	}
	return &record, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(data json.RawMessage) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
