package db

import (
	"database/sql"
	"time"
)

const recordColumns = `id, start_time, end_time, target_name`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*WaitRecord, error) {
	record := &WaitRecord{}
	err := row.Scan(
		&record.ID,
		&record.StartTime,
		&record.EndTime,
		&record.TargetName,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (db *DB) queryRecords(query string, args ...any) ([]WaitRecord, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []WaitRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []WaitRecord{}
	}

	return records, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// InsertRecord persists a new wait record
func (db *DB) InsertRecord(record *WaitRecord) error {
	query := `
		INSERT INTO wait_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		record.ID,
		record.StartTime.UTC(),
		utcPtr(record.EndTime),
		record.TargetName,
	)
	if IsDuplicate(err) {
		return ErrDuplicate
	}

	return err
}

// CloseRecord sets the end time of an open record. Closing a record twice
// fails with ErrAlreadyClosed; the first end time is kept.
func (db *DB) CloseRecord(id string, endTime time.Time) error {
	query := `
		UPDATE wait_records
		SET end_time = ?
		WHERE id = ? AND end_time IS NULL
	`

	result, err := db.Exec(query, endTime.UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		if _, err := db.GetRecord(id); err != nil {
			return err
		}
		return ErrAlreadyClosed
	}

	return nil
}

// GetRecord retrieves a record by ID regardless of whether it is open
func (db *DB) GetRecord(id string) (*WaitRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM wait_records WHERE id = ?`

	record, err := scanRecord(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// QueryOpenByID retrieves a record by ID only if it is still open
func (db *DB) QueryOpenByID(id string) (*WaitRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM wait_records WHERE id = ? AND end_time IS NULL`

	record, err := scanRecord(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// QueryOpen returns every open record, newest first
func (db *DB) QueryOpen() ([]WaitRecord, error) {
	return db.queryRecords(`
		SELECT ` + recordColumns + `
		FROM wait_records
		WHERE end_time IS NULL
		ORDER BY start_time DESC, id
	`)
}

// QueryClosed returns every closed record, newest start time first
func (db *DB) QueryClosed() ([]WaitRecord, error) {
	return db.queryRecords(`
		SELECT ` + recordColumns + `
		FROM wait_records
		WHERE end_time IS NOT NULL
		ORDER BY start_time DESC, id
	`)
}

// ListRecords returns up to limit records of any state, newest first.
// A limit of zero or less returns everything.
func (db *DB) ListRecords(limit int) ([]WaitRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	return db.queryRecords(`
		SELECT `+recordColumns+`
		FROM wait_records
		ORDER BY start_time DESC, id
		LIMIT ?
	`, limit)
}
