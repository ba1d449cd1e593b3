package database

import (
	"database/sql"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		external_id TEXT,
		status TEXT NOT NULL,
		activity_id INTEGER DEFAULT 0,
		reason TEXT,
		sport_type TEXT,
		start_time DATETIME,
		duration INTEGER DEFAULT 0,
		distance REAL DEFAULT 0,
		point_count INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_external_id ON uploads(external_id);
	CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
	CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordUpload(rec *UploadRecord) error {
	query := `
	INSERT INTO uploads (
		run_id, filename, external_id, status, activity_id, reason,
		sport_type, start_time, duration, distance, point_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query,
		rec.RunID, rec.Filename, rec.ExternalID, rec.Status,
		rec.ActivityID, rec.Reason, rec.SportType,
		rec.StartTime.UTC().Format(timeLayout),
		rec.Duration, rec.Distance, rec.PointCount,
	)
	if err != nil {
		return err
	}

	rec.ID, _ = res.LastInsertId()
	return nil
}

// HasSucceeded reports whether a file with this external id was
// uploaded successfully by an earlier run.
func (s *SQLiteStore) HasSucceeded(externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM uploads WHERE external_id = ? AND status = 'succeeded'`,
		externalID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteStore) GetUploads(limit, offset int) ([]UploadRecord, error) {
	query := `
	SELECT id, run_id, filename, external_id, status, activity_id, reason,
	       sport_type, start_time, duration, distance, point_count, created_at
	FROM uploads
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		var startTime, createdAt string

		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Filename, &rec.ExternalID,
			&rec.Status, &rec.ActivityID, &rec.Reason, &rec.SportType,
			&startTime, &rec.Duration, &rec.Distance, &rec.PointCount,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		rec.StartTime, _ = time.Parse(timeLayout, startTime)
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM uploads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case "succeeded":
			stats.Succeeded = count
		case "skipped":
			stats.Skipped = count
		case "failed":
			stats.Failed = count
		}
		stats.Total += count
	}

	return stats, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
