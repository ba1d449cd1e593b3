package database

import "time"

// UploadRecord is one per-file outcome persisted across runs. A
// succeeded record lets later runs skip the file without touching the
// network.
type UploadRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Filename   string    `json:"filename"`
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"` // succeeded | skipped | failed
	ActivityID int64     `json:"activity_id"`
	Reason     string    `json:"reason"`
	SportType  string    `json:"sport_type"`
	StartTime  time.Time `json:"start_time"`
	Duration   int       `json:"duration"` // seconds
	Distance   float64   `json:"distance"` // meters
	PointCount int       `json:"point_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Store is the upload-history persistence interface.
type Store interface {
	RecordUpload(rec *UploadRecord) error
	HasSucceeded(externalID string) (bool, error)
	GetUploads(limit, offset int) ([]UploadRecord, error)
	GetStats() (*Stats, error)
	Close() error
}
