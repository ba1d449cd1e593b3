package models

import "fmt"

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// UploadResult is the per-file outcome of a batch run.
type UploadResult struct {
	File       string
	Status     Status
	ActivityID int64  // set when the upload produced an activity
	Reason     string // skip reason or error classification
	Err        error  // set for failed files
}

func (r UploadResult) String() string {
	switch r.Status {
	case StatusSucceeded:
		if r.ActivityID > 0 {
			return fmt.Sprintf("%s: Succeeded(id=%d)", r.File, r.ActivityID)
		}
		return fmt.Sprintf("%s: Succeeded(%s)", r.File, r.Reason)
	case StatusSkipped:
		return fmt.Sprintf("%s: Skipped(%s)", r.File, r.Reason)
	default:
		return fmt.Sprintf("%s: Failed(%s)", r.File, r.Reason)
	}
}

// Report collects every result of one batch run.
type Report struct {
	RunID   string
	Results []UploadResult
}

func (r *Report) Add(res UploadResult) {
	r.Results = append(r.Results, res)
}

func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) Summary() string {
	return fmt.Sprintf("%d succeeded, %d skipped, %d failed (%d files)",
		r.Count(StatusSucceeded), r.Count(StatusSkipped), r.Count(StatusFailed), len(r.Results))
}
