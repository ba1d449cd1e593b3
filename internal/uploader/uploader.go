package uploader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitesync/kitesync/internal/database"
	"github.com/kitesync/kitesync/internal/models"
	"github.com/kitesync/kitesync/internal/parser"
	"github.com/kitesync/kitesync/internal/reconcile"
	"github.com/kitesync/kitesync/internal/strava"
)

// ErrRunInProgress is returned when a run is requested while another
// one is still going. The Strava client holds a single token and runs
// are strictly sequential, so overlapping batches are refused rather
// than queued.
var ErrRunInProgress = errors.New("an upload run is already in progress")

// Client is the slice of the Strava client the batch driver uses.
type Client interface {
	ListActivities(ctx context.Context) ([]strava.Activity, error)
	Upload(ctx context.Context, payload strava.UploadPayload, filename string, file []byte) (*strava.UploadStatus, error)
	PollUpload(ctx context.Context, uploadID int64) (int64, error)
}

type Options struct {
	// DryRun logs what would be uploaded without calling the API.
	DryRun bool
	// NoPoll skips waiting for Strava to process each upload.
	NoPoll bool
}

// Service runs one batch: enumerate track files, parse each,
// reconcile against Strava and the local history, upload what is new.
// Files are processed sequentially; a failure on one file never aborts
// the rest.
type Service struct {
	client Client
	store  database.Store // nil disables history
	gpxDir string
	opts   Options

	runMu sync.Mutex // serializes Run; cron and the web UI share one Service
}

func New(client Client, store database.Store, gpxDir string, opts Options) *Service {
	return &Service{
		client: client,
		store:  store,
		gpxDir: gpxDir,
		opts:   opts,
	}
}

// Run executes one batch and returns the per-file report. It fails
// outright only when the input directory is unusable, the Strava
// index cannot be built, or another run is still in progress.
func (s *Service) Run(ctx context.Context) (*models.Report, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	started := time.Now()
	report := &models.Report{RunID: uuid.NewString()}

	log.Printf("Starting upload run %s (dry_run=%v)", report.RunID, s.opts.DryRun)
	defer func() {
		log.Printf("Run %s completed in %s: %s", report.RunID, time.Since(started).Round(time.Millisecond), report.Summary())
	}()

	files, err := discoverFiles(s.gpxDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Discovered %d track file(s) in %s", len(files), s.gpxDir)
	if len(files) == 0 {
		return report, nil
	}

	rec, err := reconcile.NewReconciler(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("building Strava index: %w", err)
	}

	for i, path := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		log.Printf("[%d/%d] %s", i+1, len(files), filepath.Base(path))
		result, record := s.processFile(ctx, rec, report.RunID, path)

		if s.store != nil {
			record.Status = string(result.Status)
			record.ActivityID = result.ActivityID
			record.Reason = result.Reason
			if err := s.store.RecordUpload(record); err != nil {
				log.Printf("Failed to record history for %s: %v", result.File, err)
			}
		}

		log.Println(result.String())
		report.Add(result)
	}

	return report, nil
}

func (s *Service) processFile(ctx context.Context, rec *reconcile.Reconciler, runID, path string) (models.UploadResult, *database.UploadRecord) {
	file := filepath.Base(path)
	record := &database.UploadRecord{RunID: runID, Filename: file}

	fail := func(err error) (models.UploadResult, *database.UploadRecord) {
		return models.UploadResult{
			File:   file,
			Status: models.StatusFailed,
			Reason: reasonFor(err),
			Err:    err,
		}, record
	}
	skip := func(reason string) (models.UploadResult, *database.UploadRecord) {
		return models.UploadResult{File: file, Status: models.StatusSkipped, Reason: reason}, record
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	p, err := parser.ForFile(path, data)
	if err != nil {
		return fail(err)
	}

	track, err := p.Parse(data)
	if err != nil {
		return fail(err)
	}

	job := reconcile.BuildJob(path, track)
	record.ExternalID = job.Payload.ExternalID
	record.SportType = job.Payload.SportType
	record.StartTime = track.StartTime()
	record.Duration = int(track.Duration().Seconds())
	record.Distance = track.Distance()
	record.PointCount = len(track.Points)

	if s.store != nil {
		uploaded, err := s.store.HasSucceeded(job.Payload.ExternalID)
		if err != nil {
			log.Printf("History lookup failed for %s: %v", file, err)
		} else if uploaded {
			return skip("already uploaded by an earlier run")
		}
	}

	if id, ok := rec.FindDuplicate(track); ok {
		return skip(fmt.Sprintf("already on Strava (activity %d)", id))
	}

	if s.opts.DryRun {
		log.Printf("DRY-RUN - would upload %s as %q (%s, %s)",
			file, job.Payload.Name, job.Payload.SportType, job.Payload.ExternalID)
		return skip("dry-run")
	}

	status, err := s.client.Upload(ctx, job.Payload, file, data)
	if err != nil {
		return fail(err)
	}

	if s.opts.NoPoll {
		return models.UploadResult{
			File:   file,
			Status: models.StatusSucceeded,
			Reason: fmt.Sprintf("queued, upload_id=%d", status.ID),
		}, record
	}

	activityID, err := s.client.PollUpload(ctx, status.ID)
	if err != nil {
		return fail(err)
	}

	return models.UploadResult{
		File:       file,
		Status:     models.StatusSucceeded,
		ActivityID: activityID,
	}, record
}

// discoverFiles lists *.gpx and *.fit files in dir, sorted by name for
// deterministic processing order.
func discoverFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("track directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("track directory: %s is not a directory", dir)
	}

	var files []string
	for _, pattern := range []string{"*.gpx", "*.fit"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}

	sort.Strings(files)
	return files, nil
}

// reasonFor classifies an error for the per-file report.
func reasonFor(err error) string {
	var authErr *strava.AuthError
	var upErr *strava.UploadError

	switch {
	case errors.Is(err, parser.ErrEmptyTrack):
		return "EmptyTrack"
	case errors.Is(err, parser.ErrMalformedInput), errors.Is(err, parser.ErrUnsupportedFormat):
		return "MalformedInput"
	case errors.As(err, &authErr):
		return "AuthError"
	case errors.As(err, &upErr):
		return "UploadError"
	case strava.IsTransient(err):
		return "TransientError"
	default:
		return "Error"
	}
}
