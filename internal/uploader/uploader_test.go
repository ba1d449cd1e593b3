package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kitesync/kitesync/internal/database"
	"github.com/kitesync/kitesync/internal/models"
	"github.com/kitesync/kitesync/internal/strava"
)

type fakeClient struct {
	activities []strava.Activity
	uploads    int
	polls      int
	uploadErr  error
}

func (f *fakeClient) ListActivities(ctx context.Context) ([]strava.Activity, error) {
	return f.activities, nil
}

func (f *fakeClient) Upload(ctx context.Context, payload strava.UploadPayload, filename string, file []byte) (*strava.UploadStatus, error) {
	f.uploads++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &strava.UploadStatus{ID: int64(1000 + f.uploads)}, nil
}

func (f *fakeClient) PollUpload(ctx context.Context, uploadID int64) (int64, error) {
	f.polls++
	return uploadID * 10, nil
}

// blockingClient stalls inside ListActivities until released, keeping a
// run open so the test can attempt a second one meanwhile.
type blockingClient struct {
	fakeClient
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) ListActivities(ctx context.Context) ([]strava.Activity, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return nil, nil
}

// writeSessionGPX writes a small valid track starting 2024-06-01T14:00:00Z.
func writeSessionGPX(t *testing.T, dir, name string) string {
	t.Helper()
	var points string
	start := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		points += fmt.Sprintf(`<trkpt lat="%f" lon="%f"><time>%s</time></trkpt>`,
			36.0143+float64(i)*0.001, -5.6044+float64(i)*0.001,
			start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339))
	}
	data := `<?xml version="1.0"?>
<gpx version="1.1" creator="WOO Sports" xmlns="http://www.topografix.com/GPX/1/1">
<metadata><name>Kiteboarding</name></metadata>
<trk><trkseg>` + points + `</trkseg></trk>
</gpx>`
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}
	return path
}

func writeCorruptGPX(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("<gpx><trk><trkseg>"), 0644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}
	return path
}

func resultFor(t *testing.T, report *models.Report, file string) models.UploadResult {
	t.Helper()
	for _, res := range report.Results {
		if res.File == file {
			return res
		}
	}
	t.Fatalf("no result for %s in %+v", file, report.Results)
	return models.UploadResult{}
}

func TestRunMixedBatch(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")
	writeCorruptGPX(t, dir, "corrupt.gpx")

	client := &fakeClient{}
	svc := New(client, nil, dir, Options{})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}

	good := resultFor(t, report, "session1.gpx")
	if good.Status != models.StatusSucceeded {
		t.Errorf("session1.gpx: %+v", good)
	}
	if good.ActivityID == 0 {
		t.Errorf("expected activity id, got %+v", good)
	}

	bad := resultFor(t, report, "corrupt.gpx")
	if bad.Status != models.StatusFailed || bad.Reason != "MalformedInput" {
		t.Errorf("corrupt.gpx: %+v", bad)
	}

	if client.uploads != 1 {
		t.Errorf("expected 1 upload, got %d", client.uploads)
	}
}

func TestRunSkipsRemoteDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")

	client := &fakeClient{activities: []strava.Activity{{
		ID:          42,
		StartDate:   time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
		ElapsedTime: 9 * 60,
		StartLatLng: []float64{36.0143, -5.6044},
	}}}
	svc := New(client, nil, dir, Options{})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	res := resultFor(t, report, "session1.gpx")
	if res.Status != models.StatusSkipped {
		t.Fatalf("expected skip, got %+v", res)
	}
	if client.uploads != 0 {
		t.Errorf("expected no uploads, got %d", client.uploads)
	}
}

func TestRunSkipsLocalHistory(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")

	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	client := &fakeClient{}
	svc := New(client, store, dir, Options{NoPoll: true})

	// First run uploads, second run must skip from history.
	first, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if res := resultFor(t, first, "session1.gpx"); res.Status != models.StatusSucceeded {
		t.Fatalf("first run: %+v", res)
	}

	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	res := resultFor(t, second, "session1.gpx")
	if res.Status != models.StatusSkipped {
		t.Fatalf("second run: %+v", res)
	}
	if client.uploads != 1 {
		t.Errorf("expected 1 upload across both runs, got %d", client.uploads)
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")

	client := &fakeClient{}
	svc := New(client, nil, dir, Options{DryRun: true})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	res := resultFor(t, report, "session1.gpx")
	if res.Status != models.StatusSkipped || res.Reason != "dry-run" {
		t.Fatalf("expected dry-run skip, got %+v", res)
	}
	if client.uploads != 0 {
		t.Errorf("dry run must not upload, got %d uploads", client.uploads)
	}
}

func TestRunNoPoll(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")

	client := &fakeClient{}
	svc := New(client, nil, dir, Options{NoPoll: true})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	res := resultFor(t, report, "session1.gpx")
	if res.Status != models.StatusSucceeded {
		t.Fatalf("expected success, got %+v", res)
	}
	if client.polls != 0 {
		t.Errorf("no-poll must not poll, got %d polls", client.polls)
	}
}

func TestRunUploadErrorDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")
	writeSessionGPX(t, dir, "session2.gpx")

	client := &fakeClient{uploadErr: &strava.UploadError{Reason: "quota exceeded"}}
	svc := New(client, nil, dir, Options{})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Count(models.StatusFailed) != 2 {
		t.Fatalf("expected 2 failures, got %s", report.Summary())
	}
	for _, res := range report.Results {
		if res.Reason != "UploadError" {
			t.Errorf("expected UploadError reason, got %+v", res)
		}
	}
	if client.uploads != 2 {
		t.Errorf("both files must be attempted, got %d uploads", client.uploads)
	}
}

func TestRunRefusesOverlappingRuns(t *testing.T) {
	dir := t.TempDir()
	writeSessionGPX(t, dir, "session1.gpx")

	client := &blockingClient{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := New(client, nil, dir, Options{NoPoll: true})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background())
		done <- err
	}()

	<-client.started
	if _, err := svc.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	close(client.release)

	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Once the first run returns, a new one may start again.
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run after completion failed: %v", err)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	svc := New(&fakeClient{}, nil, t.TempDir(), Options{})
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(report.Results) != 0 {
		t.Fatalf("expected empty report, got %d results", len(report.Results))
	}
}

func TestRunMissingDirectory(t *testing.T) {
	svc := New(&fakeClient{}, nil, "/nonexistent/gpx", Options{})
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReasonFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&strava.AuthError{Reason: "bad token"}, "AuthError"},
		{&strava.UploadError{Reason: "duplicate"}, "UploadError"},
		{&strava.TransientError{Err: errors.New("timeout")}, "TransientError"},
		{errors.New("something else"), "Error"},
	}
	for _, c := range cases {
		if got := reasonFor(c.err); got != c.want {
			t.Errorf("reasonFor(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
