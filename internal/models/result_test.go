package models

import (
	"errors"
	"testing"
)

func TestUploadResultString(t *testing.T) {
	cases := []struct {
		res  UploadResult
		want string
	}{
		{
			UploadResult{File: "session1.gpx", Status: StatusSucceeded, ActivityID: 987654},
			"session1.gpx: Succeeded(id=987654)",
		},
		{
			UploadResult{File: "session2.gpx", Status: StatusSucceeded, Reason: "queued, upload_id=55"},
			"session2.gpx: Succeeded(queued, upload_id=55)",
		},
		{
			UploadResult{File: "old.gpx", Status: StatusSkipped, Reason: "already on Strava (activity 42)"},
			"old.gpx: Skipped(already on Strava (activity 42))",
		},
		{
			UploadResult{File: "corrupt.gpx", Status: StatusFailed, Reason: "MalformedInput", Err: errors.New("bad xml")},
			"corrupt.gpx: Failed(MalformedInput)",
		},
	}
	for _, c := range cases {
		if got := c.res.String(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestReportCounts(t *testing.T) {
	report := &Report{RunID: "r1"}
	report.Add(UploadResult{File: "a.gpx", Status: StatusSucceeded})
	report.Add(UploadResult{File: "b.gpx", Status: StatusFailed})
	report.Add(UploadResult{File: "c.gpx", Status: StatusFailed})

	if report.Count(StatusSucceeded) != 1 || report.Count(StatusFailed) != 2 || report.Count(StatusSkipped) != 0 {
		t.Fatalf("unexpected counts: %s", report.Summary())
	}
	if report.Summary() != "1 succeeded, 0 skipped, 2 failed (3 files)" {
		t.Fatalf("summary = %q", report.Summary())
	}
}
