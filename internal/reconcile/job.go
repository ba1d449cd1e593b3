package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kitesync/kitesync/internal/models"
	"github.com/kitesync/kitesync/internal/strava"
)

// sportTypes maps the session labels the kite trackers write to the
// closest native Strava sport type.
var sportTypes = map[string]string{
	"Kiteboarding":      "Kitesurf",
	"Kitesurfing":       "Kitesurf",
	"Kite Landboarding": "Kitesurf",
	"Windsurfing":       "Windsurf",
	"Wing Foiling":      "Windsurf",
}

const fallbackSportType = "Workout"

// SportTypeFor maps a track label to a Strava sport type.
func SportTypeFor(label string) string {
	if sport, ok := sportTypes[label]; ok {
		return sport
	}
	return fallbackSportType
}

// Job is a ready-to-upload unit: the file on disk plus the form
// payload Strava expects on POST /uploads.
type Job struct {
	Path    string
	Payload strava.UploadPayload
}

// BuildJob assembles the upload payload for one parsed track. The
// external id embeds the start timestamp so Strava's own duplicate
// detection has something stable to key on.
func BuildJob(path string, track *models.Track) Job {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	dataType := "gpx"
	if ext == ".fit" {
		dataType = "fit"
	}

	name := track.Label
	if name == "" {
		name = strings.ReplaceAll(stem, "_", " ")
	}

	source := track.SourceApp
	if source == "" {
		source = "GPX"
	}

	return Job{
		Path: path,
		Payload: strava.UploadPayload{
			DataType:    dataType,
			ExternalID:  fmt.Sprintf("%s-%d", stem, track.StartTime().Unix()),
			Name:        name,
			SportType:   SportTypeFor(track.Label),
			Description: fmt.Sprintf("Imported from %s on %s", source, track.StartTime().UTC().Format("2006-01-02")),
		},
	}
}
