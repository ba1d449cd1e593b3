package models

import (
	"time"

	"github.com/kitesync/kitesync/internal/geo"
)

// TrackPoint is a single recorded GPS fix.
type TrackPoint struct {
	Lat       float64
	Lon       float64
	Elevation float64 // meters
	Time      time.Time
}

// Track is the parsed form of a GPX or FIT file: an ordered list of
// points with non-decreasing timestamps, plus whatever metadata the
// recording app wrote into the file.
type Track struct {
	// SourceApp is the tracking app that produced the file
	// ("Hoolan", "Woo" or "Unknown").
	SourceApp string

	// Label is the activity label from the file metadata, e.g.
	// "Kiteboarding". Empty when the file carries none.
	Label string

	// MetadataTime is the session start stamped in the file metadata.
	// The kite trackers write it a few seconds before the first GPS
	// fix, so it is the better start time when present.
	MetadataTime time.Time

	Points []TrackPoint
}

// StartTime prefers the metadata timestamp and falls back to the
// first point.
func (t *Track) StartTime() time.Time {
	if !t.MetadataTime.IsZero() {
		return t.MetadataTime
	}
	return t.Points[0].Time
}

func (t *Track) EndTime() time.Time {
	return t.Points[len(t.Points)-1].Time
}

func (t *Track) Duration() time.Duration {
	return t.EndTime().Sub(t.StartTime())
}

func (t *Track) StartLatLng() (float64, float64) {
	return t.Points[0].Lat, t.Points[0].Lon
}

func (t *Track) EndLatLng() (float64, float64) {
	p := t.Points[len(t.Points)-1]
	return p.Lat, p.Lon
}

// Distance sums the great-circle distance between consecutive points,
// in meters.
func (t *Track) Distance() float64 {
	var total float64
	for i := 1; i < len(t.Points); i++ {
		prev, curr := t.Points[i-1], t.Points[i]
		total += geo.Haversine(prev.Lat, prev.Lon, curr.Lat, curr.Lon)
	}
	return total
}
