package parser

import (
	"fmt"
	"strings"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/kitesync/kitesync/internal/models"
)

// GPXParser parses GPX 1.0/1.1 documents as written by the Woo and
// Hoolan kitesurf trackers.
type GPXParser struct{}

func (p *GPXParser) Parse(data []byte) (*models.Track, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	track := &models.Track{
		SourceApp: detectSourceApp(doc.Creator),
		Label:     gpxLabel(doc),
	}
	if doc.Time != nil && !doc.Time.IsZero() {
		track.MetadataTime = *doc.Time
	}

	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				tp := models.TrackPoint{
					Lat:  pt.Latitude,
					Lon:  pt.Longitude,
					Time: pt.Timestamp,
				}
				if pt.Elevation.NotNull() {
					tp.Elevation = pt.Elevation.Value()
				}
				track.Points = append(track.Points, tp)
			}
		}
	}

	if err := validate(track); err != nil {
		return nil, err
	}
	return track, nil
}

// gpxLabel prefers the metadata name, which the kite trackers set to
// the session type ("Kiteboarding", "Wing Foiling", ...).
func gpxLabel(doc *gpx.GPX) string {
	if name := strings.TrimSpace(doc.Name); name != "" {
		return name
	}
	for _, trk := range doc.Tracks {
		if name := strings.TrimSpace(trk.Name); name != "" {
			return name
		}
	}
	return ""
}

// detectSourceApp classifies the GPX creator attribute.
func detectSourceApp(creator string) string {
	c := strings.ToLower(creator)
	switch {
	case strings.Contains(c, "hoolan"):
		return "Hoolan"
	case strings.Contains(c, "woo"):
		return "Woo"
	default:
		return "Unknown"
	}
}
