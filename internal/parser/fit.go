package parser

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tormoder/fit"

	"github.com/kitesync/kitesync/internal/models"
)

// FITParser parses FIT activity files (Woo hardware exports FIT rather
// than GPX).
type FITParser struct{}

func (p *FITParser) Parse(data []byte) (*models.Track, error) {
	fitFile, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	activity, err := fitFile.Activity()
	if err != nil {
		return nil, fmt.Errorf("%w: not an activity file: %v", ErrMalformedInput, err)
	}

	track := &models.Track{SourceApp: "Woo"}
	if len(activity.Sessions) > 0 {
		track.Label = activity.Sessions[0].Sport.String()
	}

	for _, rec := range activity.Records {
		lat := rec.PositionLat.Degrees()
		lon := rec.PositionLong.Degrees()
		if math.IsNaN(lat) || math.IsNaN(lon) {
			continue // record without a GPS fix
		}
		tp := models.TrackPoint{
			Lat:  lat,
			Lon:  lon,
			Time: rec.Timestamp,
		}
		if alt := rec.GetAltitudeScaled(); !math.IsNaN(alt) {
			tp.Elevation = alt
		}
		track.Points = append(track.Points, tp)
	}

	if err := validate(track); err != nil {
		return nil, err
	}
	return track, nil
}
