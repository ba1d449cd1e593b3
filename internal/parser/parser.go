package parser

import (
	"errors"
	"fmt"

	"github.com/kitesync/kitesync/internal/models"
)

var (
	// ErrMalformedInput marks files that are not well-formed GPX/FIT or
	// are missing required track-point fields.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyTrack marks files that parse but contain no track points.
	ErrEmptyTrack = errors.New("empty track")

	// ErrUnsupportedFormat marks files that are neither GPX nor FIT.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Parser turns raw file contents into a Track.
type Parser interface {
	Parse(data []byte) (*models.Track, error)
}

// validate enforces the Track invariants shared by all formats: at
// least one point, every point timestamped, timestamps non-decreasing.
func validate(t *models.Track) error {
	if len(t.Points) == 0 {
		return ErrEmptyTrack
	}
	for i, p := range t.Points {
		if p.Time.IsZero() {
			return fmt.Errorf("%w: point %d has no timestamp", ErrMalformedInput, i)
		}
		if i > 0 && p.Time.Before(t.Points[i-1].Time) {
			return fmt.Errorf("%w: timestamps decrease at point %d", ErrMalformedInput, i)
		}
	}
	return nil
}
