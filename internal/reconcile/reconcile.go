// Package reconcile decides which local tracks are already on Strava.
// It builds a fuzzy fingerprint index of all remote activities once per
// run and probes it with small start/duration offsets, since the time
// Strava records for an uploaded file rarely matches the GPX metadata
// to the second.
package reconcile

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/kitesync/kitesync/internal/models"
	"github.com/kitesync/kitesync/internal/strava"
)

// Probe tolerances, in minutes.
const (
	startTolerance = 2
	durTolerance   = 3
)

// Signature is a fuzzy fingerprint for duplicate detection: rounded
// start minute, rounded duration, start coordinates at 4 decimals
// (about 11 m).
type Signature struct {
	StartMin int64
	DurMin   int
	Lat4     float64
	Lon4     float64
}

// ActivityLister is the slice of the Strava client the reconciler uses.
type ActivityLister interface {
	ListActivities(ctx context.Context) ([]strava.Activity, error)
}

type Reconciler struct {
	index map[Signature]int64 // signature -> strava activity id
}

// NewReconciler fetches all Strava activities and indexes them.
// Activities without a usable GPS start point are skipped.
func NewReconciler(ctx context.Context, lister ActivityLister) (*Reconciler, error) {
	log.Println("Building Strava activity index")

	activities, err := lister.ListActivities(ctx)
	if err != nil {
		return nil, err
	}

	r := &Reconciler{index: make(map[Signature]int64, len(activities))}
	skipped := 0
	for _, act := range activities {
		sig, ok := signatureFromActivity(act)
		if !ok {
			skipped++
			continue
		}
		r.index[sig] = act.ID
	}

	log.Printf("Indexed %d Strava activities (%d skipped for missing GPS)", len(r.index), skipped)
	return r, nil
}

// FindDuplicate reports the Strava activity id matching the track, if
// any signature within the probe tolerances is indexed.
func (r *Reconciler) FindDuplicate(track *models.Track) (int64, bool) {
	sig := SignatureFromTrack(track)
	for dt := -startTolerance; dt <= startTolerance; dt++ {
		for dd := -durTolerance; dd <= durTolerance; dd++ {
			probe := Signature{
				StartMin: sig.StartMin + int64(dt),
				DurMin:   sig.DurMin + dd,
				Lat4:     sig.Lat4,
				Lon4:     sig.Lon4,
			}
			if id, ok := r.index[probe]; ok {
				return id, true
			}
		}
	}
	return 0, false
}

func SignatureFromTrack(t *models.Track) Signature {
	lat, lon := t.StartLatLng()
	return Signature{
		StartMin: roundToMinute(t.StartTime()),
		DurMin:   int(math.Round(t.Duration().Minutes())),
		Lat4:     round4(lat),
		Lon4:     round4(lon),
	}
}

func signatureFromActivity(a strava.Activity) (Signature, bool) {
	if len(a.StartLatLng) < 2 {
		return Signature{}, false
	}
	return Signature{
		StartMin: roundToMinute(a.StartDate),
		DurMin:   int(math.Round(float64(a.ElapsedTime) / 60)),
		Lat4:     round4(a.StartLatLng[0]),
		Lon4:     round4(a.StartLatLng[1]),
	}, true
}

func roundToMinute(t time.Time) int64 {
	return int64(math.Round(float64(t.Unix()) / 60))
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
