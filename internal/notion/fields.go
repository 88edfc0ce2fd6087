package notion

import (
	"fmt"
	"math"

	"github.com/exaphy/stravasync/internal/strava"
)

const (
	metersPerMile = 1609.344
	feetPerMeter  = 3.28084
)

// Fields is the rendered property set stored on a destination page. The
// reconciler compares this rendered form, not the raw source metrics, so that
// rounding never produces a spurious update on a re-run.
type Fields struct {
	Athlete       string
	ActivityName  string
	StravaID      string
	Date          string
	DistanceMiles float64
	MovingTime    string
	ElapsedTime   string
	ElevationFeet float64
}

// FieldsFromActivity renders a Strava activity into destination properties.
func FieldsFromActivity(a strava.Activity) Fields {
	return Fields{
		Athlete:       a.Athlete.DisplayName(),
		ActivityName:  a.Name,
		StravaID:      a.ID,
		Date:          a.StartDate.Format("2006-01-02"),
		DistanceMiles: round2(MilesFromMeters(a.DistanceMeters)),
		MovingTime:    formatDuration(a.MovingTimeSec),
		ElapsedTime:   formatDuration(a.ElapsedTimeSec),
		ElevationFeet: round1(a.ElevationGainMeters * feetPerMeter),
	}
}

// Record pairs a destination page with its rendered fields. PageID is the
// destination-assigned identifier; ExternalID is the Strava join key.
type Record struct {
	PageID     string
	ExternalID string
	Fields     Fields
}

// MilesFromMeters converts a raw Strava distance to miles.
func MilesFromMeters(meters float64) float64 {
	return meters / metersPerMile
}

// formatDuration renders seconds as HH:MM:SS.
func formatDuration(seconds int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

func formatMiles(miles float64) string {
	return fmt.Sprintf("%.2f", miles)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
