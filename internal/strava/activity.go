package strava

import (
	"fmt"
	"time"
)

// Athlete identifies the person who recorded an activity.
type Athlete struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// DisplayName returns the athlete's name as shown in the destination.
func (a Athlete) DisplayName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Activity represents a single Strava club activity. The ID is the stable
// external identifier used as the join key against the destination.
type Activity struct {
	ID                  string
	Name                string
	Type                string
	Athlete             Athlete
	StartDate           time.Time
	DistanceMeters      float64
	MovingTimeSec       int64
	ElapsedTimeSec      int64
	ElevationGainMeters float64
}

// Window bounds one sync run to a single calendar day [Start, End) in the
// reference timezone.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds the window for a calendar date ("2006-01-02") in loc.
func NewWindow(date string, loc *time.Location) (Window, error) {
	start, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return Window{Start: start, End: start.AddDate(0, 0, 1)}, nil
}

// TodayWindow returns the window for the current day in loc.
func TodayWindow(loc *time.Location) Window {
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Date returns the window's calendar date in the reference timezone.
func (w Window) Date() string {
	return w.Start.Format("2006-01-02")
}
