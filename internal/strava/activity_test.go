package strava

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	w, err := NewWindow("2024-01-15", loc)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-15", w.Date())
	assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))

	// Window boundaries are half-open: [start, end).
	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End.Add(-time.Second)))
	assert.False(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.Start.Add(-time.Second)))
}

func TestNewWindowRejectsBadDate(t *testing.T) {
	_, err := NewWindow("15/01/2024", time.UTC)
	require.Error(t, err)
}

func TestTodayWindowContainsNow(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	w := TodayWindow(loc)
	assert.True(t, w.Contains(time.Now()))
}

func TestAthleteDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Athlete{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "Ada", Athlete{FirstName: "Ada"}.DisplayName())
}
