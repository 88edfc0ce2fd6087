package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/exaphy/stravasync/internal/strava"
)

func athleteActivity(athleteID int64, first string, distanceMeters float64) strava.Activity {
	return strava.Activity{
		ID:             "x",
		Athlete:        strava.Athlete{ID: athleteID, FirstName: first},
		StartDate:      time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
		DistanceMeters: distanceMeters,
	}
}

func TestAggregateLeaderboard(t *testing.T) {
	activities := []strava.Activity{
		athleteActivity(1, "Ada", 1609.344),   // 1 mile
		athleteActivity(2, "Grace", 4828.032), // 3 miles
		athleteActivity(1, "Ada", 1609.344),   // +1 mile
	}

	rows := AggregateLeaderboard(activities)
	require.Len(t, rows, 2)

	// Ordered by mileage, highest first; both of Ada's runs summed.
	assert.Equal(t, "Grace", rows[0].Athlete)
	assert.InDelta(t, 3.0, rows[0].Miles, 1e-9)
	assert.Equal(t, "Ada", rows[1].Athlete)
	assert.InDelta(t, 2.0, rows[1].Miles, 1e-9)

	assert.InDelta(t, 5.0, TotalMiles(rows), 1e-9)
}

func TestAggregateLeaderboardTieBreaksOnName(t *testing.T) {
	rows := AggregateLeaderboard([]strava.Activity{
		athleteActivity(2, "Grace", 1609.344),
		athleteActivity(1, "Ada", 1609.344),
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada", rows[0].Athlete)
	assert.Equal(t, "Grace", rows[1].Athlete)
}

func TestAggregateLeaderboardEmpty(t *testing.T) {
	assert.Empty(t, AggregateLeaderboard(nil))
	assert.Zero(t, TotalMiles(nil))
}

type stubBoard struct {
	existing []string
	archived []string
	rows     []string
	totals   []float64
}

func (s *stubBoard) ListPageIDs(ctx context.Context, databaseID string) ([]string, error) {
	return s.existing, nil
}

func (s *stubBoard) ArchivePage(ctx context.Context, pageID string) error {
	s.archived = append(s.archived, pageID)
	return nil
}

func (s *stubBoard) CreateLeaderboardRow(ctx context.Context, databaseID, athlete string, miles float64) error {
	s.rows = append(s.rows, athlete)
	return nil
}

func (s *stubBoard) CreateLeaderboardTotals(ctx context.Context, databaseID string, totalMiles float64) error {
	s.totals = append(s.totals, totalMiles)
	return nil
}

func TestPublishLeaderboardReplacesBoard(t *testing.T) {
	board := &stubBoard{existing: []string{"old-1", "old-2"}}
	rows := []LeaderboardRow{
		{AthleteID: 2, Athlete: "Grace", Miles: 5},
		{AthleteID: 1, Athlete: "Ada", Miles: 3},
	}

	limiter := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	err := PublishLeaderboard(context.Background(), board, "lb-1", rows, limiter, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"old-1", "old-2"}, board.archived)
	assert.Equal(t, []string{"Grace", "Ada"}, board.rows)
	require.Len(t, board.totals, 1)
	assert.InDelta(t, 8.0, board.totals[0], 1e-9)
}
