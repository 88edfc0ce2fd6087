package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/exaphy/stravasync/internal/notion"
	"github.com/exaphy/stravasync/internal/strava"
)

// LeaderboardRow is one athlete's total mileage across a window.
type LeaderboardRow struct {
	AthleteID int64
	Athlete   string
	Miles     float64
}

// AggregateLeaderboard sums distance per athlete and orders the board by
// mileage, highest first. Ties break on athlete name so the output is
// deterministic.
func AggregateLeaderboard(activities []strava.Activity) []LeaderboardRow {
	totals := make(map[int64]*LeaderboardRow)
	for _, a := range activities {
		row, ok := totals[a.Athlete.ID]
		if !ok {
			row = &LeaderboardRow{AthleteID: a.Athlete.ID, Athlete: a.Athlete.DisplayName()}
			totals[a.Athlete.ID] = row
		}
		row.Miles += notion.MilesFromMeters(a.DistanceMeters)
	}

	rows := make([]LeaderboardRow, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Miles != rows[j].Miles {
			return rows[i].Miles > rows[j].Miles
		}
		return rows[i].Athlete < rows[j].Athlete
	})
	return rows
}

// TotalMiles sums the whole board for the Totals row.
func TotalMiles(rows []LeaderboardRow) float64 {
	var total float64
	for _, r := range rows {
		total += r.Miles
	}
	return total
}

// LeaderboardWriter is the destination surface for replacing the leaderboard.
// Satisfied by *notion.Client.
type LeaderboardWriter interface {
	ListPageIDs(ctx context.Context, databaseID string) ([]string, error)
	ArchivePage(ctx context.Context, pageID string) error
	CreateLeaderboardRow(ctx context.Context, databaseID, athlete string, miles float64) error
	CreateLeaderboardTotals(ctx context.Context, databaseID string, totalMiles float64) error
}

// PublishLeaderboard replaces the leaderboard database contents: every
// existing row is archived, then one row per athlete plus a Totals row is
// pushed. Writes share the caller's rate limiter.
func PublishLeaderboard(ctx context.Context, w LeaderboardWriter, databaseID string, rows []LeaderboardRow, limiter *rate.Limiter, logger zerolog.Logger) error {
	pageIDs, err := w.ListPageIDs(ctx, databaseID)
	if err != nil {
		return fmt.Errorf("listing leaderboard rows: %w", err)
	}

	for _, id := range pageIDs {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := w.ArchivePage(ctx, id); err != nil {
			return fmt.Errorf("archiving leaderboard row %s: %w", id, err)
		}
	}
	logger.Debug().Int("archived", len(pageIDs)).Msg("cleared previous leaderboard")

	for _, row := range rows {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := w.CreateLeaderboardRow(ctx, databaseID, row.Athlete, row.Miles); err != nil {
			return fmt.Errorf("pushing leaderboard row for %s: %w", row.Athlete, err)
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	if err := w.CreateLeaderboardTotals(ctx, databaseID, TotalMiles(rows)); err != nil {
		return fmt.Errorf("pushing leaderboard totals: %w", err)
	}

	logger.Info().Int("athletes", len(rows)).Msg("leaderboard published")
	return nil
}
