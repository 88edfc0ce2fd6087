package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/exaphy/stravasync/internal/config"
	"github.com/exaphy/stravasync/internal/notion"
	"github.com/exaphy/stravasync/internal/strava"
	syncengine "github.com/exaphy/stravasync/internal/sync"
)

var leaderboardDate string

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rebuild the Notion mileage leaderboard for one day",
	Long: `Aggregates total miles per athlete across a calendar day's club
activities, archives every row of the leaderboard database and pushes
fresh rows plus a Totals row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.NotionLeaderboardDBID == "" {
			return fmt.Errorf("NOTION_LEADERBOARD_DB_ID environment variable is required")
		}

		logger := newLogger()

		window, err := resolveWindow(cfg, leaderboardDate)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		activities, err := strava.NewClient(cfg, logger).FetchWindow(ctx, window)
		if err != nil {
			return fmt.Errorf("fetching activities: %w", err)
		}

		rows := syncengine.AggregateLeaderboard(activities)
		if len(rows) == 0 {
			fmt.Printf("No activities found for %s, leaderboard left untouched\n", window.Date())
			return nil
		}

		limiter := rate.NewLimiter(rate.Every(cfg.WriteInterval), 1)
		client := notion.NewClient(cfg, logger)
		if err := syncengine.PublishLeaderboard(ctx, client, cfg.NotionLeaderboardDBID, rows, limiter, logger); err != nil {
			return fmt.Errorf("leaderboard publish failed: %w", err)
		}

		fmt.Printf("Leaderboard for %s: %d athletes, %.2f total miles\n",
			window.Date(), len(rows), syncengine.TotalMiles(rows))
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardDate, "date", "", "Calendar day to aggregate (YYYY-MM-DD, default: today)")

	rootCmd.AddCommand(leaderboardCmd)
}
