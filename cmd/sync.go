package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/exaphy/stravasync/internal/config"
	"github.com/exaphy/stravasync/internal/history"
	"github.com/exaphy/stravasync/internal/notion"
	"github.com/exaphy/stravasync/internal/strava"
	syncengine "github.com/exaphy/stravasync/internal/sync"
)

var syncDate string
var syncMaxRetries int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync one day of club activities into Notion",
	Long: `Fetches all Strava club activities for a calendar day, diffs them
against the Notion activities database and applies the resulting
creates and updates. Without --date the current day in the reference
timezone is synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("max-retries") {
			cfg.MaxRetries = syncMaxRetries
		}

		logger := newLogger()

		window, err := resolveWindow(cfg, syncDate)
		if err != nil {
			return err
		}

		// Stop issuing new writes on SIGINT/SIGTERM; in-flight writes finish.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine := syncengine.NewEngine(syncengine.EngineConfig{
			Source:        strava.NewClient(cfg, logger),
			Destination:   notion.NewClient(cfg, logger),
			DatabaseID:    cfg.NotionDatabaseID,
			Workers:       cfg.WriteWorkers,
			WriteInterval: cfg.WriteInterval,
			Logger:        logger,
		})

		startedAt := time.Now()
		summary, err := engine.Run(ctx, window)
		if err != nil {
			recordRun(logger, cfg.DatabasePath, history.Run{
				ID:        uuid.NewString(),
				Window:    window.Date(),
				Status:    history.StatusFailed,
				Error:     err.Error(),
				StartedAt: startedAt,
				Duration:  time.Since(startedAt),
			})
			return fmt.Errorf("sync failed: %w", err)
		}

		recordRun(logger, cfg.DatabasePath, history.Run{
			ID:        uuid.NewString(),
			Window:    summary.Window,
			Status:    history.StatusDone,
			Created:   summary.Created,
			Updated:   summary.Updated,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			StartedAt: startedAt,
			Duration:  summary.Duration,
		})

		fmt.Printf("Sync summary for %s: %d created, %d updated, %d skipped, %d failed\n",
			summary.Window, summary.Created, summary.Updated, summary.Skipped, summary.Failed)
		for _, f := range summary.Failures {
			fmt.Printf("  failed %s: %v\n", f.ExternalID, f.Err)
		}

		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncDate, "date", "", "Calendar day to sync (YYYY-MM-DD, default: today)")
	syncCmd.Flags().IntVar(&syncMaxRetries, "max-retries", 3, "Maximum retry attempts per API call")

	rootCmd.AddCommand(syncCmd)
}

// resolveWindow turns the --date flag into a one-day window in the reference
// timezone; an empty flag means today.
func resolveWindow(cfg *config.Config, date string) (strava.Window, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return strava.Window{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if date == "" {
		return strava.TodayWindow(loc), nil
	}
	return strava.NewWindow(date, loc)
}

// recordRun appends a row to the run ledger. Ledger trouble never fails the
// sync itself.
func recordRun(logger zerolog.Logger, path string, run history.Run) {
	store, err := history.NewStore(path)
	if err != nil {
		logger.Warn().Err(err).Msg("could not open run ledger")
		return
	}
	defer store.Close()

	if err := store.Record(run); err != nil {
		logger.Warn().Err(err).Msg("could not record run in ledger")
	}
}
