package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "stravasync",
	Short: "stravasync copies Strava club activities into Notion databases",
	Long: `stravasync is a CLI application that:
1. Fetches club activities from the Strava API for one calendar day
2. Reconciles them against an existing Notion database (create/update/skip)
3. Applies the writes with retry, backoff and rate limiting
4. Tracks run summaries in a SQLite ledger`,
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Bind environment variables
	viper.BindEnv("strava_access_token")
	viper.BindEnv("strava_club_id")
	viper.BindEnv("notion_token")
	viper.BindEnv("notion_database_id")
	viper.BindEnv("notion_leaderboard_db_id")
	viper.BindEnv("database_path")
	viper.BindEnv("rate_limit")
	viper.BindEnv("sync_timezone")
	viper.BindEnv("sync_activity_type")
	viper.BindEnv("sync_workers")
	viper.BindEnv("sync_max_retries")
	viper.BindEnv("log_level")

	// Set default values
	viper.SetDefault("database_path", "stravasync.db")
	viper.SetDefault("rate_limit", "350ms")
	viper.SetDefault("sync_timezone", "America/Los_Angeles")
	viper.SetDefault("sync_activity_type", "Run")
	viper.SetDefault("sync_workers", 4)
	viper.SetDefault("sync_max_retries", 3)
	viper.SetDefault("log_level", "info")
}

// newLogger builds the process logger writing human-readable output to stderr.
func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
