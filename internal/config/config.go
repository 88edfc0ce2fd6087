package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	StravaAccessToken string
	StravaClubID      string
	NotionToken       string
	NotionDatabaseID  string
	// NotionLeaderboardDBID is only required by the leaderboard command.
	NotionLeaderboardDBID string
	DatabasePath          string
	Timezone              string
	ActivityType          string
	WriteInterval         time.Duration
	WriteWorkers          int
	MaxRetries            int
}

// LoadConfig loads configuration from the environment via viper.
// Defaults and env bindings are registered in the root command's init.
func LoadConfig() (*Config, error) {
	token := viper.GetString("strava_access_token")
	clubID := viper.GetString("strava_club_id")
	if token == "" || clubID == "" {
		return nil, fmt.Errorf("STRAVA_ACCESS_TOKEN and STRAVA_CLUB_ID environment variables are required")
	}

	notionToken := viper.GetString("notion_token")
	notionDBID := viper.GetString("notion_database_id")
	if notionToken == "" || notionDBID == "" {
		return nil, fmt.Errorf("NOTION_TOKEN and NOTION_DATABASE_ID environment variables are required")
	}

	cfg := &Config{
		StravaAccessToken:     token,
		StravaClubID:          clubID,
		NotionToken:           notionToken,
		NotionDatabaseID:      notionDBID,
		NotionLeaderboardDBID: viper.GetString("notion_leaderboard_db_id"),
		DatabasePath:          viper.GetString("database_path"),
		Timezone:              viper.GetString("sync_timezone"),
		ActivityType:          viper.GetString("sync_activity_type"),
		WriteInterval:         parseDuration(viper.GetString("rate_limit"), 350*time.Millisecond),
		WriteWorkers:          viper.GetInt("sync_workers"),
		MaxRetries:            viper.GetInt("sync_max_retries"),
	}

	if cfg.WriteWorkers < 1 {
		cfg.WriteWorkers = 1
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	return cfg, nil
}

// parseDuration parses a duration string with a default
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return d
}
