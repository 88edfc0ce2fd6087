package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/exaphy/stravasync/internal/config"
	"github.com/exaphy/stravasync/internal/history"
)

var historyDate string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past sync runs from the local ledger",
	Long: `Pages through the SQLite ledger of completed sync runs, newest
first. With --date only runs for that calendar day are shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Initialize config
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := history.NewStore(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer store.Close()

		if historyDate != "" {
			runs, err := store.ListByWindow(historyDate)
			if err != nil {
				return fmt.Errorf("failed to get runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Printf("No runs recorded for %s\n", historyDate)
				return nil
			}
			printRuns(runs)
			return nil
		}

		// Page through the ledger
		page := 1
		pageSize := 20
		totalShown := 0

		for {
			runs, err := store.ListPaginated(page, pageSize)
			if err != nil {
				return fmt.Errorf("failed to get runs: %w", err)
			}

			if len(runs) == 0 {
				if totalShown == 0 {
					fmt.Println("No runs recorded yet")
				}
				break
			}

			printRuns(runs)
			totalShown += len(runs)

			// Only prompt if there might be more results
			if len(runs) == pageSize {
				fmt.Printf("\nPage %d (%d runs shown) - Show more? (y/n): ", page, totalShown)
				var response string
				fmt.Scanln(&response)
				if strings.ToLower(response) != "y" {
					break
				}
				page++
			} else {
				fmt.Printf("\nTotal: %d runs shown\n", totalShown)
				break
			}
		}

		return nil
	},
}

func printRuns(runs []history.Run) {
	for _, run := range runs {
		line := fmt.Sprintf("%s | %s | %s | created=%d updated=%d skipped=%d failed=%d | %s",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Window,
			run.Status,
			run.Created, run.Updated, run.Skipped, run.Failed,
			run.Duration.Round(10*time.Millisecond))
		if run.Error != "" {
			line += " | " + run.Error
		}
		fmt.Println(line)
	}
}

func init() {
	historyCmd.Flags().StringVar(&historyDate, "date", "", "Only show runs for this calendar day (YYYY-MM-DD)")

	rootCmd.AddCommand(historyCmd)
}
