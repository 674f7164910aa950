package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyOffset int
	purgeDays     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCLIApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		records, err := a.store.List(ctx, historyLimit, historyOffset)
		if err != nil {
			return fmt.Errorf("listing notifications: %w", err)
		}
		total, err := a.store.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting notifications: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No notifications recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEVENT\tFILE\tSTATUS\tSENT\tFAILED\tCREATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				r.ID[:8], r.EventType, r.FileName, r.Status,
				r.SuccessCount, r.FailedCount, humanize.Time(r.CreatedAt))
		}
		w.Flush()
		fmt.Printf("\nShowing %d of %d\n", len(records), total)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show delivery statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCLIApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.store.Statistics(context.Background())
		if err != nil {
			return fmt.Errorf("computing statistics: %w", err)
		}

		fmt.Printf("Notifications:  %s (%d pending, %d completed)\n",
			humanize.Comma(int64(s.TotalNotifications)), s.Pending, s.Completed)
		fmt.Printf("Messages sent:  %s\n", humanize.Comma(int64(s.TotalSent)))
		fmt.Printf("Failures:       %s\n", humanize.Comma(int64(s.TotalFailed)))
		fmt.Printf("Success rate:   %.1f%%\n", s.SuccessRate)
		fmt.Printf("Last 24 hours:  %d\n", s.Last24Hours)
		for eventType, n := range s.ByEventType {
			fmt.Printf("  %-20s %d\n", eventType, n)
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete notification records older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCLIApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.PurgeOlderThan(context.Background(), purgeDays)
		if err != nil {
			return fmt.Errorf("purging notifications: %w", err)
		}
		fmt.Printf("Deleted %d record(s) older than %d days\n", n, purgeDays)
		return nil
	},
}

// openCLIApp opens the app for read-only commands, logging to stderr.
func openCLIApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return newApp(cfg, logger)
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of records to show")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "number of records to skip")
	purgeCmd.Flags().IntVar(&purgeDays, "days", 30, "age in days of records to delete")
	rootCmd.AddCommand(historyCmd, statsCmd, purgeCmd)
}
