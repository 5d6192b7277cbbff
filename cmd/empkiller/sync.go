package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	syncWeek     int
	syncReminder int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch a week's roster and sync it into the calendar",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().IntVar(&syncWeek, "week", 0, "week offset (0 = current, 1 = next, -1 = previous)")
	syncCmd.Flags().IntVar(&syncReminder, "reminder", 0, "reminder lead time in minutes (overrides config)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	reminder := a.cfg.ReminderMinutes
	if syncReminder > 0 {
		reminder = syncReminder
	}

	rst, err := a.repo.GetRoster(ctx, syncWeek)
	if err != nil {
		return err
	}

	syncer, err := a.synchronizer(ctx)
	if err != nil {
		return err
	}

	res, err := syncer.Sync(ctx, rst, reminder)
	if err != nil {
		return err
	}

	fmt.Printf("synced %s: %d created, %d updated, %d skipped\n",
		rst.Range, res.Created, res.Updated, res.Skipped)
	for _, f := range res.Failures {
		fmt.Printf("  failed: %s\n", f)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d of %d events failed to sync", len(res.Failures), len(rst.Shifts))
	}
	return nil
}
