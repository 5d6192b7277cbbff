package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the calendar synced with the roster on a schedule",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	syncer, err := a.synchronizer(ctx)
	if err != nil {
		return err
	}

	runner := watch.New(a.repo, syncer, a.cfg.ReminderMinutes, a.cfg.WeeksAhead, a.cfg.RefreshCron)
	return runner.Run(ctx)
}
