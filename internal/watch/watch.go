// Package watch runs the fetch+sync pipeline on a cron schedule so the
// calendar tracks roster changes without manual runs.
package watch

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/Alzter/EmpKiller/internal/calsync"
	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/roster"
)

// Runner periodically fetches the current and upcoming roster weeks and
// syncs each into the calendar.
type Runner struct {
	repo            *roster.Repository
	sync            *calsync.Synchronizer
	reminderMinutes int
	weeksAhead      int
	cronSpec        string
}

// New creates a Runner. weeksAhead is how many future weeks are kept in
// sync in addition to the current one.
func New(repo *roster.Repository, sync *calsync.Synchronizer, reminderMinutes, weeksAhead int, cronSpec string) *Runner {
	return &Runner{
		repo:            repo,
		sync:            sync,
		reminderMinutes: reminderMinutes,
		weeksAhead:      weeksAhead,
		cronSpec:        cronSpec,
	}
}

// Run performs one immediate pass, then keeps syncing on the configured
// cron schedule until ctx is canceled. Pass-level failures are logged and
// do not stop the loop: a transient portal outage must not kill the
// watcher.
func (r *Runner) Run(ctx context.Context) error {
	r.pass(ctx)

	c := cron.New()
	if _, err := c.AddFunc(r.cronSpec, func() { r.pass(ctx) }); err != nil {
		return fmt.Errorf("watch: bad cron spec %q: %w", r.cronSpec, err)
	}

	appLog.Info("watch started", "cron", r.cronSpec, "weeks_ahead", r.weeksAhead)
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	appLog.Info("watch stopped")
	return nil
}

// pass syncs the current week plus the configured number of future weeks.
func (r *Runner) pass(ctx context.Context) {
	for offset := 0; offset <= r.weeksAhead; offset++ {
		if ctx.Err() != nil {
			return
		}

		rst, err := r.repo.GetRoster(ctx, offset)
		if err != nil {
			appLog.Error("watch: roster fetch failed", err, "offset", offset)
			continue
		}

		res, err := r.sync.Sync(ctx, rst, r.reminderMinutes)
		if err != nil {
			appLog.Error("watch: sync failed", err, "offset", offset)
			continue
		}
		for _, f := range res.Failures {
			appLog.Error("watch: event sync failed", f.Err, "offset", offset, "shift", f.Shift.Start)
		}
	}
}
