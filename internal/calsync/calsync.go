// Package calsync reconciles a fetched roster against a calendar store,
// creating or updating one event per shift without ever duplicating or
// deleting events.
package calsync

import (
	"context"
	"fmt"
	"time"

	"github.com/Alzter/EmpKiller/internal/calendar"
	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/model"
)

// Result aggregates one sync run. Per-event failures are collected here
// rather than aborting the batch; Created+Updated+Skipped+len(Failures)
// equals the number of shifts in the roster.
type Result struct {
	Created  int
	Updated  int
	Skipped  int
	Failures []Failure
}

// Failure records a single shift whose calendar mutation failed.
type Failure struct {
	Shift model.ShiftRecord
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("shift %s: %v", f.Shift.Start.Format(time.RFC3339), f.Err)
}

// Synchronizer maps shifts onto calendar events. Matching is by exact
// (start, end) only: titles may have been edited by the user and the
// portal's job IDs are not known to be stable across weeks, so neither
// participates in the match key. Shifts that disappeared from the roster
// are deliberately never deleted; a transient fetch problem must not
// destroy calendar entries.
type Synchronizer struct {
	store calendar.Store
}

// New creates a Synchronizer over the given calendar store.
func New(store calendar.Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// Sync reconciles the roster against the calendar. For each shift: no
// matching event → create one with the configured reminder; a matching
// event with a different reminder → update it in place; an identical
// event → skip. Re-running Sync on unchanged input performs zero calendar
// mutations.
func (s *Synchronizer) Sync(ctx context.Context, roster model.Roster, reminderMinutes int) (Result, error) {
	var res Result
	if len(roster.Shifts) == 0 {
		appLog.Info("sync: roster empty, nothing to do", "range", roster.Range)
		return res, nil
	}

	// Cross-midnight shifts on the last roster day end after the range,
	// so the listing window extends past it.
	from := roster.Range.Start
	to := roster.Range.End.AddDate(0, 0, 2)
	existing, err := s.store.List(ctx, from, to)
	if err != nil {
		return res, fmt.Errorf("sync: listing calendar events: %w", err)
	}

	matched := make(map[int]bool, len(existing))

	for _, shift := range roster.Shifts {
		ev, idx := findMatch(existing, matched, shift)
		switch {
		case idx < 0:
			created := calendar.Event{
				Title:           shift.Title(),
				Start:           shift.Start,
				End:             shift.End,
				ReminderMinutes: reminderMinutes,
			}
			id, cerr := s.store.Create(ctx, created)
			if cerr != nil {
				res.Failures = append(res.Failures, Failure{Shift: shift, Err: cerr})
				appLog.Error("sync: create failed", cerr, "start", shift.Start)
				continue
			}
			res.Created++
			appLog.Debug("sync: event created", "id", id, "start", shift.Start)

		case ev.ReminderMinutes != reminderMinutes:
			// Keep the event's existing title: the user may have renamed
			// it, and titles are advisory.
			updated := ev
			updated.ReminderMinutes = reminderMinutes
			if uerr := s.store.Update(ctx, updated); uerr != nil {
				res.Failures = append(res.Failures, Failure{Shift: shift, Err: uerr})
				appLog.Error("sync: update failed", uerr, "id", ev.ID, "start", shift.Start)
				continue
			}
			matched[idx] = true
			res.Updated++
			appLog.Debug("sync: event updated", "id", ev.ID, "start", shift.Start)

		default:
			matched[idx] = true
			res.Skipped++
		}
	}

	appLog.Info("sync complete",
		"range", roster.Range,
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"failed", len(res.Failures),
	)
	return res, nil
}

// findMatch returns the first not-yet-claimed event whose start and end
// equal the shift's, or idx -1 when none matches.
func findMatch(existing []calendar.Event, matched map[int]bool, shift model.ShiftRecord) (calendar.Event, int) {
	for i, ev := range existing {
		if matched[i] {
			continue
		}
		if ev.Start.Equal(shift.Start) && ev.End.Equal(shift.End) {
			return ev, i
		}
	}
	return calendar.Event{}, -1
}
