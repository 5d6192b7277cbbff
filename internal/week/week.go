// Package week converts relative week offsets into concrete roster periods.
package week

import (
	"time"

	"github.com/Alzter/EmpKiller/internal/model"
)

// Resolve computes the inclusive seven-day range for the roster week that
// is offset weeks away from the week containing today. Offset 0 is the
// current week, negative offsets are past weeks, positive are future.
//
// weekStart is the weekday the portal's roster period begins on. Resolve
// is a pure function of its arguments and performs no I/O.
func Resolve(offset int, today time.Time, weekStart time.Weekday) model.DateRange {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	// Walk back to the start of the week containing today.
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	start := day.AddDate(0, 0, -back+7*offset)

	return model.DateRange{
		Start: start,
		End:   start.AddDate(0, 0, 6),
	}
}
