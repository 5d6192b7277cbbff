// Package calendar abstracts the external calendar service the roster is
// synchronized into. Two stores are provided: a local ICS file and Google
// Calendar. The synchronizer only depends on the Store interface.
package calendar

import (
	"context"
	"time"
)

// Event is a timed calendar event with a single pre-start reminder. The
// calendar is shared mutable external state: events may have been created
// or edited by other tools or by the user, so only ID, Start and End are
// treated as authoritative for matching.
type Event struct {
	ID              string
	Title           string
	Start           time.Time
	End             time.Time
	ReminderMinutes int
}

// Store is the minimal calendar surface required for roster sync.
type Store interface {
	// List returns the events overlapping [from, to].
	List(ctx context.Context, from, to time.Time) ([]Event, error)

	// Create adds a new event and returns its identifier.
	Create(ctx context.Context, ev Event) (string, error)

	// Update rewrites the event identified by ev.ID in place.
	Update(ctx context.Context, ev Event) error
}
