package calsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Alzter/EmpKiller/internal/calendar"
	"github.com/Alzter/EmpKiller/internal/model"
)

// memStore is an in-memory calendar.Store with optional scripted failures.
type memStore struct {
	events []calendar.Event
	nextID int

	failCreateTitle string // Create fails for events with this title

	creates int
	updates int
}

func (m *memStore) List(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	out := make([]calendar.Event, 0, len(m.events))
	for _, ev := range m.events {
		if ev.End.Before(from) || ev.Start.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *memStore) Create(ctx context.Context, ev calendar.Event) (string, error) {
	if m.failCreateTitle != "" && ev.Title == m.failCreateTitle {
		return "", errors.New("store rejected event")
	}
	m.creates++
	m.nextID++
	ev.ID = fmt.Sprintf("ev-%d", m.nextID)
	m.events = append(m.events, ev)
	return ev.ID, nil
}

func (m *memStore) Update(ctx context.Context, ev calendar.Event) error {
	for i := range m.events {
		if m.events[i].ID == ev.ID {
			m.events[i] = ev
			m.updates++
			return nil
		}
	}
	return fmt.Errorf("no event %q", ev.ID)
}

func shiftAt(day, startHour, endHour int, job string) model.ShiftRecord {
	s := model.ShiftRecord{
		Start:      time.Date(2025, time.February, day, startHour, 0, 0, 0, time.Local),
		End:        time.Date(2025, time.February, day, endHour, 0, 0, 0, time.Local),
		Role:       "Team Member",
		Department: "Front End",
	}
	if job != "" {
		s.Job = &job
	}
	return s
}

func twoShiftRoster() model.Roster {
	return model.Roster{
		Range: model.DateRange{
			Start: time.Date(2025, time.February, 17, 0, 0, 0, 0, time.Local),
			End:   time.Date(2025, time.February, 23, 0, 0, 0, 0, time.Local),
		},
		Shifts: []model.ShiftRecord{
			shiftAt(21, 17, 19, "Checkout"),
			shiftAt(22, 17, 21, ""),
		},
	}
}

func TestSyncCreatesEventsWithReminder(t *testing.T) {
	store := &memStore{}
	res, err := New(store).Sync(context.Background(), twoShiftRoster(), 120)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if res.Created != 2 || res.Updated != 0 || res.Skipped != 0 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v, want 2 created", res)
	}
	if len(store.events) != 2 {
		t.Fatalf("store has %d events, want 2", len(store.events))
	}

	roster := twoShiftRoster()
	for i, ev := range store.events {
		if !ev.Start.Equal(roster.Shifts[i].Start) || !ev.End.Equal(roster.Shifts[i].End) {
			t.Errorf("event %d times %v-%v do not match shift", i, ev.Start, ev.End)
		}
		if ev.ReminderMinutes != 120 {
			t.Errorf("event %d reminder = %d, want 120", i, ev.ReminderMinutes)
		}
	}
	if store.events[0].Title != "Team Member (Front End) - Checkout" {
		t.Errorf("unexpected title %q", store.events[0].Title)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := &memStore{}
	syncer := New(store)
	roster := twoShiftRoster()

	if _, err := syncer.Sync(context.Background(), roster, 120); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	res, err := syncer.Sync(context.Background(), roster, 120)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if res.Created != 0 || res.Updated != 0 || res.Skipped != 2 {
		t.Fatalf("second run = %+v, want all skipped", res)
	}
	if store.creates != 2 || store.updates != 0 {
		t.Errorf("second run mutated the store: %d creates, %d updates", store.creates, store.updates)
	}
}

func TestSyncUpdatesChangedReminder(t *testing.T) {
	store := &memStore{}
	syncer := New(store)
	roster := twoShiftRoster()

	if _, err := syncer.Sync(context.Background(), roster, 60); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	res, err := syncer.Sync(context.Background(), roster, 120)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if res.Updated != 2 || res.Created != 0 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want 2 updated", res)
	}
	for _, ev := range store.events {
		if ev.ReminderMinutes != 120 {
			t.Errorf("event %s reminder = %d, want 120", ev.ID, ev.ReminderMinutes)
		}
	}
}

func TestSyncPreservesUserEditedTitle(t *testing.T) {
	store := &memStore{}
	syncer := New(store)
	roster := twoShiftRoster()

	if _, err := syncer.Sync(context.Background(), roster, 60); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	store.events[0].Title = "My shift (renamed)"

	if _, err := syncer.Sync(context.Background(), roster, 120); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if store.events[0].Title != "My shift (renamed)" {
		t.Errorf("update overwrote user-edited title: %q", store.events[0].Title)
	}
}

func TestSyncContinuesAfterEventFailure(t *testing.T) {
	store := &memStore{failCreateTitle: "Team Member (Front End) - Checkout"}
	res, err := New(store).Sync(context.Background(), twoShiftRoster(), 120)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if res.Created != 1 {
		t.Errorf("created = %d, want 1 (failure must not abort the batch)", res.Created)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(res.Failures))
	}
	if !res.Failures[0].Shift.Start.Equal(twoShiftRoster().Shifts[0].Start) {
		t.Errorf("failure records wrong shift: %v", res.Failures[0].Shift.Start)
	}
}

func TestSyncEmptyRosterIsNoop(t *testing.T) {
	store := &memStore{}
	roster := twoShiftRoster()
	roster.Shifts = nil

	res, err := New(store).Sync(context.Background(), roster, 120)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Created != 0 || res.Updated != 0 || res.Skipped != 0 {
		t.Errorf("empty roster produced mutations: %+v", res)
	}
}

func TestSyncDoesNotDeleteVanishedShifts(t *testing.T) {
	store := &memStore{}
	syncer := New(store)
	roster := twoShiftRoster()

	if _, err := syncer.Sync(context.Background(), roster, 120); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// The second shift disappears from the roster; its event must remain.
	roster.Shifts = roster.Shifts[:1]
	if _, err := syncer.Sync(context.Background(), roster, 120); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if len(store.events) != 2 {
		t.Errorf("store has %d events, want 2 (vanished shifts are never deleted)", len(store.events))
	}
}
