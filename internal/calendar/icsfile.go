package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "github.com/Alzter/EmpKiller/internal/log"
)

const icsProductID = "-//EmpKiller//Roster Sync//EN"

// ICSFileStore keeps the shift calendar in a local .ics file that desktop
// and phone calendar apps can subscribe to. Every operation re-reads the
// file so external edits between runs are observed.
type ICSFileStore struct {
	path string
	mu   sync.Mutex
}

// NewICSFileStore creates a store backed by the given .ics path. A missing
// file is treated as an empty calendar and created on first write.
func NewICSFileStore(path string) (*ICSFileStore, error) {
	if path == "" {
		return nil, errors.New("calendar: ics path is empty")
	}
	return &ICSFileStore{path: path}, nil
}

// List returns the events in the file whose span overlaps [from, to].
func (s *ICSFileStore) List(_ context.Context, from, to time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := eventFromVEvent(ve)
		if perr != nil {
			// A malformed foreign event is not ours to fail on.
			appLog.Warn("ics event skipped", "uid", ve.Id(), "reason", perr)
			continue
		}
		if ev.End.Before(from) || ev.Start.After(to) {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Create appends a new VEVENT and returns its UID.
func (s *ICSFileStore) Create(_ context.Context, ev Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return "", err
	}

	uid := uuid.NewString() + "@empkiller"
	ve := cal.AddEvent(uid)
	applyEvent(ve, ev)

	if err := s.save(cal); err != nil {
		return "", err
	}
	return uid, nil
}

// Update rewrites the VEVENT with ev.ID in place.
func (s *ICSFileStore) Update(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return err
	}

	for _, ve := range cal.Events() {
		if ve.Id() != ev.ID {
			continue
		}
		applyEvent(ve, ev)
		return s.save(cal)
	}
	return fmt.Errorf("calendar: event %q not found in %s", ev.ID, s.path)
}

func (s *ICSFileStore) load() (*ical.Calendar, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cal := ical.NewCalendar()
			cal.SetProductId(icsProductID)
			cal.SetMethod(ical.MethodPublish)
			return cal, nil
		}
		return nil, err
	}

	cal, err := ical.ParseCalendar(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("calendar: parsing %s: %w", s.path, err)
	}
	return cal, nil
}

// save writes the calendar atomically with 0600 perms: temp file in the
// same directory, then rename.
func (s *ICSFileStore) save(cal *ical.Calendar) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".empkiller-cal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// applyEvent writes our Event fields onto a VEVENT, replacing any existing
// reminder alarm.
func applyEvent(ve *ical.VEvent, ev Event) {
	now := time.Now()
	ve.SetDtStampTime(now)
	ve.SetSummary(ev.Title)
	ve.SetStartAt(ev.Start)
	ve.SetEndAt(ev.End)

	// Drop previous alarms so an updated reminder does not stack.
	kept := ve.Components[:0]
	for _, comp := range ve.Components {
		if _, isAlarm := comp.(*ical.VAlarm); !isAlarm {
			kept = append(kept, comp)
		}
	}
	ve.Components = kept

	if ev.ReminderMinutes > 0 {
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", ev.ReminderMinutes))
	}
}

func eventFromVEvent(ve *ical.VEvent) (Event, error) {
	start, err := ve.GetStartAt()
	if err != nil {
		return Event{}, fmt.Errorf("missing DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return Event{}, fmt.Errorf("missing DTEND: %w", err)
	}

	ev := Event{
		ID:    ve.Id(),
		Start: start,
		End:   end,
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	for _, alarm := range ve.Alarms() {
		if p := alarm.GetProperty("TRIGGER"); p != nil {
			if m, ok := parseTriggerMinutes(p.Value); ok {
				ev.ReminderMinutes = m
				break
			}
		}
	}
	return ev, nil
}

// parseTriggerMinutes reads a negative duration trigger in the forms we
// write ("-PT120M") plus the common hour variant ("-PT2H").
func parseTriggerMinutes(v string) (int, bool) {
	v = strings.TrimSpace(strings.ToUpper(v))
	if !strings.HasPrefix(v, "-PT") {
		return 0, false
	}
	v = strings.TrimPrefix(v, "-PT")

	minutes := 0
	for _, unit := range []struct {
		suffix string
		factor int
	}{{"H", 60}, {"M", 1}} {
		idx := strings.Index(v, unit.suffix)
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(v[:idx])
		if err != nil {
			return 0, false
		}
		minutes += n * unit.factor
		v = v[idx+1:]
	}
	return minutes, minutes > 0
}
