package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleStore targets one Google Calendar through the Calendar API. The
// calendar is user-visible shared state: the store never deletes events
// and never assumes it is the only writer.
type GoogleStore struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogleStore builds a store from an OAuth token. calendarID is the
// target calendar; "primary" addresses the account's default calendar.
func NewGoogleStore(ctx context.Context, conf *oauth2.Config, token *oauth2.Token, calendarID string) (*GoogleStore, error) {
	if token == nil {
		return nil, errors.New("calendar: oauth token is nil")
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("calendar: creating service: %w", err)
	}
	return &GoogleStore{svc: svc, calendarID: calendarID}, nil
}

// List returns the timed events overlapping [from, to]. All-day events
// cannot correspond to shifts and are skipped.
func (s *GoogleStore) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	call := s.svc.Events.List(s.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	events := make([]Event, 0)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			ev, ok := eventFromGoogle(item)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: listing events: %w", err)
	}
	return events, nil
}

// Create inserts a new event and returns the Google event ID.
func (s *GoogleStore) Create(ctx context.Context, ev Event) (string, error) {
	created, err := s.svc.Events.Insert(s.calendarID, googleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: inserting event: %w", err)
	}
	return created.Id, nil
}

// Update rewrites the event identified by ev.ID.
func (s *GoogleStore) Update(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		return errors.New("calendar: update requires an event ID")
	}
	if _, err := s.svc.Events.Update(s.calendarID, ev.ID, googleEvent(ev)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: updating event %s: %w", ev.ID, err)
	}
	return nil
}

func googleEvent(ev Event) *gcal.Event {
	out := &gcal.Event{
		Summary: ev.Title,
		Start:   &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	if ev.ReminderMinutes > 0 {
		out.Reminders = &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: int64(ev.ReminderMinutes)},
			},
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return out
}

func eventFromGoogle(item *gcal.Event) (Event, bool) {
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return Event{}, false
	}

	ev := Event{
		ID:    item.Id,
		Title: item.Summary,
		Start: start,
		End:   end,
	}
	if item.Reminders != nil {
		for _, ov := range item.Reminders.Overrides {
			if ov.Method == "popup" {
				ev.ReminderMinutes = int(ov.Minutes)
				break
			}
		}
	}
	return ev, true
}
