package model

import (
	"fmt"
	"time"
)

// ShiftRecord is one rostered shift as scraped from the ESS portal.
//
// Times are in the portal's local time; the portal does not publish a
// timezone, so both timestamps carry whatever location the parser was
// configured with. Start is always strictly before End (shifts that cross
// midnight end on the following calendar day).
type ShiftRecord struct {
	Start         time.Time
	End           time.Time
	Role          string
	Department    string
	SubDepartment string

	// Job, Status and Comments are optional portal columns. A nil pointer
	// means the cell was absent, which is distinct from an empty string.
	Job      *string
	Status   *string
	Comments *string
}

// Fingerprint identifies a shift across sync runs. Calendar matching uses
// only Start/End; Job is advisory because event titles may be user-edited.
type Fingerprint struct {
	Start time.Time
	End   time.Time
	Job   string
}

// Fingerprint returns the shift's identity tuple.
func (s ShiftRecord) Fingerprint() Fingerprint {
	fp := Fingerprint{Start: s.Start, End: s.End}
	if s.Job != nil {
		fp.Job = *s.Job
	}
	return fp
}

// Title builds the calendar event title for the shift from its role,
// department and (if present) job.
func (s ShiftRecord) Title() string {
	title := s.Role
	if title == "" {
		title = s.Department
	} else if s.Department != "" {
		title = fmt.Sprintf("%s (%s)", s.Role, s.Department)
	}
	if s.Job != nil && *s.Job != "" {
		title += " - " + *s.Job
	}
	if title == "" {
		title = "Work shift"
	}
	return title
}

// Roster is the ordered set of shifts for one roster period, sorted by
// start time ascending. An empty roster is valid: it means no shifts were
// rostered that week.
type Roster struct {
	Range  DateRange
	Shifts []ShiftRecord
}

// DateRange is an inclusive calendar date span, normally seven days
// aligned to the portal's roster period.
type DateRange struct {
	Start time.Time // midnight on the first day
	End   time.Time // midnight on the last (inclusive) day
}

// Contains reports whether t falls on a date inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return !day.Before(r.Start) && !day.After(r.End)
}

func (r DateRange) String() string {
	const layout = "2006-01-02"
	return r.Start.Format(layout) + ".." + r.End.Format(layout)
}
