// Package roster turns scraped portal pages into canonical shift records
// and exposes the repository that callers use to retrieve them.
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/model"
	"github.com/Alzter/EmpKiller/internal/portal"
)

// Column headings of the personal roster grid.
const (
	colDate          = "Date"
	colStartTime     = "Start Time"
	colEndTime       = "End Time"
	colRole          = "Role"
	colDepartment    = "Department"
	colSubDepartment = "Sub Department"
	colJob           = "Job"
	colStatus        = "Status"
	colComments      = "Comments"
)

// rowTimeLayout reconstructs a cell timestamp from the Date column (which
// carries no year) plus a time-of-day column, e.g. "Fri, Feb 21 2025, 17:00".
const rowTimeLayout = "Mon, Jan 2 2006, 15:04"

// Warning records a roster row that could not be parsed. Warnings are
// non-fatal: the offending row is skipped and the rest of the roster is
// still returned.
type Warning struct {
	Row int
	Err error
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %v", w.Row, w.Err)
}

// Parser normalizes raw roster pages into ordered shift records.
type Parser struct {
	loc *time.Location
}

// NewParser creates a Parser that interprets the portal's local times in
// the given location. A nil location means time.Local.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Parse extracts the shift records from one roster page. Malformed rows
// are skipped with a warning; a page without a roster grid yields an
// empty roster. Pages carrying a portal error state (access denied,
// session timeout) fail with the corresponding portal error kind.
func (p *Parser) Parse(page portal.Page) (model.Roster, []Warning, error) {
	out := model.Roster{Range: page.Range}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return out, nil, fmt.Errorf("roster: parsing page: %w", err)
	}
	if cerr := portal.ClassifyPage(doc); cerr != nil {
		return out, nil, cerr
	}

	table := doc.Find(`table[id*='gridPersonalRoster']`).First()
	if table.Length() == 0 {
		// No grid means no shifts rostered for the period.
		appLog.Debug("roster grid absent", "range", page.Range)
		return out, nil, nil
	}

	headings := make([]string, 0, 9)
	table.Find("tr").First().Find("th").Each(func(_ int, s *goquery.Selection) {
		headings = append(headings, strings.TrimSpace(s.Text()))
	})
	if len(headings) == 0 {
		return out, nil, errors.New("roster: grid has no header row")
	}

	var warnings []Warning
	table.Find("tr").Slice(1, goquery.ToEnd).Each(func(i int, row *goquery.Selection) {
		shift, err := p.parseRow(headings, row, page.Range)
		if err != nil {
			w := Warning{Row: i + 1, Err: err}
			warnings = append(warnings, w)
			appLog.Warn("roster row skipped", "row", w.Row, "reason", err)
			return
		}
		out.Shifts = append(out.Shifts, shift)
	})

	sort.SliceStable(out.Shifts, func(i, j int) bool {
		return out.Shifts[i].Start.Before(out.Shifts[j].Start)
	})

	appLog.Info("roster parsed", "range", page.Range, "shifts", len(out.Shifts), "skipped", len(warnings))
	return out, warnings, nil
}

// parseRow maps one grid row onto a ShiftRecord. Cells render their value
// inside a span; a cell without a span is a null value, which is only
// acceptable for the optional columns.
func (p *Parser) parseRow(headings []string, row *goquery.Selection, rng model.DateRange) (model.ShiftRecord, error) {
	cells := row.Find("td")
	if cells.Length() < len(headings) {
		return model.ShiftRecord{}, fmt.Errorf("expected %d cells, found %d", len(headings), cells.Length())
	}

	byHeading := make(map[string]*string, len(headings))
	cells.Each(func(i int, cell *goquery.Selection) {
		if i >= len(headings) {
			return
		}
		span := cell.Find("span").First()
		if span.Length() == 0 {
			byHeading[headings[i]] = nil
			return
		}
		v := strings.TrimSpace(span.Text())
		byHeading[headings[i]] = &v
	})

	date := required(byHeading, colDate)
	startStr := required(byHeading, colStartTime)
	endStr := required(byHeading, colEndTime)
	if date == "" || startStr == "" || endStr == "" {
		return model.ShiftRecord{}, errors.New("missing date or time cell")
	}

	start, err := p.rowTime(date, startStr, rng)
	if err != nil {
		return model.ShiftRecord{}, fmt.Errorf("start time: %w", err)
	}
	end, err := p.rowTime(date, endStr, rng)
	if err != nil {
		return model.ShiftRecord{}, fmt.Errorf("end time: %w", err)
	}
	// A shift ending at or before its start crosses midnight: the end
	// belongs to the next calendar day. The shift is kept whole.
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	return model.ShiftRecord{
		Start:         start,
		End:           end,
		Role:          required(byHeading, colRole),
		Department:    required(byHeading, colDepartment),
		SubDepartment: required(byHeading, colSubDepartment),
		Job:           byHeading[colJob],
		Status:        byHeading[colStatus],
		Comments:      byHeading[colComments],
	}, nil
}

// rowTime combines a year-less date cell with a time-of-day cell. The year
// comes from the requested range rather than the wall clock, so rosters
// fetched across New Year resolve to the right year.
func (p *Parser) rowTime(date, clock string, rng model.DateRange) (time.Time, error) {
	year := rng.Start.Year()
	t, err := time.ParseInLocation(rowTimeLayout, fmt.Sprintf("%s %d, %s", date, year, clock), p.loc)
	if err != nil {
		return time.Time{}, err
	}
	// Ranges straddling New Year span two years; January dates belong to
	// the range's ending year.
	if rng.End.Year() != year && t.Month() == time.January {
		t = t.AddDate(1, 0, 0)
	}
	return t, nil
}

// required returns the cell value for a mandatory column, mapping an
// absent cell to the empty string.
func required(cells map[string]*string, heading string) string {
	if v := cells[heading]; v != nil {
		return *v
	}
	return ""
}
