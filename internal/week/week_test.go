package week

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestResolveCurrentWeek(t *testing.T) {
	tests := []struct {
		name      string
		today     time.Time
		weekStart time.Weekday
		wantStart time.Time
	}{
		{"wednesday of a monday week", date(2025, time.February, 19), time.Monday, date(2025, time.February, 17)},
		{"monday itself", date(2025, time.February, 17), time.Monday, date(2025, time.February, 17)},
		{"sunday of a monday week", date(2025, time.February, 23), time.Monday, date(2025, time.February, 17)},
		{"sunday-start week", date(2025, time.February, 19), time.Sunday, date(2025, time.February, 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(0, tt.today, tt.weekStart)
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", got.Start, tt.wantStart)
			}
			wantEnd := tt.wantStart.AddDate(0, 0, 6)
			if !got.End.Equal(wantEnd) {
				t.Errorf("end = %v, want %v", got.End, wantEnd)
			}
		})
	}
}

func TestResolveOffsetArithmetic(t *testing.T) {
	today := date(2025, time.June, 11)
	base := Resolve(0, today, time.Monday)

	for _, offset := range []int{-52, -3, -1, 1, 2, 52} {
		got := Resolve(offset, today, time.Monday)
		want := base.Start.AddDate(0, 0, 7*offset)
		if !got.Start.Equal(want) {
			t.Errorf("offset %d: start = %v, want %v", offset, got.Start, want)
		}
		if got.End.Sub(got.Start) != 6*24*time.Hour {
			t.Errorf("offset %d: range is not seven days: %v", offset, got)
		}
	}
}

func TestResolveYearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday; the next week rolls into January 2025.
	got := Resolve(1, date(2024, time.December, 30), time.Monday)

	if !got.Start.Equal(date(2025, time.January, 6)) {
		t.Errorf("start = %v, want 2025-01-06", got.Start)
	}
	if !got.End.Equal(date(2025, time.January, 12)) {
		t.Errorf("end = %v, want 2025-01-12", got.End)
	}
}

func TestResolveLeapYear(t *testing.T) {
	// Week containing 2024-02-29 (a Thursday).
	got := Resolve(0, date(2024, time.February, 29), time.Monday)

	if !got.Start.Equal(date(2024, time.February, 26)) {
		t.Errorf("start = %v, want 2024-02-26", got.Start)
	}
	if !got.End.Equal(date(2024, time.March, 3)) {
		t.Errorf("end = %v, want 2024-03-03", got.End)
	}
}
