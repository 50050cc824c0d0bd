package availability

import (
	"fmt"
	"time"
)

// Period is a named daily time window from the booking catalog, with wall
// clock bounds expressed as "HH:MM" strings.
type Period struct {
	Name  string
	Label string
	Start string
	End   string
}

// Window is a period projected onto a concrete calendar day.
type Window struct {
	Start time.Time
	End   time.Time
}

// Window maps the period onto the calendar day of date, in the location of
// date, with seconds and sub-second precision zeroed.
func (p Period) Window(date time.Time) (Window, error) {
	startHour, startMinute, err := parseClock(p.Start)
	if err != nil {
		return Window{}, fmt.Errorf("period %q: %w", p.Name, err)
	}
	endHour, endMinute, err := parseClock(p.End)
	if err != nil {
		return Window{}, fmt.Errorf("period %q: %w", p.Name, err)
	}

	loc := date.Location()
	start := time.Date(date.Year(), date.Month(), date.Day(), startHour, startMinute, 0, 0, loc)
	end := time.Date(date.Year(), date.Month(), date.Day(), endHour, endMinute, 0, 0, loc)

	if !start.Before(end) {
		return Window{}, fmt.Errorf("period %q: start %s must be before end %s", p.Name, p.Start, p.End)
	}

	return Window{Start: start, End: end}, nil
}

// Contains reports whether the instant falls inside the half-open window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports strict interval overlap against [start, end).
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

func parseClock(value string) (hour, minute int, err error) {
	if _, err := time.Parse("15:04", value); err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}
	return hour, minute, nil
}

// DefaultPeriods returns the standard catalog of eight daily booking periods.
func DefaultPeriods() []Period {
	return []Period{
		{Name: "period_1", Label: "1st Period", Start: "08:00", End: "08:45"},
		{Name: "period_2", Label: "2nd Period", Start: "09:00", End: "09:45"},
		{Name: "period_3", Label: "3rd Period", Start: "10:00", End: "10:45"},
		{Name: "period_4", Label: "4th Period", Start: "11:00", End: "11:45"},
		{Name: "period_5", Label: "5th Period", Start: "12:30", End: "13:15"},
		{Name: "period_6", Label: "6th Period", Start: "13:30", End: "14:15"},
		{Name: "period_7", Label: "7th Period", Start: "14:30", End: "15:15"},
		{Name: "period_8", Label: "8th Period", Start: "15:30", End: "16:15"},
	}
}

// FindPeriod looks up a catalog entry by name.
func FindPeriod(periods []Period, name string) (Period, bool) {
	for _, period := range periods {
		if period.Name == name {
			return period, true
		}
	}
	return Period{}, false
}
