package availability

import (
	"testing"
	"time"
)

func TestPeriod_Window_MapsClockOntoDate(t *testing.T) {
	t.Parallel()

	period := Period{Name: "period_2", Label: "2nd Period", Start: "09:00", End: "09:45"}
	date := time.Date(2024, 6, 10, 17, 23, 41, 500, time.UTC)

	window, err := period.Window(date)
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}

	wantStart := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC)

	if !window.Start.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, window.Start)
	}
	if !window.End.Equal(wantEnd) {
		t.Errorf("expected end %v, got %v", wantEnd, window.End)
	}
}

func TestPeriod_Window_PreservesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	period := Period{Name: "period_1", Start: "08:00", End: "08:45"}

	window, err := period.Window(time.Date(2024, 6, 10, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}

	if window.Start.Location() != loc {
		t.Errorf("expected window in caller location, got %v", window.Start.Location())
	}
}

func TestPeriod_Window_RejectsMalformedClock(t *testing.T) {
	t.Parallel()

	cases := []Period{
		{Name: "bad_start", Start: "8am", End: "09:00"},
		{Name: "bad_end", Start: "08:00", End: "25:99"},
		{Name: "inverted", Start: "10:00", End: "09:00"},
	}

	for _, period := range cases {
		if _, err := period.Window(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)); err == nil {
			t.Errorf("expected error for period %q, got nil", period.Name)
		}
	}
}

func TestDefaultPeriods_AreWellFormed(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	previousEnd := time.Time{}

	for _, period := range DefaultPeriods() {
		window, err := period.Window(date)
		if err != nil {
			t.Fatalf("period %q: %v", period.Name, err)
		}
		if !previousEnd.IsZero() && window.Start.Before(previousEnd) {
			t.Errorf("period %q overlaps the previous catalog entry", period.Name)
		}
		previousEnd = window.End
	}
}

func TestFindPeriod(t *testing.T) {
	t.Parallel()

	periods := DefaultPeriods()

	period, ok := FindPeriod(periods, "period_5")
	if !ok {
		t.Fatal("expected to find period_5")
	}
	if period.Label != "5th Period" {
		t.Errorf("expected label '5th Period', got %q", period.Label)
	}

	if _, ok := FindPeriod(periods, "period_99"); ok {
		t.Error("expected lookup miss for unknown period")
	}
}
