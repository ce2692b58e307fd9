package core_test

import (
	"testing"
	"time"

	"retail-backoffice/internal/core"
)

func laPaz(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/La_Paz")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return loc
}

func TestPeriodLabel(t *testing.T) {
	loc := laPaz(t)
	// 2026-03-04 is a Wednesday; its week runs Monday 02/03 – Sunday 08/03.
	at := time.Date(2026, 3, 4, 15, 30, 0, 0, loc)

	tests := []struct {
		granularity core.Granularity
		want        string
	}{
		{core.GranularityDay, "Wednesday"},
		{core.GranularityWeek, "02/03 - 08/03"},
		{core.GranularityMonth, "March"},
		{core.GranularityYear, "2026"},
	}
	for _, tc := range tests {
		if got := core.PeriodLabel(at, tc.granularity, loc); got != tc.want {
			t.Errorf("PeriodLabel(%s) = %q, want %q", tc.granularity, got, tc.want)
		}
	}
}

func TestPeriodLabel_WeekSpansMonthBoundary(t *testing.T) {
	loc := laPaz(t)
	// 2026-03-31 is a Tuesday; its week runs Monday 30/03 – Sunday 05/04.
	at := time.Date(2026, 3, 31, 9, 0, 0, 0, loc)
	if got := core.PeriodLabel(at, core.GranularityWeek, loc); got != "30/03 - 05/04" {
		t.Errorf("week label = %q, want %q", got, "30/03 - 05/04")
	}
}

func TestPeriodLabel_TranslatesToBusinessCalendar(t *testing.T) {
	loc := laPaz(t)
	// 02:00 UTC is still the previous calendar day in La Paz (UTC-4).
	at := time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC)
	if got := core.PeriodLabel(at, core.GranularityDay, loc); got != "Wednesday" {
		t.Errorf("day label = %q, want Wednesday (the La Paz calendar day)", got)
	}
}

func TestSamePeriod(t *testing.T) {
	loc := laPaz(t)
	ref := time.Date(2026, 3, 4, 12, 0, 0, 0, loc) // Wednesday

	tests := []struct {
		name        string
		at          time.Time
		granularity core.Granularity
		want        bool
	}{
		{"same day, different hour", time.Date(2026, 3, 4, 23, 59, 0, 0, loc), core.GranularityDay, true},
		{"previous day", time.Date(2026, 3, 3, 12, 0, 0, 0, loc), core.GranularityDay, false},
		{"utc timestamp still same la paz day", time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC), core.GranularityDay, true},
		{"monday of same week", time.Date(2026, 3, 2, 0, 0, 0, 0, loc), core.GranularityWeek, true},
		{"sunday of same week", time.Date(2026, 3, 8, 23, 0, 0, 0, loc), core.GranularityWeek, true},
		{"monday of next week", time.Date(2026, 3, 9, 0, 0, 0, 0, loc), core.GranularityWeek, false},
		{"same month", time.Date(2026, 3, 28, 8, 0, 0, 0, loc), core.GranularityMonth, true},
		{"same month last year", time.Date(2025, 3, 4, 12, 0, 0, 0, loc), core.GranularityMonth, false},
		{"same year", time.Date(2026, 12, 31, 23, 0, 0, 0, loc), core.GranularityYear, true},
		{"different year", time.Date(2027, 1, 1, 0, 0, 0, 0, loc), core.GranularityYear, false},
	}
	for _, tc := range tests {
		if got := core.SamePeriod(tc.at, ref, tc.granularity, loc); got != tc.want {
			t.Errorf("%s: SamePeriod = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidGranularity(t *testing.T) {
	for _, g := range []core.Granularity{core.GranularityDay, core.GranularityWeek, core.GranularityMonth, core.GranularityYear} {
		if !core.ValidGranularity(g) {
			t.Errorf("%s should be valid", g)
		}
	}
	if core.ValidGranularity("quarter") {
		t.Errorf("quarter should not be valid")
	}
}
