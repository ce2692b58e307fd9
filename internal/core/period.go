package core

import (
	"fmt"
	"time"
)

// Granularity selects how the profit summary buckets sales.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// ValidGranularity reports whether g is one of the four known granularities.
func ValidGranularity(g Granularity) bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return true
	}
	return false
}

// PeriodLabel renders the bucket label for a sale timestamp, translated to
// the business-local calendar first. Week labels span Monday through Sunday
// as "dd/mm - dd/mm".
func PeriodLabel(t time.Time, g Granularity, loc *time.Location) string {
	local := t.In(loc)
	switch g {
	case GranularityDay:
		return local.Weekday().String()
	case GranularityWeek:
		monday := startOfWeek(local)
		sunday := monday.AddDate(0, 0, 6)
		return fmt.Sprintf("%02d/%02d - %02d/%02d",
			monday.Day(), int(monday.Month()), sunday.Day(), int(sunday.Month()))
	case GranularityMonth:
		return local.Month().String()
	case GranularityYear:
		return fmt.Sprintf("%d", local.Year())
	}
	return "unknown"
}

// SamePeriod reports whether t falls in the same calendar bucket as ref at
// the given granularity, both interpreted in the business-local timezone.
func SamePeriod(t, ref time.Time, g Granularity, loc *time.Location) bool {
	a, b := t.In(loc), ref.In(loc)
	switch g {
	case GranularityDay:
		ay, am, ad := a.Date()
		by, bm, bd := b.Date()
		return ay == by && am == bm && ad == bd
	case GranularityWeek:
		return startOfWeek(a).Equal(startOfWeek(b))
	case GranularityMonth:
		return a.Year() == b.Year() && a.Month() == b.Month()
	case GranularityYear:
		return a.Year() == b.Year()
	}
	return false
}

// startOfWeek returns midnight of the Monday of t's week, in t's location.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
