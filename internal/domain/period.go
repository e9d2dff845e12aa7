package domain

import "time"

// PeriodType selects the granularity of a zone summary.
type PeriodType string

const (
	PeriodWeekly  PeriodType = "WEEKLY"
	PeriodMonthly PeriodType = "MONTHLY"
)

// WeeksInMonth returns the ISO week numbers that fall within the given
// calendar month, in ascending order. A week counts when at least one of its
// days belongs to the month and its ISO year matches the requested year;
// weeks carried over from an adjacent ISO year are excluded, mirroring how
// weekly summaries are keyed.
func WeeksInMonth(year int, month time.Month) []int {
	seen := map[int]bool{}
	weeks := []int{}
	for day := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC); day.Month() == month; day = day.AddDate(0, 0, 1) {
		isoYear, isoWeek := day.ISOWeek()
		if isoYear != year || seen[isoWeek] {
			continue
		}
		seen[isoWeek] = true
		weeks = append(weeks, isoWeek)
	}
	return weeks
}

// DefaultProcessingStart is the cutoff before which historical activities are
// not backfilled for newly enrolled users.
func DefaultProcessingStart() time.Time {
	return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
