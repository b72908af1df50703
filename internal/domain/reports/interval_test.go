package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestGranularityIsValid(t *testing.T) {
	for _, g := range AllGranularities() {
		assert.True(t, g.IsValid(), "granularity %q", g)
	}
	assert.False(t, Granularity("fortnight").IsValid())
	assert.False(t, Granularity("").IsValid())
}

func TestQuarterOf(t *testing.T) {
	tests := []struct {
		month time.Month
		want  int
	}{
		{time.January, 1},
		{time.March, 1},
		{time.April, 2},
		{time.June, 2},
		{time.July, 3},
		{time.September, 3},
		{time.October, 4},
		{time.December, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuarterOf(date(2025, tt.month, 15, 0, 0, 0)), "month %v", tt.month)
	}
}

func TestSimpleWeekNumber(t *testing.T) {
	tests := []struct {
		name         string
		t            time.Time
		weekStartsOn int
		want         int
	}{
		// 2024-01-01 is a Monday.
		{"jan 1 always week 1", date(2024, time.January, 1, 0, 0, 0), 0, 1},
		{"saturday before first sunday", date(2024, time.January, 6, 23, 59, 59), 0, 1},
		{"first sunday starts week 2", date(2024, time.January, 7, 0, 0, 0), 0, 2},
		// 2023-01-01 is a Sunday, so week 1 is exactly seven days long.
		{"sunday-start year, week 1 end", date(2023, time.January, 7, 0, 0, 0), 0, 1},
		{"sunday-start year, week 2 start", date(2023, time.January, 8, 0, 0, 0), 0, 2},
		// A year can end in week 53.
		{"dec 31 in week 53", date(2023, time.December, 31, 12, 0, 0), 0, 53},
		// Wednesday-start weeks shift the boundary again.
		{"wednesday start, tuesday still week 1", date(2024, time.January, 2, 0, 0, 0), 3, 1},
		{"wednesday start, wednesday opens week 2", date(2024, time.January, 3, 0, 0, 0), 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SimpleWeekNumber(tt.t, tt.weekStartsOn))
		})
	}
}

func TestBucketID(t *testing.T) {
	at := date(2025, time.November, 15, 14, 30, 45)
	tests := []struct {
		g    Granularity
		want string
	}{
		{GranularityHour, "2025-11-15 14"},
		{GranularityDay, "2025-11-15"},
		{GranularityMonth, "2025-11"},
		{GranularityQuarter, "2025-4"},
		{GranularityYear, "2025"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketID(tt.g, at, WeekStartMonday), "granularity %q", tt.g)
	}
	assert.Equal(t, "", BucketID(Granularity("bogus"), at, WeekStartMonday))
}

func TestBucketIDWeekDualSemantics(t *testing.T) {
	// 2026-01-01 is a Thursday: ISO-8601 places it in week 1 of 2026.
	assert.Equal(t, "2026-01", BucketID(GranularityWeek, date(2026, time.January, 1, 0, 0, 0), WeekStartMonday))

	// 2023-01-01 is a Sunday: ISO-8601 places it in week 52 of 2022, while
	// the simple numbering always pins January 1 into week 1 of its own year.
	newYear := date(2023, time.January, 1, 10, 0, 0)
	assert.Equal(t, "2022-52", BucketID(GranularityWeek, newYear, WeekStartMonday))
	assert.Equal(t, "2023-01", BucketID(GranularityWeek, newYear, WeekStartSunday))
}

func TestBucketBoundary(t *testing.T) {
	at := date(2025, time.November, 15, 10, 30, 45)
	tests := []struct {
		name     string
		g        Granularity
		reversed bool
		want     time.Time
	}{
		{"next hour", GranularityHour, false, date(2025, time.November, 15, 11, 0, 0)},
		{"previous hour end", GranularityHour, true, date(2025, time.November, 15, 9, 59, 59)},
		{"next day", GranularityDay, false, date(2025, time.November, 16, 0, 0, 0)},
		{"previous day end", GranularityDay, true, date(2025, time.November, 14, 23, 59, 59)},
		{"next month", GranularityMonth, false, date(2025, time.December, 1, 0, 0, 0)},
		{"previous month end", GranularityMonth, true, date(2025, time.October, 31, 23, 59, 59)},
		{"next quarter", GranularityQuarter, false, date(2026, time.January, 1, 0, 0, 0)},
		{"previous quarter end", GranularityQuarter, true, date(2025, time.September, 30, 23, 59, 59)},
		{"next year", GranularityYear, false, date(2026, time.January, 1, 0, 0, 0)},
		{"previous year end", GranularityYear, true, date(2024, time.December, 31, 23, 59, 59)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketBoundary(tt.g, at, tt.reversed, WeekStartMonday)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestBucketBoundaryWeekISO(t *testing.T) {
	// 2026-01-01 (Thursday) sits in ISO week 2026-01, which runs from Monday
	// 2025-12-29 through Sunday 2026-01-04.
	at := date(2026, time.January, 1, 12, 0, 0)

	next := BucketBoundary(GranularityWeek, at, false, WeekStartMonday)
	assert.True(t, date(2026, time.January, 5, 0, 0, 0).Equal(next), "got %v", next)

	prev := BucketBoundary(GranularityWeek, at, true, WeekStartMonday)
	assert.True(t, date(2025, time.December, 28, 23, 59, 59).Equal(prev), "got %v", prev)
}

func TestBucketBoundaryWeekSimple(t *testing.T) {
	// Sunday-start simple weeks: 2024-01-03 (Wednesday) is in week 1, which
	// ends with Saturday January 6 because Sunday January 7 opens week 2.
	at := date(2024, time.January, 3, 8, 0, 0)

	next := BucketBoundary(GranularityWeek, at, false, WeekStartSunday)
	assert.True(t, date(2024, time.January, 7, 0, 0, 0).Equal(next), "got %v", next)

	// Week 1 of 2024 starts on January 1, so stepping backwards lands in the
	// previous year's final week.
	prev := BucketBoundary(GranularityWeek, at, true, WeekStartSunday)
	assert.True(t, date(2023, time.December, 31, 23, 59, 59).Equal(prev), "got %v", prev)
	assert.Equal(t, "2023-53", BucketID(GranularityWeek, prev, WeekStartSunday))
}

func TestBucketBoundaryAdvancesBucket(t *testing.T) {
	// Walking boundaries forward must always land in a new bucket, for every
	// granularity. This is what the zero-filling walk in the read path relies
	// on to terminate.
	start := date(2025, time.December, 28, 13, 45, 0)
	for _, g := range AllGranularities() {
		current := start
		seen := map[string]bool{BucketID(g, current, WeekStartMonday): true}
		for i := 0; i < 5; i++ {
			current = BucketBoundary(g, current, false, WeekStartMonday)
			id := BucketID(g, current, WeekStartMonday)
			require.False(t, seen[id], "granularity %q revisited bucket %q", g, id)
			seen[id] = true
		}
	}
}

func TestBucketsBetween(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		g          Granularity
		want       int
	}{
		{"single hour", date(2025, time.June, 1, 10, 0, 0), date(2025, time.June, 1, 10, 59, 59), GranularityHour, 1},
		{"three hours", date(2025, time.June, 1, 10, 0, 0), date(2025, time.June, 1, 12, 0, 0), GranularityHour, 3},
		{"three days", date(2025, time.June, 1, 0, 0, 0), date(2025, time.June, 3, 0, 0, 0), GranularityDay, 3},
		{"same instant", date(2025, time.June, 1, 0, 0, 0), date(2025, time.June, 1, 0, 0, 0), GranularityDay, 1},
		{"two iso weeks across new year", date(2025, time.December, 29, 0, 0, 0), date(2026, time.January, 5, 0, 0, 0), GranularityWeek, 2},
		{"four months across new year", date(2025, time.November, 10, 0, 0, 0), date(2026, time.February, 1, 0, 0, 0), GranularityMonth, 4},
		{"two quarters across new year", date(2025, time.November, 15, 0, 0, 0), date(2026, time.February, 10, 0, 0, 0), GranularityQuarter, 2},
		{"three years", date(2024, time.May, 1, 0, 0, 0), date(2026, time.January, 1, 0, 0, 0), GranularityYear, 3},
		{"end before start", date(2025, time.June, 2, 0, 0, 0), date(2025, time.June, 1, 0, 0, 0), GranularityDay, 0},
		{"unknown granularity", date(2025, time.June, 1, 0, 0, 0), date(2025, time.June, 2, 0, 0, 0), Granularity("bogus"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketsBetween(tt.start, tt.end, tt.g, WeekStartMonday))
		})
	}
}

func TestExpectedIntervalsOnPage(t *testing.T) {
	tests := []struct {
		name                           string
		totalIntervals, perPage, pageNo int
		want                           int
	}{
		{"full middle page", 10, 3, 2, 3},
		{"full first page", 10, 3, 1, 3},
		{"short last page", 10, 3, 4, 1},
		{"page past the end", 10, 3, 5, 0},
		{"exact multiple last page", 9, 3, 3, 3},
		{"everything on one page", 2, 25, 1, 2},
		{"zero per page", 10, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpectedIntervalsOnPage(tt.totalIntervals, tt.perPage, tt.pageNo))
		})
	}
}

func TestIntervalsMissing(t *testing.T) {
	tests := []struct {
		name           string
		totalIntervals int
		dbRecords      int
		perPage        int
		pageNo         int
		order, orderBy string
		rowsOnPage     int
		want           bool
	}{
		{"no gap at all", 10, 10, 5, 1, "asc", "date", 5, false},
		{"db has more than the range", 5, 8, 5, 1, "asc", "date", 5, false},

		{"date order, page short", 10, 5, 3, 2, "asc", "date", 2, true},
		{"date order, page full", 10, 5, 3, 1, "asc", "date", 3, false},

		// Descending non-date order sorts zero rows onto the trailing pages:
		// db rows fill the first dbRecords/perPage pages.
		{"desc, page within db rows", 10, 5, 3, 1, "desc", "total_sales", 3, false},
		{"desc, page past db rows", 10, 5, 3, 2, "desc", "total_sales", 3, true},
		{"desc, final page", 10, 5, 3, 4, "desc", "total_sales", 1, true},

		// Ascending non-date order sorts zero rows onto the leading pages:
		// the first ceil(missing/perPage) pages carry them.
		{"asc, first page", 10, 5, 3, 1, "asc", "total_sales", 3, true},
		{"asc, second page", 10, 5, 3, 2, "asc", "total_sales", 3, true},
		{"asc, page past missing rows", 10, 5, 3, 3, "asc", "total_sales", 3, false},

		{"unknown order defaults to filling", 10, 5, 3, 1, "", "total_sales", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntervalsMissing(tt.totalIntervals, tt.dbRecords, tt.perPage, tt.pageNo, tt.order, tt.orderBy, tt.rowsOnPage)
			assert.Equal(t, tt.want, got)
		})
	}
}
