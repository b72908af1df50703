package reports

import (
	"fmt"
	"time"
)

// Granularity represents the calendar interval used to bucket report rows
type Granularity string

const (
	GranularityHour    Granularity = "hour"
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// AllGranularities returns every supported bucketing granularity
func AllGranularities() []Granularity {
	return []Granularity{
		GranularityHour,
		GranularityDay,
		GranularityWeek,
		GranularityMonth,
		GranularityQuarter,
		GranularityYear,
	}
}

// IsValid reports whether g is a known granularity
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek,
		GranularityMonth, GranularityQuarter, GranularityYear:
		return true
	}
	return false
}

// Weekday constants follow time.Weekday numbering (Sunday = 0).
const (
	WeekStartSunday = 0
	WeekStartMonday = 1
)

// QuarterOf returns the 1-based quarter for the given time (Jan-Mar = 1)
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// SimpleWeekNumber returns the week number counting from January 1 of the
// year, incrementing every time the configured first day of week is crossed.
// Week 1 always contains January 1, so a year can legitimately end mid-week
// with week 53 abutting the next year's week 1.
func SimpleWeekNumber(t time.Time, weekStartsOn int) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	// Days between the week start preceding (or on) Jan 1 and Jan 1 itself.
	offset := (int(jan1.Weekday()) - weekStartsOn + 7) % 7
	return (t.YearDay()+offset-1)/7 + 1
}

// BucketID returns the canonical identifier of the bucket containing t.
//
// Week identifiers have dual semantics: when the store's week starts on
// Monday the ISO-8601 week-of-year is used; for any other first day the
// simple week number is used instead. The two produce different bucket
// boundaries, so the choice must stay consistent with BucketBoundary.
func BucketID(g Granularity, t time.Time, weekStartsOn int) string {
	switch g {
	case GranularityHour:
		return t.Format("2006-01-02 15")
	case GranularityDay:
		return t.Format("2006-01-02")
	case GranularityWeek:
		if weekStartsOn == WeekStartMonday {
			isoYear, isoWeek := t.ISOWeek()
			return fmt.Sprintf("%d-%02d", isoYear, isoWeek)
		}
		return fmt.Sprintf("%d-%02d", t.Year(), SimpleWeekNumber(t, weekStartsOn))
	case GranularityMonth:
		return t.Format("2006-01")
	case GranularityQuarter:
		return fmt.Sprintf("%d-%d", t.Year(), QuarterOf(t))
	case GranularityYear:
		return t.Format("2006")
	}
	return ""
}

// BucketBoundary returns the start of the next bucket after t, or, when
// reversed, the end of the previous bucket (one second before the current
// bucket's start). All arithmetic is in whole seconds.
func BucketBoundary(g Granularity, t time.Time, reversed bool, weekStartsOn int) time.Time {
	switch g {
	case GranularityHour:
		return nextHourStart(t, reversed)
	case GranularityDay:
		return nextDayStart(t, reversed)
	case GranularityWeek:
		return nextWeekStart(t, reversed, weekStartsOn)
	case GranularityMonth:
		return nextMonthStart(t, reversed)
	case GranularityQuarter:
		return nextQuarterStart(t, reversed)
	case GranularityYear:
		return nextYearStart(t, reversed)
	}
	return t
}

func nextHourStart(t time.Time, reversed bool) time.Time {
	hourStart := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	if reversed {
		return hourStart.Add(-time.Second)
	}
	return hourStart.Add(time.Hour)
}

func nextDayStart(t time.Time, reversed bool) time.Time {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if reversed {
		return dayStart.Add(-time.Second)
	}
	return dayStart.AddDate(0, 0, 1)
}

// nextWeekStart iterates the day boundary until the week bucket id changes,
// so week boundaries stay consistent with whichever week numbering BucketID
// is using for the configured first day of week.
func nextWeekStart(t time.Time, reversed bool, weekStartsOn int) time.Time {
	initialID := BucketID(GranularityWeek, t, weekStartsOn)
	current := t
	for {
		current = nextDayStart(current, reversed)
		if BucketID(GranularityWeek, current, weekStartsOn) != initialID {
			return current
		}
	}
}

func nextMonthStart(t time.Time, reversed bool) time.Time {
	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	if reversed {
		return monthStart.Add(-time.Second)
	}
	return monthStart.AddDate(0, 1, 0)
}

func nextQuarterStart(t time.Time, reversed bool) time.Time {
	quarterMonth := time.Month((QuarterOf(t)-1)*3 + 1)
	quarterStart := time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, t.Location())
	if reversed {
		return quarterStart.Add(-time.Second)
	}
	return quarterStart.AddDate(0, 3, 0)
}

func nextYearStart(t time.Time, reversed bool) time.Time {
	yearStart := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	if reversed {
		return yearStart.Add(-time.Second)
	}
	return yearStart.AddDate(1, 0, 0)
}

// BucketsBetween returns the closed-interval count of buckets spanning the
// two datetimes. Returns 0 when end precedes start or the granularity is
// unknown.
func BucketsBetween(start, end time.Time, g Granularity, weekStartsOn int) int {
	if end.Before(start) {
		return 0
	}

	switch g {
	case GranularityHour:
		return int(end.Unix()-start.Unix())/3600 + 1
	case GranularityDay:
		return int(end.Unix()-start.Unix())/86400 + 1
	case GranularityWeek:
		// Weeks have no fixed length in this calendar model, so count
		// boundary crossings instead.
		count := 1
		current := start
		for {
			current = BucketBoundary(GranularityWeek, current, false, weekStartsOn)
			if current.After(end) {
				return count
			}
			count++
		}
	case GranularityMonth:
		return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	case GranularityQuarter:
		return (end.Year()-start.Year())*4 + QuarterOf(end) - QuarterOf(start) + 1
	case GranularityYear:
		return end.Year() - start.Year() + 1
	}
	return 0
}

// ExpectedIntervalsOnPage returns how many interval records belong on the
// given page: a full page everywhere except possibly the final page.
func ExpectedIntervalsOnPage(totalIntervals, perPage, pageNo int) int {
	if perPage <= 0 {
		return 0
	}
	totalPages := (totalIntervals + perPage - 1) / perPage
	switch {
	case pageNo < totalPages:
		return perPage
	case pageNo == totalPages:
		return totalIntervals - (pageNo-1)*perPage
	default:
		return 0
	}
}

// IntervalsMissing decides whether the response for one page needs synthetic
// zero-filled intervals injected.
//
// When ordering by date the decision is a straight comparison against the
// expected count for the page. For non-date ordering the two directions use
// deliberately different page-threshold formulas, reflecting where zero-row
// intervals sort to: the leading pages when ascending, the trailing pages
// when descending. The asymmetry is intentional and must not be "fixed" to
// make the two branches mirror each other.
func IntervalsMissing(totalIntervals, dbRecords, perPage, pageNo int, order, orderBy string, rowsOnPage int) bool {
	if totalIntervals <= dbRecords {
		return false
	}
	if orderBy == "date" {
		return rowsOnPage < ExpectedIntervalsOnPage(totalIntervals, perPage, pageNo)
	}
	if order == "desc" {
		return pageNo > dbRecords/perPage
	}
	if order == "asc" {
		missing := totalIntervals - dbRecords
		return pageNo <= (missing+perPage-1)/perPage
	}
	return true
}
