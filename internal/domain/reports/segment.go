package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SegmentRecord is one report row subdivided by a secondary dimension value.
// The json field names are a stable contract consumed by the REST layer.
type SegmentRecord struct {
	SegmentID int64                      `json:"segment_id"`
	Subtotals map[string]decimal.Decimal `json:"subtotals"`
}

// IntervalRecord is one calendar bucket of the requested date range, with
// segment rows nested under it when segmenting was requested.
type IntervalRecord struct {
	TimeInterval string          `json:"time_interval"`
	DateStart    time.Time       `json:"date_start"`
	DateEnd      time.Time       `json:"date_end"`
	Subtotals    map[string]decimal.Decimal `json:"subtotals"`
	Segments     []SegmentRecord `json:"segments"`
}

// Column maps a derived field name to the SQL expression computing it.
// Declaration order is preserved through projection.
type Column struct {
	Name string
	Expr string
}

// SelectedColumns filters the available derived columns down to the requested
// fields. With no filter every column is returned in declaration order;
// unknown field names are silently dropped.
func SelectedColumns(columns []Column, fields []string) []Column {
	if len(fields) == 0 {
		return columns
	}
	requested := make(map[string]bool, len(fields))
	for _, f := range fields {
		requested[f] = true
	}
	selected := make([]Column, 0, len(fields))
	for _, c := range columns {
		if requested[c.Name] {
			selected = append(selected, c)
		}
	}
	return selected
}

// RawRow is one row of a dimension-keyed aggregation query result. Values
// hold the numeric subtotals plus the dimension key (and, for interval
// queries, the time_interval key), both of which get stripped during
// reformatting.
type RawRow struct {
	SegmentID    int64
	TimeInterval string
	Values       map[string]decimal.Decimal
}

// ReformatTotals strips the dimension key out of each raw row, leaving the
// remaining numeric fields as the segment's subtotals.
func ReformatTotals(rows []RawRow) map[int64]SegmentRecord {
	result := make(map[int64]SegmentRecord, len(rows))
	for _, row := range rows {
		subtotals := make(map[string]decimal.Decimal, len(row.Values))
		for k, v := range row.Values {
			subtotals[k] = v
		}
		result[row.SegmentID] = SegmentRecord{
			SegmentID: row.SegmentID,
			Subtotals: subtotals,
		}
	}
	return result
}

// MergeTotals unions two reformatted result sets keyed by segment id. When a
// segment appears in only one side the other side's subtotal keys are simply
// absent; zero-filling happens later, not at merge time.
func MergeTotals(a, b map[int64]SegmentRecord) map[int64]SegmentRecord {
	merged := make(map[int64]SegmentRecord, len(a)+len(b))
	for id, rec := range a {
		merged[id] = cloneSegment(rec)
	}
	for id, rec := range b {
		existing, ok := merged[id]
		if !ok {
			merged[id] = cloneSegment(rec)
			continue
		}
		for k, v := range rec.Subtotals {
			existing.Subtotals[k] = v
		}
		merged[id] = existing
	}
	return merged
}

// MergeIntervals unions two result sets grouped first by time interval and
// then by segment id, stripping the time_interval key from each row before
// merging subtotals and restoring it as the outer key.
func MergeIntervals(a, b []RawRow) map[string]map[int64]SegmentRecord {
	merged := make(map[string]map[int64]SegmentRecord)
	for _, rows := range [][]RawRow{a, b} {
		for _, row := range rows {
			bucket, ok := merged[row.TimeInterval]
			if !ok {
				bucket = make(map[int64]SegmentRecord)
				merged[row.TimeInterval] = bucket
			}
			existing, ok := bucket[row.SegmentID]
			if !ok {
				existing = SegmentRecord{
					SegmentID: row.SegmentID,
					Subtotals: make(map[string]decimal.Decimal, len(row.Values)),
				}
			}
			for k, v := range row.Values {
				existing.Subtotals[k] = v
			}
			bucket[row.SegmentID] = existing
		}
	}
	return merged
}

// FillMissingSegments synthesizes an all-zero record for every id in allIDs
// absent from partial, then returns the full set sorted ascending by segment
// id. Every record ends up with an identical subtotal key set drawn from
// zeroFields, so response shapes stay uniform across segments.
func FillMissingSegments(partial map[int64]SegmentRecord, allIDs []int64, zeroFields []string) []SegmentRecord {
	records := make([]SegmentRecord, 0, len(allIDs))
	for _, id := range allIDs {
		rec, ok := partial[id]
		if !ok {
			rec = SegmentRecord{SegmentID: id, Subtotals: make(map[string]decimal.Decimal, len(zeroFields))}
		} else {
			rec = cloneSegment(rec)
		}
		for _, field := range zeroFields {
			if _, present := rec.Subtotals[field]; !present {
				rec.Subtotals[field] = decimal.Zero
			}
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SegmentID < records[j].SegmentID
	})
	return records
}

// AssignSegmentsToIntervals attaches the segment list for each bucket id to
// the corresponding interval record, defaulting to an empty list when the
// segmented query produced no rows for that bucket. Interval order is left
// untouched so the result stays in chronological bucket sequence.
func AssignSegmentsToIntervals(intervals []IntervalRecord, segmentsByInterval map[string][]SegmentRecord) []IntervalRecord {
	for i := range intervals {
		segments, ok := segmentsByInterval[intervals[i].TimeInterval]
		if !ok {
			segments = []SegmentRecord{}
		}
		intervals[i].Segments = segments
	}
	return intervals
}

func cloneSegment(rec SegmentRecord) SegmentRecord {
	subtotals := make(map[string]decimal.Decimal, len(rec.Subtotals))
	for k, v := range rec.Subtotals {
		subtotals[k] = v
	}
	return SegmentRecord{SegmentID: rec.SegmentID, Subtotals: subtotals}
}
