package history

import (
	"sort"
	"time"
)

// Timestamped is implemented by rows that carry an epoch-seconds timestamp.
type Timestamped interface {
	Timestamp() int64
}

// DayBucket holds the rows that fall on one calendar day.
type DayBucket[E Timestamped] struct {
	Day     string `json:"day" yaml:"day"` // YYYY-MM-DD
	Entries []E    `json:"entries" yaml:"entries"`
}

// GroupByDay buckets entries by the calendar date of their timestamp in loc.
// Buckets are sorted newest day first and rows inside a bucket newest first,
// regardless of the input order. A nil loc means UTC.
func GroupByDay[E Timestamped](entries []E, loc *time.Location) []DayBucket[E] {
	if len(entries) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]E, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp() > sorted[j].Timestamp()
	})

	var buckets []DayBucket[E]
	for _, e := range sorted {
		day := time.Unix(e.Timestamp(), 0).In(loc).Format(time.DateOnly)
		if n := len(buckets); n > 0 && buckets[n-1].Day == day {
			buckets[n-1].Entries = append(buckets[n-1].Entries, e)
			continue
		}
		buckets = append(buckets, DayBucket[E]{Day: day, Entries: []E{e}})
	}
	return buckets
}
