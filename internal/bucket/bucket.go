// Package bucket implements week-aligned time bucketing for column-store
// partition keys: TimeBucket collapses an authored-at timestamp down to
// the Monday 00:00 instant of its ISO week, so historical reads scan a
// bounded number of partitions instead of the full message history.
//
// Zone: buckets are anchored in time.Local, matching the original
// implementation this was distilled from. A fixed UTC zone would be the
// more portable choice for a multi-region deployment, but the open
// question this leaves (see DESIGN.md) is resolved in favor of matching
// the source rather than guessing at a requirement the spec doesn't state.
// Every entry point (FromDate, FromDatetime, Current) converts its input
// into time.Local before extracting the calendar date, so a UTC-stored
// message timestamp and a time.Now()-derived read-side bucket always key
// to the same instant regardless of what zone the input arrived in.
package bucket

import (
	"iter"
	"time"
)

// TimeBucket is a date anchored to the Monday of its ISO week, 00:00:00
// in the process's local zone.
type TimeBucket struct {
	t time.Time
}

// Epoch bounds descending walks so they terminate even when no explicit
// end is supplied: 2023-01-02, a Monday.
var Epoch = TimeBucket{t: time.Date(2023, time.January, 2, 0, 0, 0, 0, time.Local)}

// Current returns the bucket containing "now".
func Current() TimeBucket {
	return FromDatetime(time.Now())
}

// FromDatetime is an alias of FromDate; bucketing only cares about the
// calendar date component of dt, in the process's local zone.
func FromDatetime(dt time.Time) TimeBucket {
	return FromDate(dt)
}

// FromDate converts d into time.Local first, then subtracts weekday(d)
// days (Monday -> 0), anchoring the result to 00:00:00 local. The
// conversion is what makes write-side buckets (derived from a UTC
// message timestamp) and read-side buckets (derived from time.Now, already
// local) land on the same instant: without it, a non-UTC process's local
// bucket and a message's UTC-normalized bucket disagree by the zone
// offset and a historical query never matches a stored row.
func FromDate(d time.Time) TimeBucket {
	d = d.In(time.Local)
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
	offset := mondayIndexedWeekday(midnight.Weekday())
	return TimeBucket{t: midnight.AddDate(0, 0, -offset)}
}

// mondayIndexedWeekday maps time.Sunday=0..time.Saturday=6 to a
// Monday=0..Sunday=6 index.
func mondayIndexedWeekday(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// Previous yields the prior week's bucket (-7 days).
func (b TimeBucket) Previous() TimeBucket {
	return TimeBucket{t: b.t.AddDate(0, 0, -7)}
}

// Next yields the following week's bucket (+7 days), the step used by
// IterForwardTo.
func (b TimeBucket) Next() TimeBucket {
	return TimeBucket{t: b.t.AddDate(0, 0, 7)}
}

// Time returns the bucket's underlying Monday-00:00 instant.
func (b TimeBucket) Time() time.Time {
	return b.t
}

// Timestamp returns the bucket's 00:00 instant as seconds since epoch,
// the form the column-store driver expects for its timestamp type.
func (b TimeBucket) Timestamp() int64 {
	return b.t.Unix()
}

// Equal reports whether two buckets denote the same week.
func (b TimeBucket) Equal(other TimeBucket) bool {
	return b.t.Equal(other.t)
}

// After reports whether b is strictly later than other.
func (b TimeBucket) After(other TimeBucket) bool {
	return b.t.After(other.t)
}

// Before reports whether b is strictly earlier than other.
func (b TimeBucket) Before(other TimeBucket) bool {
	return b.t.Before(other.t)
}

// IterPastTo yields b, b.Previous(), b.Previous().Previous(), ... while
// strictly greater than end, terminating as soon as a bucket is <= end.
// Both directions are finite for well-formed endpoints since each step
// moves a fixed 7 days away from end.
func (b TimeBucket) IterPastTo(end TimeBucket) iter.Seq[TimeBucket] {
	return func(yield func(TimeBucket) bool) {
		cur := b
		for cur.After(end) {
			if !yield(cur) {
				return
			}
			cur = cur.Previous()
		}
	}
}

// IterForwardTo is the symmetric ascending walk: b, b.Next(), ... while
// strictly less than end.
func (b TimeBucket) IterForwardTo(end TimeBucket) iter.Seq[TimeBucket] {
	return func(yield func(TimeBucket) bool) {
		cur := b
		for cur.Before(end) {
			if !yield(cur) {
				return
			}
			cur = cur.Next()
		}
	}
}

// String renders the bucket's date in ISO form, for logging.
func (b TimeBucket) String() string {
	return b.t.Format("2006-01-02")
}
