// Package partitionby computes the partition-floor timestamp and
// directory name for a row's timestamp under the configured partition-by
// unit (spec.md §3 "PartitionKey", §4.4).
package partitionby

import "time"

// Unit is the partition-by granularity; NONE is deliberately not a value
// here since spec.md §7.1 treats it as a Configuration error before any
// phase runs.
type Unit int

const (
	Hour Unit = iota
	Day
	Month
	Year
)

// Floor returns the partition-key timestamp (micros since epoch, UTC) for
// tsMicros under u: the start of the hour/day/month/year it falls in.
func (u Unit) Floor(tsMicros int64) int64 {
	t := time.UnixMicro(tsMicros).UTC()
	var floored time.Time
	switch u {
	case Hour:
		floored = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case Day:
		floored = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Month:
		floored = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		floored = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		floored = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return floored.UnixMicro()
}

// Name returns the partition directory name for a partition-key timestamp
// (already floored via Floor), e.g. "2020-01-02" for Day or "2020-01-02T00"
// for Hour.
func (u Unit) Name(tsMicros int64) string {
	t := time.UnixMicro(tsMicros).UTC()
	switch u {
	case Hour:
		return t.Format("2006-01-02T15")
	case Month:
		return t.Format("2006-01")
	case Year:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// ParseUnit maps the CLI/config spelling (HOUR|DAY|MONTH|YEAR) to a Unit.
func ParseUnit(s string) (Unit, bool) {
	switch s {
	case "HOUR":
		return Hour, true
	case "DAY":
		return Day, true
	case "MONTH":
		return Month, true
	case "YEAR":
		return Year, true
	default:
		return 0, false
	}
}

func (u Unit) String() string {
	switch u {
	case Hour:
		return "HOUR"
	case Month:
		return "MONTH"
	case Year:
		return "YEAR"
	default:
		return "DAY"
	}
}
