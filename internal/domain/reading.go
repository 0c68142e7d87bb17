package domain

import "time"

// TimeLayout is the wall-clock format written to the date_time column.
const TimeLayout = "2006-01-02 15:04:05"

// Reading is one timestamped sensor record relayed through soilwire.
// SourceTimestamp is the sensor's own clock value, passed through verbatim;
// ObservedAt is stamped on the receiving host when the line arrives.
// Readings are immutable values: never mutate one after construction.
type Reading struct {
	SourceTimestamp string
	ObservedAt      time.Time
	Values          []string
}

// Row renders the reading as one CSV row matching Header's column order.
func (r Reading) Row() []string {
	row := make([]string, 0, 2+len(r.Values))
	row = append(row, r.SourceTimestamp, r.ObservedAt.Format(TimeLayout))
	return append(row, r.Values...)
}

// FromRow rebuilds a Reading from a CSV row previously produced by Row.
// The observed-at column is parsed best-effort; a row with a mangled
// date_time still round-trips its payload.
func FromRow(row []string) Reading {
	if len(row) < 2 {
		return Reading{Values: append([]string(nil), row...)}
	}
	ts, _ := time.Parse(TimeLayout, row[1])
	return Reading{
		SourceTimestamp: row[0],
		ObservedAt:      ts,
		Values:          append([]string(nil), row[2:]...),
	}
}

// Header builds the fixed CSV header for a deployment's channel list.
func Header(channels []string) []string {
	h := make([]string, 0, 2+len(channels))
	h = append(h, "timestamp", "date_time")
	return append(h, channels...)
}
