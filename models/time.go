package models

import "time"

// TimeFormat matches the layout SQLite's CURRENT_TIMESTAMP produces, so
// app-written and db-written timestamps collate identically.
const TimeFormat = "2006-01-02 15:04:05"

// Now returns the current UTC time in TimeFormat.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}
