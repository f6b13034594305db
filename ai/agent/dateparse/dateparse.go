// Package dateparse converts relative and absolute Japanese/English
// date-time expressions into absolute calendar values. Everything here is
// pure: the caller supplies the base date, nothing reads the wall clock.
package dateparse

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical YYYY-MM-DD form used across the store.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical HH:MM form.
	TimeLayout = "15:04"
)

// weekdayNames are the canonical Japanese weekday names, indexed 0=Monday .. 6=Sunday.
var weekdayNames = [7]string{"月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日", "日曜日"}

// Result is the uniform return value of the calculators and the resolver.
// OK=false carries a human-readable Japanese error; all other fields are
// set only when meaningful for the operation.
type Result struct {
	Error       string `json:"error,omitempty"`
	Expression  string `json:"expression,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Datetime    string `json:"datetime,omitempty"`
	Weekday     string `json:"weekday,omitempty"`
	Source      string `json:"source,omitempty"`
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
	Year        int    `json:"year,omitempty"`
	Month       int    `json:"month,omitempty"`
	Day         int    `json:"day,omitempty"`
	OK          bool   `json:"ok"`
}

func errorResult(format string, args ...any) Result {
	return Result{OK: false, Error: fmt.Sprintf(format, args...)}
}

// WeekdayName returns the canonical Japanese name for weekday index 0=Mon..6=Sun.
func WeekdayName(index int) string {
	if index < 0 || index > 6 {
		return ""
	}
	return weekdayNames[index]
}

// weekdayIndex converts time.Weekday into the Monday-anchored 0..6 index.
func weekdayIndex(w time.Weekday) int {
	if w == time.Sunday {
		return 6
	}
	return int(w) - 1
}

// mondayOf returns the Monday of the week enclosing t.
func mondayOf(t time.Time) time.Time {
	return t.AddDate(0, 0, -weekdayIndex(t.Weekday()))
}

// ParseDate parses a canonical YYYY-MM-DD value.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	return t, nil
}

// WeekdayIndexOf returns the Monday-anchored 0..6 index for t.
func WeekdayIndexOf(t time.Time) int {
	return weekdayIndex(t.Weekday())
}

func parseTime(value string) (hour, minute int, err error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q", value)
	}
	return t.Hour(), t.Minute(), nil
}

func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func dateResult(t time.Time, source string) Result {
	return Result{
		OK:      true,
		Date:    formatDate(t),
		Weekday: weekdayNames[weekdayIndex(t.Weekday())],
		Source:  source,
	}
}
