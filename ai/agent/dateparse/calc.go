package dateparse

import "time"

// CalcDateOffset performs signed day arithmetic on a base date.
func CalcDateOffset(baseDate string, offsetDays int) Result {
	base, err := ParseDate(baseDate)
	if err != nil {
		return errorResult("基準日が不正です: %s", baseDate)
	}
	return dateResult(base.AddDate(0, 0, offsetDays), "calc_date_offset")
}

// CalcMonthBoundary returns the first or last day of a month.
// boundary must be "start" or "end".
func CalcMonthBoundary(year, month int, boundary string) Result {
	if month < 1 || month > 12 {
		return errorResult("月が不正です: %d", month)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	switch boundary {
	case "start":
		return dateResult(first, "calc_month_boundary")
	case "end":
		return dateResult(first.AddDate(0, 1, -1), "calc_month_boundary")
	}
	return errorResult("boundary は start または end を指定してください: %s", boundary)
}

// CalcNearestWeekday finds the nearest date with the given weekday
// (0=Mon..6=Sun) in the given direction. The base day itself counts as a match.
func CalcNearestWeekday(baseDate string, weekday int, direction string) Result {
	base, err := ParseDate(baseDate)
	if err != nil {
		return errorResult("基準日が不正です: %s", baseDate)
	}
	if weekday < 0 || weekday > 6 {
		return errorResult("曜日が不正です: %d", weekday)
	}

	diff := weekday - weekdayIndex(base.Weekday())
	switch direction {
	case "forward":
		if diff < 0 {
			diff += 7
		}
	case "backward":
		if diff > 0 {
			diff -= 7
		}
	default:
		return errorResult("direction は forward または backward を指定してください: %s", direction)
	}
	return dateResult(base.AddDate(0, 0, diff), "calc_nearest_weekday")
}

// CalcWeekWeekday resolves a weekday within a Monday-anchored week offset
// from the base date's week. weekOffset 0 is this week, +1 next week.
func CalcWeekWeekday(baseDate string, weekOffset, weekday int) Result {
	base, err := ParseDate(baseDate)
	if err != nil {
		return errorResult("基準日が不正です: %s", baseDate)
	}
	if weekday < 0 || weekday > 6 {
		return errorResult("曜日が不正です: %d", weekday)
	}
	target := mondayOf(base).AddDate(0, 0, weekOffset*7+weekday)
	return dateResult(target, "calc_week_weekday")
}

// CalcWeekRange returns the Monday..Sunday range enclosing the base date.
func CalcWeekRange(baseDate string) Result {
	base, err := ParseDate(baseDate)
	if err != nil {
		return errorResult("基準日が不正です: %s", baseDate)
	}
	monday := mondayOf(base)
	sunday := monday.AddDate(0, 0, 6)
	result := dateResult(base, "calc_week_range")
	result.PeriodStart = formatDate(monday)
	result.PeriodEnd = formatDate(sunday)
	return result
}

// CalcTimeOffset applies a signed minute offset to a date+time pair.
// Crossing midnight moves the date.
func CalcTimeOffset(baseDate, baseTime string, offsetMinutes int) Result {
	base, err := ParseDate(baseDate)
	if err != nil {
		return errorResult("基準日が不正です: %s", baseDate)
	}
	hour, minute, err := parseTime(baseTime)
	if err != nil {
		return errorResult("基準時刻が不正です: %s", baseTime)
	}

	at := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
	at = at.Add(time.Duration(offsetMinutes) * time.Minute)

	result := dateResult(at, "calc_time_offset")
	result.Time = at.Format(TimeLayout)
	result.Datetime = result.Date + " " + result.Time
	return result
}

// GetDateInfo decomposes a date into weekday name and y/m/d parts.
func GetDateInfo(date string) Result {
	t, err := ParseDate(date)
	if err != nil {
		return errorResult("日付が不正です: %s", date)
	}
	result := dateResult(t, "get_date_info")
	result.Year = t.Year()
	result.Month = int(t.Month())
	result.Day = t.Day()
	return result
}
