package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Token tables for the expression resolver. Longer tokens must be matched
// before their substrings (再来週 before 来週, 一昨日 before 昨日).
var relativeDayTokens = []struct {
	token  string
	offset int
}{
	{"一昨日", -2},
	{"おととい", -2},
	{"翌々日", 2},
	{"前々日", -2},
	{"翌日", 1},
	{"前日", -1},
	{"同じ日", 0},
	{"その日", 0},
	{"同日", 0},
	{"当日", 0},
	{"明後日", 2},
	{"あさって", 2},
	{"明日", 1},
	{"あした", 1},
	{"あす", 1},
	{"昨日", -1},
	{"きのう", -1},
	{"今日", 0},
	{"本日", 0},
	{"きょう", 0},
}

var relativeWeekTokens = []struct {
	token  string
	offset int
}{
	{"再来週", 2},
	{"翌々週", 2},
	{"来週", 1},
	{"先週", -1},
	{"今週", 0},
}

var weekdayKanji = map[string]int{
	"月": 0, "火": 1, "水": 2, "木": 3, "金": 4, "土": 5, "日": 6,
}

var (
	isoDateRe      = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	kanjiDateRe    = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	monthDayRe     = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
	slashDateRe    = regexp.MustCompile(`(^|[^\d/])(\d{1,2})/(\d{1,2})($|[^\d/])`)
	nDaysRe        = regexp.MustCompile(`(\d+)日(後|前)`)
	nWeeksRe       = regexp.MustCompile(`(\d+)週間?(後|前)`)
	weekdayRe      = regexp.MustCompile(`([月火水木金土日])曜`)
	nextWeekdayRe  = regexp.MustCompile(`(?:次の|今度の)\s*([月火水木金土日])曜`)
	relTimeHourRe  = regexp.MustCompile(`(\d+)時間(?:(\d+)分)?(後|前)`)
	relTimeMinRe   = regexp.MustCompile(`(\d+)分(後|前)`)
	clockTimeRe    = regexp.MustCompile(`([01]?\d|2[0-3]):([0-5]\d)`)
	ampmTimeRe     = regexp.MustCompile(`(午前|午後)(\d{1,2})時(?:(\d{1,2})分)?`)
	halfHourRe     = regexp.MustCompile(`(\d{1,2})時半`)
	hourMinuteRe   = regexp.MustCompile(`(\d{1,2})時(?:(\d{1,2})分)?`)
	fullWidthDigit = strings.NewReplacer(
		"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
		"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
		"：", ":", "／", "/", "　", " ",
	)
)

// normalize widens the resolver's reach over full-width input.
func normalize(expression string) string {
	return strings.TrimSpace(fullWidthDigit.Replace(expression))
}

// extractExplicitTime finds an explicit time-of-day in the expression.
func extractExplicitTime(expr string) (string, bool) {
	if m := clockTimeRe.FindStringSubmatch(expr); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d:%02d", h, mi), true
	}
	if strings.Contains(expr, "正午") {
		return "12:00", true
	}
	if strings.Contains(expr, "深夜") || strings.Contains(expr, "真夜中") {
		return "00:00", true
	}
	if m := ampmTimeRe.FindStringSubmatch(expr); m != nil {
		h, _ := strconv.Atoi(m[2])
		mi := 0
		if m[3] != "" {
			mi, _ = strconv.Atoi(m[3])
		}
		if m[1] == "午後" && h < 12 {
			h += 12
		}
		if m[1] == "午前" && h == 12 {
			h = 0
		}
		if h > 23 || mi > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", h, mi), true
	}
	if m := halfHourRe.FindStringSubmatch(expr); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h > 23 {
			return "", false
		}
		return fmt.Sprintf("%02d:30", h), true
	}
	if m := hourMinuteRe.FindStringSubmatch(expr); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi := 0
		if m[2] != "" {
			mi, _ = strconv.Atoi(m[2])
		}
		if h > 23 || mi > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", h, mi), true
	}
	return "", false
}

// ResolveScheduleExpression converts an arbitrary natural-language fragment
// into an absolute date and time. baseDate anchors relative expressions;
// baseTime anchors relative time deltas; defaultTime fills in when the
// expression carries no time of day.
func ResolveScheduleExpression(expression, baseDate, baseTime, defaultTime string) Result {
	expr := normalize(expression)
	if expr == "" {
		return errorResult("日付表現を解釈できませんでした: %s", expression)
	}

	base, err := ParseDate(baseDate)
	if err != nil {
		return errorResult("基準日が不正です: %s", baseDate)
	}
	if defaultTime == "" {
		defaultTime = "00:00"
	}

	// Relative time deltas resolve against base_date+base_time directly.
	if result, ok := resolveRelativeTimeDelta(expr, baseDate, baseTime); ok {
		result.Expression = expression
		return result
	}

	explicitTime, hasTime := extractExplicitTime(expr)

	finish := func(r Result) Result {
		if !r.OK {
			return r
		}
		r.Expression = expression
		if r.Time == "" {
			if hasTime {
				r.Time = explicitTime
			} else {
				r.Time = defaultTime
			}
		}
		r.Datetime = r.Date + " " + r.Time
		return r
	}

	// 1. Explicit full dates.
	if m := isoDateRe.FindStringSubmatch(expr); m != nil {
		return finish(resolveExplicitDate(m[1], m[2], m[3], "iso_date"))
	}
	if m := kanjiDateRe.FindStringSubmatch(expr); m != nil {
		return finish(resolveExplicitDate(m[1], m[2], m[3], "kanji_date"))
	}

	// 2. Month/day without year: roll forward a year if already past.
	if m := monthDayRe.FindStringSubmatch(expr); m != nil {
		return finish(resolveMonthDay(base, m[1], m[2]))
	}
	if m := slashDateRe.FindStringSubmatch(expr); m != nil {
		return finish(resolveMonthDay(base, m[2], m[3]))
	}

	// 3. Relative day keywords.
	for _, tok := range relativeDayTokens {
		if strings.Contains(expr, tok.token) {
			return finish(dateResult(base.AddDate(0, 0, tok.offset), "relative_day"))
		}
	}

	// 4. N日後 / N日前.
	if m := nDaysRe.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		if m[2] == "前" {
			n = -n
		}
		return finish(dateResult(base.AddDate(0, 0, n), "day_offset"))
	}

	// 5. N週間後 / N週前.
	if m := nWeeksRe.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		if m[2] == "前" {
			n = -n
		}
		return finish(dateResult(base.AddDate(0, 0, n*7), "week_offset"))
	}

	// 6. Relative week tokens with optional weekday.
	for _, tok := range relativeWeekTokens {
		if !strings.Contains(expr, tok.token) {
			continue
		}
		rest := strings.Replace(expr, tok.token, "", 1)
		if m := weekdayRe.FindStringSubmatch(rest); m != nil {
			return finish(dateResult(
				mondayOf(base).AddDate(0, 0, tok.offset*7+weekdayKanji[m[1]]),
				"relative_week_weekday",
			))
		}
		// No weekday: default to Monday and carry the whole week as a period.
		monday := mondayOf(base).AddDate(0, 0, tok.offset*7)
		result := dateResult(monday, "relative_week")
		result.PeriodStart = formatDate(monday)
		result.PeriodEnd = formatDate(monday.AddDate(0, 0, 6))
		return finish(result)
	}

	// 7. 次の/今度の <weekday>.
	if m := nextWeekdayRe.FindStringSubmatch(expr); m != nil {
		target := weekdayKanji[m[1]]
		diff := target - weekdayIndex(base.Weekday())
		if diff <= 0 {
			diff += 7
		}
		return finish(dateResult(base.AddDate(0, 0, diff), "next_weekday"))
	}

	// 8. Bare weekday, future-only (today counts).
	if m := weekdayRe.FindStringSubmatch(expr); m != nil {
		target := weekdayKanji[m[1]]
		diff := target - weekdayIndex(base.Weekday())
		if diff < 0 {
			diff += 7
		}
		return finish(dateResult(base.AddDate(0, 0, diff), "bare_weekday"))
	}

	// 9. Generic fallback parse.
	for _, layout := range []string{"2006-1-2", "2006/1/2", "2006.1.2"} {
		if t, err := time.Parse(layout, expr); err == nil {
			return finish(dateResult(t, "generic_parse"))
		}
	}

	// A lone explicit time still resolves, anchored to the base date.
	if hasTime {
		return finish(dateResult(base, "time_only"))
	}

	return errorResult("日付表現を解釈できませんでした: %s", expression)
}

func resolveExplicitDate(yearStr, monthStr, dayStr, source string) Result {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return errorResult("日付表現を解釈できませんでした: %d-%d-%d", year, month, day)
	}
	return dateResult(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), source)
}

func resolveMonthDay(base time.Time, monthStr, dayStr string) Result {
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return errorResult("日付表現を解釈できませんでした: %d月%d日", month, day)
	}
	target := time.Date(base.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if target.Before(base) {
		target = target.AddDate(1, 0, 0)
	}
	return dateResult(target, "month_day")
}

// resolveRelativeTimeDelta handles N時間[M分]後/前 and N分後/前, anchored to
// base_date+base_time.
func resolveRelativeTimeDelta(expr, baseDate, baseTime string) (Result, bool) {
	var minutes int
	if m := relTimeHourRe.FindStringSubmatch(expr); m != nil {
		h, _ := strconv.Atoi(m[1])
		minutes = h * 60
		if m[2] != "" {
			mi, _ := strconv.Atoi(m[2])
			minutes += mi
		}
		if m[3] == "前" {
			minutes = -minutes
		}
	} else if m := relTimeMinRe.FindStringSubmatch(expr); m != nil {
		mi, _ := strconv.Atoi(m[1])
		minutes = mi
		if m[2] == "前" {
			minutes = -minutes
		}
	} else {
		return Result{}, false
	}

	if baseTime == "" {
		baseTime = "00:00"
	}
	result := CalcTimeOffset(baseDate, baseTime, minutes)
	if !result.OK {
		return result, true
	}
	result.Source = "relative_time"
	return result, true
}
