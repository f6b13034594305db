package dateparse

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, expression string) Result {
	t.Helper()
	result := ResolveScheduleExpression(expression, baseThursday, "", "")
	require.True(t, result.OK, "expression %q: %s", expression, result.Error)
	return result
}

func TestResolveExplicitDates(t *testing.T) {
	assert.Equal(t, "2026-03-05", resolve(t, "2026-03-05に会議").Date)
	assert.Equal(t, "2026-03-05", resolve(t, "2026年3月5日").Date)
}

func TestResolveMonthDayRollsForward(t *testing.T) {
	// A month/day already past the base date moves into next year.
	assert.Equal(t, "2027-01-10", resolve(t, "1月10日").Date)
	assert.Equal(t, "2026-03-01", resolve(t, "3月1日").Date)
	assert.Equal(t, "2026-03-01", resolve(t, "3/1").Date)
	// The base date itself does not roll.
	assert.Equal(t, "2026-02-12", resolve(t, "2月12日").Date)
}

func TestResolveRelativeDayKeywords(t *testing.T) {
	cases := map[string]string{
		"今日":     "2026-02-12",
		"本日":     "2026-02-12",
		"きょう":    "2026-02-12",
		"明日":     "2026-02-13",
		"あした":    "2026-02-13",
		"あす":     "2026-02-13",
		"明後日":    "2026-02-14",
		"あさって":   "2026-02-14",
		"昨日":     "2026-02-11",
		"きのう":    "2026-02-11",
		"一昨日":    "2026-02-10",
		"おととい":   "2026-02-10",
		"明日の買い物": "2026-02-13",
	}
	for expression, want := range cases {
		assert.Equal(t, want, resolve(t, expression).Date, "expression %q", expression)
	}
}

// Reference expressions lean on the caller-supplied base date, which the
// orchestrator injects from the run's resolved memory.
func TestResolveReferenceTokens(t *testing.T) {
	cases := map[string]string{
		"その翌日": "2026-02-13",
		"翌々日":  "2026-02-14",
		"前日":   "2026-02-11",
		"前々日":  "2026-02-10",
		"その日":  "2026-02-12",
		"同じ日":  "2026-02-12",
		"当日の夜": "2026-02-12",
	}
	for expression, want := range cases {
		assert.Equal(t, want, resolve(t, expression).Date, "expression %q", expression)
	}
}

func TestResolveDayAndWeekOffsets(t *testing.T) {
	assert.Equal(t, "2026-02-15", resolve(t, "3日後").Date)
	assert.Equal(t, "2026-02-09", resolve(t, "3日前").Date)
	assert.Equal(t, "2026-02-26", resolve(t, "2週間後").Date)
	assert.Equal(t, "2026-02-19", resolve(t, "1週後").Date)
	// Full-width digits normalize before matching.
	assert.Equal(t, "2026-02-15", resolve(t, "３日後").Date)
}

func TestResolveWeekTokens(t *testing.T) {
	// No weekday: default Monday, carrying the enclosing week as a period.
	thisWeek := resolve(t, "今週")
	assert.Equal(t, "2026-02-09", thisWeek.Date)
	assert.Equal(t, "2026-02-09", thisWeek.PeriodStart)
	assert.Equal(t, "2026-02-15", thisWeek.PeriodEnd)

	nextWeek := resolve(t, "来週")
	assert.Equal(t, "2026-02-16", nextWeek.Date)
	assert.Equal(t, "2026-02-22", nextWeek.PeriodEnd)

	lastWeek := resolve(t, "先週")
	assert.Equal(t, "2026-02-02", lastWeek.Date)

	// With a weekday the period is dropped and the day is exact.
	tuesday := resolve(t, "再来週火曜")
	assert.Equal(t, "2026-02-24", tuesday.Date)
	assert.Empty(t, tuesday.PeriodStart)
	assert.Equal(t, "2026-02-24", resolve(t, "翌々週の火曜日").Date)
}

func TestResolveWeekdayForms(t *testing.T) {
	// 次の/今度の always move forward, even from the same weekday.
	assert.Equal(t, "2026-02-13", resolve(t, "次の金曜").Date)
	assert.Equal(t, "2026-02-19", resolve(t, "今度の木曜日").Date)

	// Bare weekday: nearest future occurrence, today included.
	assert.Equal(t, "2026-02-13", resolve(t, "金曜日").Date)
	assert.Equal(t, "2026-02-12", resolve(t, "木曜日").Date)
	assert.Equal(t, "2026-02-16", resolve(t, "月曜日に").Date)
}

func TestResolveExplicitTimes(t *testing.T) {
	cases := map[string]string{
		"明日の10:30":  "10:30",
		"明日の10時":    "10:00",
		"明日の10時15分": "10:15",
		"明日の7時半":    "07:30",
		"明日の午後3時":   "15:00",
		"明日の午前9時":   "09:00",
		"明日の正午":     "12:00",
		"明日の深夜":     "00:00",
	}
	for expression, want := range cases {
		result := resolve(t, expression)
		assert.Equal(t, want, result.Time, "expression %q", expression)
		assert.Equal(t, "2026-02-13", result.Date, "expression %q", expression)
		assert.Equal(t, "2026-02-13 "+want, result.Datetime, "expression %q", expression)
	}
}

func TestResolveScenarioWeekWeekdayWithTime(t *testing.T) {
	result := resolve(t, "再来週火曜の11時")
	assert.Equal(t, "2026-02-24", result.Date)
	assert.Equal(t, "11:00", result.Time)
	assert.Equal(t, "火曜日", result.Weekday)
}

func TestResolveDefaultTime(t *testing.T) {
	withDefault := ResolveScheduleExpression("明日", baseThursday, "", "09:00")
	require.True(t, withDefault.OK)
	assert.Equal(t, "09:00", withDefault.Time)

	noDefault := ResolveScheduleExpression("明日", baseThursday, "", "")
	require.True(t, noDefault.OK)
	assert.Equal(t, "00:00", noDefault.Time)
}

func TestResolveRelativeTimeDelta(t *testing.T) {
	later := ResolveScheduleExpression("30分後", baseThursday, "10:00", "")
	require.True(t, later.OK)
	assert.Equal(t, "2026-02-12 10:30", later.Datetime)

	hours := ResolveScheduleExpression("2時間後", baseThursday, "23:00", "")
	require.True(t, hours.OK)
	assert.Equal(t, "2026-02-13", hours.Date)
	assert.Equal(t, "01:00", hours.Time)

	mixed := ResolveScheduleExpression("1時間30分前", baseThursday, "10:00", "")
	require.True(t, mixed.OK)
	assert.Equal(t, "08:30", mixed.Time)
}

func TestResolveUnparseable(t *testing.T) {
	result := ResolveScheduleExpression("なんとなく", baseThursday, "", "")
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "日付表現を解釈できませんでした")

	empty := ResolveScheduleExpression("  ", baseThursday, "", "")
	assert.False(t, empty.OK)
}

func TestResolveInvalidBase(t *testing.T) {
	result := ResolveScheduleExpression("明日", "not-a-date", "", "")
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "基準日が不正です")
}

// Every OK result carries canonical formats.
func TestResolveResultShape(t *testing.T) {
	dateRe := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe := regexp.MustCompile(`^[0-2]\d:[0-5]\d$`)
	weekdays := map[string]bool{
		"月曜日": true, "火曜日": true, "水曜日": true, "木曜日": true,
		"金曜日": true, "土曜日": true, "日曜日": true,
	}

	for _, expression := range []string{
		"明日", "3日後", "来週", "再来週火曜の11時", "2026-03-05", "次の金曜", "正午", "30分後",
	} {
		result := ResolveScheduleExpression(expression, baseThursday, "08:00", "")
		require.True(t, result.OK, "expression %q", expression)
		assert.Regexp(t, dateRe, result.Date, "expression %q", expression)
		assert.Regexp(t, timeRe, result.Time, "expression %q", expression)
		assert.True(t, weekdays[result.Weekday], "expression %q weekday %q", expression, result.Weekday)
		assert.Equal(t, expression, result.Expression)
	}
}

func TestIsRelativeDatetimeText(t *testing.T) {
	for _, text := range []string{
		"明日", "きょうの予定", "3日後", "2週間前", "30分後", "来週の会議",
		"火曜日", "次の金曜", "Friday", "monday meeting", "午後イチで",
	} {
		assert.True(t, IsRelativeDatetimeText(text), "text %q", text)
	}
	for _, text := range []string{
		"", "2026-02-12", "10:00", "買い物", "ミーティング",
	} {
		assert.False(t, IsRelativeDatetimeText(text), "text %q", text)
	}
}
