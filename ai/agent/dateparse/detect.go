package dateparse

import (
	"regexp"
	"strings"
)

var relativeTokens = []string{
	"今日", "本日", "きょう",
	"明日", "あした", "あす",
	"明後日", "あさって",
	"昨日", "きのう",
	"一昨日", "おととい",
	"今週", "来週", "再来週", "翌々週", "先週",
	"次の", "今度の",
	"正午", "深夜", "真夜中",
	"午前", "午後",
}

var (
	relOffsetRe = regexp.MustCompile(`\d+(日|週間|週|時間|分)(後|前|まえ)`)
	jaWeekdayRe = regexp.MustCompile(`[月火水木金土日]曜`)
	enWeekdayRe = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

// IsRelativeDatetimeText reports whether the text contains a relative
// date or time expression that needs resolving before it can be stored.
func IsRelativeDatetimeText(text string) bool {
	s := normalize(text)
	if s == "" {
		return false
	}
	for _, tok := range relativeTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	if relOffsetRe.MatchString(s) {
		return true
	}
	if jaWeekdayRe.MatchString(s) {
		return true
	}
	return enWeekdayRe.MatchString(s)
}
