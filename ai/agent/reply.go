package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kazuhrw/schedsense/ai/llm"
)

// Internal control messages. They live in the errors list for the trace
// but must never surface in the user-facing reply.
const (
	errDuplicateActionStop  = "同一アクションが連続して提案されたため、重複実行を停止しました。"
	errStaleReadPrefix      = "同じ参照/計算アクションが"
	errNoProgressStop       = "進展のないラウンドが続いたため処理を終了しました。"
	errRoundLimitPrefix     = "複数ステップ実行の上限"
	errDuplicateWritePrefix = "同一の書き込みアクションをスキップしました"
	errLLMFailurePrefix     = "LLM 呼び出しに失敗しました"
)

func isInternalControlError(message string) bool {
	if message == errDuplicateActionStop || message == errNoProgressStop {
		return true
	}
	for _, prefix := range []string{errStaleReadPrefix, errRoundLimitPrefix, errDuplicateWritePrefix} {
		if strings.HasPrefix(message, prefix) {
			return true
		}
	}
	return false
}

// visibleErrors filters the internal control markers out of an error list.
func visibleErrors(errs []string) []string {
	var visible []string
	for _, e := range errs {
		if !isInternalControlError(e) {
			visible = append(visible, e)
		}
	}
	return visible
}

var noScheduleLineRe = regexp.MustCompile(`予定\s*(なし|無し)`)

// RemoveNoScheduleLines drops every line matching 予定なし/予定無し and
// collapses the resulting runs of blank lines.
func RemoveNoScheduleLines(text string) string {
	var kept []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		if noScheduleLineRe.MatchString(line) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// mechanicalMarkers betray a summarizer that echoed raw execution output.
var mechanicalMarkers = []string{"【実行結果】", "計算結果:", "expression=", "source=", "datetime="}

func isMechanicalReply(text string) bool {
	for _, marker := range mechanicalMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// SynthesizeReply produces the final user-facing reply from the run's
// accumulated results and errors. Internal control errors are filtered
// before any path sees them.
func SynthesizeReply(ctx context.Context, svc llm.Service, userMessage, lastText string, results, errs []string) string {
	visible := visibleErrors(errs)

	if len(results) == 0 && len(visible) == 0 {
		text := strings.TrimSpace(lastText)
		if text == "" {
			text = "了解しました。"
		}
		if cleaned := RemoveNoScheduleLines(text); cleaned != "" {
			return cleaned
		}
		return "了解しました。"
	}

	if svc != nil {
		reply, err := summarize(ctx, svc, userMessage, results, visible)
		if err != nil {
			slog.Warn("reply: summarizer failed, using fallback", "error", err)
		} else if isMechanicalReply(reply) {
			slog.Debug("reply: summarizer output was mechanical, using fallback")
		} else if strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply)
		}
	}
	return fallbackReply(results, visible)
}

func summarize(ctx context.Context, svc llm.Service, userMessage string, results, visible []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("user_message: " + userMessage + "\n\n")
	sb.WriteString("【実行結果】\n")
	if len(results) == 0 {
		sb.WriteString("（なし）\n")
	}
	for _, result := range results {
		sb.WriteString("- " + result + "\n")
	}
	if len(visible) > 0 {
		sb.WriteString("【エラー】\n")
		for _, e := range visible {
			sb.WriteString("- " + e + "\n")
		}
	}

	return svc.Chat(ctx, []llm.Message{
		llm.SystemPrompt(summarizerPrompt),
		llm.UserMessage(sb.String()),
	})
}

var (
	calcExpressionRe = regexp.MustCompile(`expression=「([^」]*)」`)
	calcDateRe       = regexp.MustCompile(`date=(\S+)`)
	calcTimeRe       = regexp.MustCompile(`time=(\S+)`)
	taskAddedRe      = regexp.MustCompile(`カスタムタスク「(.+)」を (\d{4}-\d{2}-\d{2}) の (\d{2}:\d{2}) に追加しました。`)
	toggleLineRe     = regexp.MustCompile(`^「(.+)」を(完了|未完了)にしました。$`)
)

// fallbackReply is the deterministic friendly rendering used when the
// summarizer is unavailable or echoed mechanical output.
func fallbackReply(results, visible []string) string {
	lines := []string{"✨ 実行しました！", ""}
	for _, result := range results {
		lines = append(lines, friendlyResultLines(result)...)
	}
	if len(visible) > 0 {
		lines = append(lines, "", "⚠️ うまくいかなかった操作があります:")
		for i, e := range visible {
			if i == 3 {
				break
			}
			lines = append(lines, "・"+e)
		}
	}
	lines = append(lines, "", "🌈 ほかにもやりたい操作があれば続けて教えてください！")
	return strings.Join(lines, "\n")
}

func friendlyResultLines(result string) []string {
	if strings.Contains(result, "計算結果:") {
		expression := ""
		if m := calcExpressionRe.FindStringSubmatch(result); m != nil {
			expression = m[1]
		}
		date, timeOfDay := "", ""
		if m := calcDateRe.FindStringSubmatch(result); m != nil {
			date = m[1]
		}
		if m := calcTimeRe.FindStringSubmatch(result); m != nil {
			timeOfDay = m[1]
		}
		if expression == "" {
			expression = date
		}
		return []string{strings.TrimSpace(fmt.Sprintf("🧮 「%s」を %s %s に計算しました！", expression, date, timeOfDay))}
	}

	if m := taskAddedRe.FindStringSubmatch(result); m != nil {
		return []string{fmt.Sprintf("📅 %s %s に「%s」を追加しました！", m[2], m[3], m[1])}
	}

	if m := toggleLineRe.FindStringSubmatch(result); m != nil {
		return []string{fmt.Sprintf("✅ 「%s」を%sにしました。", m[1], m[2])}
	}

	resultLines := strings.Split(result, "\n")
	if strings.Contains(resultLines[0], "のサマリー:") {
		date := strings.SplitN(resultLines[0], " ", 2)[0]
		out := []string{fmt.Sprintf("📋 %s の予定を確認しました！", date)}
		for i, detail := range resultLines[1:] {
			if i == 5 {
				break
			}
			out = append(out, detail)
		}
		return out
	}

	if strings.HasPrefix(resultLines[0], "期間 ") {
		out := []string{"📋 " + resultLines[0]}
		for i, detail := range resultLines[1:] {
			if i == 5 {
				break
			}
			out = append(out, detail)
		}
		return out
	}

	return []string{"・" + result}
}
