package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kazuhrw/schedsense/ai/agent/dateparse"
	"github.com/kazuhrw/schedsense/ai/llm"
	"github.com/kazuhrw/schedsense/ai/metrics"
	"github.com/kazuhrw/schedsense/internal/profile"
	"github.com/kazuhrw/schedsense/store"
)

const maxHistoryMessages = 10

// Orchestrator drives the bounded tool-calling loop: build context, call
// the LLM with the tool catalog, guard the proposals, dispatch them, feed
// results back, then loop or terminate.
type Orchestrator struct {
	llm               llm.Service
	dispatcher        *Dispatcher
	contextBuilder    *ContextBuilder
	maxRounds         int
	maxSameReadStreak int
}

func NewOrchestrator(s *store.Store, svc llm.Service, p *profile.Profile) *Orchestrator {
	return &Orchestrator{
		llm:               svc,
		dispatcher:        NewDispatcher(s),
		contextBuilder:    NewContextBuilder(s),
		maxRounds:         p.MaxActionRounds,
		maxSameReadStreak: p.MaxSameReadStreak,
	}
}

// ReviewDecision captures a set_review_outcome tool call. It is a decision
// object, never dispatched against the store.
type ReviewDecision struct {
	ActionRequired bool   `json:"action_required"`
	ShouldReply    bool   `json:"should_reply"`
	Reply          string `json:"reply"`
	Notes          string `json:"notes"`
}

// RunResult is the outcome of one orchestration run.
type RunResult struct {
	Reply         string
	ShouldRefresh bool
	ModifiedIDs   []string
	Trace         []TraceRound
	Decision      *ReviewDecision
}

// runState is the per-run mutable state threaded through the rounds.
type runState struct {
	conversation []llm.Message
	userMessage  string
	today        string

	results     []string
	errs        []string
	modifiedIDs []string
	trace       []TraceRound
	resolved    []dateparse.Result

	plan      []planStep
	planIndex int

	writeFingerprints map[string]bool
	prevSignature     string
	prevHadWrites     bool
	staleReadRepeat   int
	noProgress        int

	lastText string
	decision *ReviewDecision
}

// Run processes one chat request to completion. It never returns an error:
// every failure is captured in the errors list and surfaced through the
// synthesized reply.
func (o *Orchestrator) Run(ctx context.Context, history []llm.Message, today string) *RunResult {
	startTime := time.Now()
	runID := uuid.NewString()

	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	userMessage := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			userMessage = history[i].Content
			break
		}
	}

	state := &runState{
		conversation:      append([]llm.Message{}, history...),
		userMessage:       userMessage,
		today:             today,
		plan:              inferPlan(userMessage),
		writeFingerprints: map[string]bool{},
	}

	slog.Info("agent: run started", "run_id", runID, "today", today, "history", len(history))

	reason := o.runLoop(ctx, runID, state)

	reply := SynthesizeReply(ctx, o.llm, state.userMessage, state.lastText, state.results, state.errs)
	if len(state.results) > 0 || len(visibleErrors(state.errs)) > 0 {
		metrics.LLMCallsTotal.WithLabelValues("summarizer").Inc()
	}

	modifiedIDs := dedupeStrings(state.modifiedIDs)

	metrics.RunsTotal.Inc()
	metrics.TerminationsTotal.WithLabelValues(reason).Inc()
	metrics.RunDuration.Observe(time.Since(startTime).Seconds())
	slog.Info("agent: run finished",
		"run_id", runID,
		"reason", reason,
		"rounds", len(state.trace),
		"results", len(state.results),
		"errors", len(state.errs),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return &RunResult{
		Reply:         reply,
		ShouldRefresh: len(modifiedIDs) > 0,
		ModifiedIDs:   modifiedIDs,
		Trace:         state.trace,
		Decision:      state.decision,
	}
}

// runLoop executes up to maxRounds rounds and returns the termination reason.
func (o *Orchestrator) runLoop(ctx context.Context, runID string, state *runState) string {
	for round := 1; round <= o.maxRounds; round++ {
		metrics.RoundsTotal.Inc()

		worldState, err := o.contextBuilder.Build(ctx, state.today)
		if err != nil {
			state.errs = append(state.errs, fmt.Sprintf("操作の適用に失敗しました: %v", err))
			return metrics.ReasonLLMError
		}

		messages := make([]llm.Message, 0, len(state.conversation)+2)
		messages = append(messages,
			llm.SystemPrompt(schedulerSystemPrompt),
			llm.SystemPrompt("world_state:\n"+worldState),
		)
		messages = append(messages, state.conversation...)

		metrics.LLMCallsTotal.WithLabelValues("tool").Inc()
		resp, err := o.llm.ChatWithTools(ctx, messages, SchedulerTools())
		if err != nil {
			state.errs = append(state.errs, fmt.Sprintf("%s: %v", errLLMFailurePrefix, err))
			return metrics.ReasonLLMError
		}
		if strings.TrimSpace(resp.Content) != "" {
			state.lastText = resp.Content
		}

		actions := o.parseToolCalls(resp.ToolCalls, state)
		if len(actions) == 0 {
			return metrics.ReasonFinalText
		}

		actions = o.normalizeWeekScope(actions, state)
		o.injectReferenceDates(actions, state)

		signature := ActionsSignature(actions)
		if signature == state.prevSignature {
			if allReadOnly(actions) && !state.prevHadWrites {
				state.staleReadRepeat++
				if state.staleReadRepeat >= o.maxSameReadStreak {
					state.errs = append(state.errs, fmt.Sprintf(
						"%s連続して提案されたため処理を終了しました。", errStaleReadPrefix))
					return metrics.ReasonStaleReadStop
				}
			} else {
				state.errs = append(state.errs, errDuplicateActionStop)
				return metrics.ReasonDuplicateStop
			}
		} else {
			state.staleReadRepeat = 0
		}
		state.prevSignature = signature

		toDispatch, duplicateWarning := o.dedupWrites(actions, state)
		if len(toDispatch) == 0 {
			// Every action in the round was a replayed write. Feed an empty
			// round back and stop after two of them in a row.
			state.noProgress++
			state.trace = append(state.trace, TraceRound{
				Round:   round,
				Actions: actions,
				Meta:    map[string]any{"duplicate_warning": duplicateWarning, "skipped": len(actions)},
			})
			if state.noProgress >= 2 {
				state.errs = append(state.errs, errNoProgressStop)
				return metrics.ReasonNoProgressStop
			}
			o.appendFeedback(state, resp.Content, nil, Outcome{}, duplicateWarning)
			continue
		}
		state.noProgress = 0

		outcome := o.dispatcher.Apply(ctx, toDispatch, state.today)
		for _, action := range toDispatch {
			metrics.ActionsTotal.WithLabelValues(action.Type).Inc()
		}
		slog.Debug("agent: round dispatched",
			"run_id", runID,
			"round", round,
			"actions", len(toDispatch),
			"results", len(outcome.Results),
			"errors", len(outcome.Errors),
		)

		state.results = append(state.results, outcome.Results...)
		state.errs = append(state.errs, outcome.Errors...)
		state.modifiedIDs = append(state.modifiedIDs, outcome.ModifiedIDs...)
		state.prevHadWrites = hasWrite(toDispatch)

		o.advancePlan(state, toDispatch)
		o.rememberResolved(state, outcome.Resolved)

		state.trace = append(state.trace, TraceRound{
			Round:   round,
			Actions: toDispatch,
			Results: outcome.Results,
			Errors:  outcome.Errors,
		})

		o.appendFeedback(state, resp.Content, toDispatch, outcome, duplicateWarning)
	}

	state.errs = append(state.errs, fmt.Sprintf(
		"%s（%d ラウンド）に達したため処理を終了しました。", errRoundLimitPrefix, o.maxRounds))
	return metrics.ReasonRoundLimit
}

// parseToolCalls decodes tool calls into actions, peeling off the reserved
// review-decision tool.
func (o *Orchestrator) parseToolCalls(toolCalls []llm.ToolCall, state *runState) []Action {
	var actions []Action
	for _, call := range toolCalls {
		if call.Function.Name == ReviewDecisionToolName {
			action := ParseAction(call.Function.Name, call.Function.Arguments)
			state.decision = &ReviewDecision{
				ActionRequired: argBool(action.Args, "action_required", false),
				ShouldReply:    argBool(action.Args, "should_reply", false),
				Reply:          argString(action.Args, "reply"),
				Notes:          argString(action.Args, "notes"),
			}
			continue
		}
		actions = append(actions, ParseAction(call.Function.Name, call.Function.Arguments))
	}
	return actions
}

func allReadOnly(actions []Action) bool {
	for _, action := range actions {
		if !IsReadOnlyAction(action.Type) {
			return false
		}
	}
	return true
}

func hasWrite(actions []Action) bool {
	return !allReadOnly(actions)
}

// dedupWrites drops write actions whose fingerprint already executed in
// this run. Skips are silent; only a warning string is recorded.
func (o *Orchestrator) dedupWrites(actions []Action, state *runState) ([]Action, string) {
	var toDispatch []Action
	warning := ""
	for _, action := range actions {
		if IsReadOnlyAction(action.Type) {
			toDispatch = append(toDispatch, action)
			continue
		}
		fingerprint := action.Fingerprint()
		if state.writeFingerprints[fingerprint] {
			warning = fmt.Sprintf("%s: %s", errDuplicateWritePrefix, describeAction(action))
			continue
		}
		state.writeFingerprints[fingerprint] = true
		toDispatch = append(toDispatch, action)
	}
	return toDispatch, warning
}

// ---- week-scope normalization ----

var (
	weekTokenRe      = regexp.MustCompile(`今週|再来週|翌々週|来週|先週`)
	weekdayTokenRe   = regexp.MustCompile(`[月火水木金土日]曜`)
	scheduleNounRe   = regexp.MustCompile(`予定|スケジュール|タスク|日程`)
	confirmVerbRe    = regexp.MustCompile(`確認|見せ|教えて|一覧|表示|把握|知りたい|ある\?|ある？|入って`)
	weekTokenOffsets = map[string]int{"今週": 0, "来週": 1, "再来週": 2, "翌々週": 2, "先週": -1}
)

// normalizeWeekScope widens confirmation queries about a week to the full
// Monday..Sunday range. Without this a model tends to probe single days of
// the week one get_daily_summary at a time.
func (o *Orchestrator) normalizeWeekScope(actions []Action, state *runState) []Action {
	token := weekTokenRe.FindString(state.userMessage)
	if token == "" ||
		!scheduleNounRe.MatchString(state.userMessage) ||
		!confirmVerbRe.MatchString(state.userMessage) {
		return actions
	}

	base, err := dateparse.ParseDate(state.today)
	if err != nil {
		return actions
	}
	hasWeekday := weekdayTokenRe.MatchString(state.userMessage)

	for i, action := range actions {
		switch action.Type {
		case ActionGetDailySummary:
			// With an explicit weekday the single-day summary already is
			// what the user asked about.
			if hasWeekday {
				continue
			}
			weekStart, weekEnd := enclosingWeek(base, weekTokenOffsets[token])
			actions[i] = Action{Type: ActionListTasksInPeriod, Args: map[string]any{
				"start_date": weekStart,
				"end_date":   weekEnd,
			}}
		case ActionListTasksInPeriod:
			startDate := argString(action.Args, "start_date")
			endDate := argString(action.Args, "end_date")
			start, errS := dateparse.ParseDate(startDate)
			end, errE := dateparse.ParseDate(endDate)
			if errS != nil || errE != nil || end.Before(start) {
				continue
			}
			if span := int(end.Sub(start).Hours()/24) + 1; span < 6 {
				weekStart, weekEnd := enclosingWeek(start, 0)
				actions[i] = Action{Type: ActionListTasksInPeriod, Args: map[string]any{
					"start_date": weekStart,
					"end_date":   weekEnd,
				}}
			}
		}
	}
	return actions
}

func enclosingWeek(base time.Time, weekOffset int) (string, string) {
	monday := base.AddDate(0, 0, -dateparse.WeekdayIndexOf(base)+weekOffset*7)
	return monday.Format(dateparse.DateLayout), monday.AddDate(0, 0, 6).Format(dateparse.DateLayout)
}

// ---- reference-date injection ----

var referenceTokens = []string{
	"翌々日", "前々日", "同じ日", "その日", "同日", "当日", "翌日", "前日", "その", "それ",
}

func containsReferenceToken(expression string) bool {
	for _, token := range referenceTokens {
		if strings.Contains(expression, token) {
			return true
		}
	}
	return false
}

// injectReferenceDates anchors resolver calls like 「その翌日」 to the most
// recently resolved date of this run when the model omitted base_date.
func (o *Orchestrator) injectReferenceDates(actions []Action, state *runState) {
	if len(state.resolved) == 0 {
		return
	}
	anchor := state.resolved[len(state.resolved)-1].Date
	for _, action := range actions {
		if action.Type != ActionResolveExpression {
			continue
		}
		if !containsReferenceToken(argString(action.Args, "expression")) {
			continue
		}
		baseDate := strings.TrimSpace(argString(action.Args, "base_date"))
		if baseDate == "" || !isoDateStrictRe.MatchString(baseDate) {
			action.Args["base_date"] = anchor
		}
	}
}

// rememberResolved appends resolver results to the run memory, deduping by
// expression with most-recent-wins ordering.
func (o *Orchestrator) rememberResolved(state *runState, resolved []dateparse.Result) {
	for _, result := range resolved {
		kept := state.resolved[:0]
		for _, existing := range state.resolved {
			if existing.Expression != result.Expression {
				kept = append(kept, existing)
			}
		}
		state.resolved = append(kept, result)
	}
}

// ---- step-progress plan ----

type planStep struct {
	name    string
	matches map[string]bool
}

var (
	confirmTriggerRe   = regexp.MustCompile(`確認|見せて|一覧|表示|サマリー`)
	addTriggerRe       = regexp.MustCompile(`追加|入れて|登録`)
	completeTriggerRe  = regexp.MustCompile(`完了|終わったら|チェック`)
	appendLogTriggerRe = regexp.MustCompile(`日報.*追記|追記.*日報|日報.*メモ|メモ.*日報`)
	rescheduleRe       = regexp.MustCompile(`ずらして|後ろに|前倒し|時間.*変更|時刻.*変更`)
)

// inferPlan derives the ordered coarse steps the run is expected to take
// from the user's utterance.
func inferPlan(userMessage string) []planStep {
	var plan []planStep
	if dateparse.IsRelativeDatetimeText(userMessage) {
		plan = append(plan, planStep{name: "calculate", matches: map[string]bool{
			ActionResolveExpression:  true,
			ActionCalcDateOffset:     true,
			ActionCalcMonthBoundary:  true,
			ActionCalcNearestWeekday: true,
			ActionCalcWeekWeekday:    true,
			ActionCalcWeekRange:      true,
			ActionCalcTimeOffset:     true,
			ActionGetDateInfo:        true,
		}})
	}
	if confirmTriggerRe.MatchString(userMessage) {
		plan = append(plan, planStep{name: "confirm", matches: map[string]bool{
			ActionListTasksInPeriod: true,
			ActionGetDailySummary:   true,
			ActionGetDayLog:         true,
		}})
	}
	if addTriggerRe.MatchString(userMessage) {
		plan = append(plan, planStep{name: "add", matches: map[string]bool{
			ActionCreateCustomTask:   true,
			ActionCreateTasksInRange: true,
			ActionAddRoutine:         true,
			ActionAddStep:            true,
		}})
	}
	if completeTriggerRe.MatchString(userMessage) {
		plan = append(plan, planStep{name: "complete", matches: map[string]bool{
			ActionToggleCustomTask: true,
			ActionToggleStep:       true,
		}})
	}
	if appendLogTriggerRe.MatchString(userMessage) {
		plan = append(plan, planStep{name: "append_log", matches: map[string]bool{
			ActionAppendDayLog: true,
			ActionUpdateLog:    true,
		}})
	}
	if rescheduleRe.MatchString(userMessage) {
		plan = append(plan, planStep{name: "reschedule", matches: map[string]bool{
			ActionUpdateCustomTaskTime: true,
			ActionUpdateStepTime:       true,
		}})
	}
	return plan
}

func (o *Orchestrator) advancePlan(state *runState, executed []Action) {
	for _, action := range executed {
		if state.planIndex >= len(state.plan) {
			return
		}
		if state.plan[state.planIndex].matches[action.Type] {
			state.planIndex++
		}
	}
}

// ---- feedback ----

const coachingText = "追加操作が必要ならツールを続けて呼んでください。すべて完了したらツールを呼ばずに最終回答を返してください。同じ参照/計算アクションを繰り返さず、上記の結果を使って次の操作に進んでください。"

// appendFeedback records the round into the conversation: the assistant's
// own words plus a system message dumping what actually happened.
func (o *Orchestrator) appendFeedback(state *runState, assistantText string, executed []Action, outcome Outcome, duplicateWarning string) {
	text := strings.TrimSpace(assistantText)
	if text == "" {
		text = "了解しました。"
	}
	state.conversation = append(state.conversation, llm.AssistantMessage(text))

	var sb strings.Builder
	sb.WriteString("executed_actions:\n")
	if len(executed) == 0 {
		sb.WriteString("（なし）\n")
	}
	for _, action := range executed {
		sb.WriteString("- " + describeAction(action) + "\n")
	}

	sb.WriteString("execution_results:\n")
	if len(outcome.Results) == 0 {
		sb.WriteString("（なし）\n")
	}
	for _, result := range outcome.Results {
		sb.WriteString("- " + result + "\n")
	}

	if len(outcome.Errors) > 0 {
		sb.WriteString("execution_errors:\n")
		for _, e := range outcome.Errors {
			sb.WriteString("- " + e + "\n")
		}
	}

	if len(state.plan) > 0 {
		sb.WriteString("plan_checklist:\n")
		for i, step := range state.plan {
			mark := " "
			if i < state.planIndex {
				mark = "✓"
			}
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", mark, step.name))
		}
	}

	if len(state.resolved) > 0 {
		sb.WriteString("resolved_datetime_memory (最新3件):\n")
		start := len(state.resolved) - 3
		if start < 0 {
			start = 0
		}
		for _, result := range state.resolved[start:] {
			sb.WriteString(fmt.Sprintf("- 「%s」→ %s %s\n", result.Expression, result.Date, result.Time))
		}
	}

	if duplicateWarning != "" {
		sb.WriteString("duplicate_warning: " + duplicateWarning + "\n")
	}

	sb.WriteString(coachingText)
	state.conversation = append(state.conversation, llm.SystemPrompt(sb.String()))
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
