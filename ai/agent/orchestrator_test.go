package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuhrw/schedsense/ai/llm"
	"github.com/kazuhrw/schedsense/internal/profile"
	"github.com/kazuhrw/schedsense/store"
)

// scriptedLLM replays a fixed sequence of tool-call rounds. Once the script
// is exhausted it answers with plain text, ending the loop.
type scriptedLLM struct {
	script        []*llm.ChatResponse
	finalText     string
	summarizerOut string
	toolCalls     int
	chatCalls     int
}

func (s *scriptedLLM) Chat(_ context.Context, _ []llm.Message) (string, error) {
	s.chatCalls++
	return s.summarizerOut, nil
}

func (s *scriptedLLM) ChatWithTools(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, error) {
	s.toolCalls++
	if s.toolCalls <= len(s.script) {
		return s.script[s.toolCalls-1], nil
	}
	text := s.finalText
	if text == "" {
		text = "完了しました。"
	}
	return &llm.ChatResponse{Content: text}, nil
}

func toolCall(name string, args map[string]any) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{
		ID:   "call",
		Type: "function",
		Function: llm.FunctionCall{
			Name:      name,
			Arguments: string(raw),
		},
	}
}

func toolRound(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{ToolCalls: calls}
}

func newTestOrchestrator(t *testing.T, s *store.Store, svc llm.Service, maxSameReadStreak int) *Orchestrator {
	t.Helper()
	return NewOrchestrator(s, svc, &profile.Profile{
		MaxActionRounds:   10,
		MaxSameReadStreak: maxSameReadStreak,
	})
}

func TestRunFinalTextOnly(t *testing.T) {
	svc := &scriptedLLM{finalText: "こんにちは！何をしましょうか？"}
	o := newTestOrchestrator(t, newTestStore(t), svc, 10)

	result := o.Run(context.Background(), []llm.Message{llm.UserMessage("こんにちは")}, testToday)

	assert.Equal(t, "こんにちは！何をしましょうか？", result.Reply)
	assert.False(t, result.ShouldRefresh)
	assert.Empty(t, result.ModifiedIDs)
	assert.Empty(t, result.Trace)
	assert.Equal(t, 1, svc.toolCalls)
	// Nothing executed, so the summarizer is never consulted.
	assert.Equal(t, 0, svc.chatCalls)
}

func TestRunWeekScopeNormalization(t *testing.T) {
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(toolCall(ActionGetDailySummary, map[string]any{"date": "2026-02-26"})),
		},
		summarizerOut: "📋 再来週の予定はこちらです！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("再来週の予定を確認して")}, testToday)

	// The single-day probe was widened to the full Monday..Sunday window
	// two weeks out.
	require.Len(t, result.Trace, 1)
	require.Len(t, result.Trace[0].Actions, 1)
	rewritten := result.Trace[0].Actions[0]
	assert.Equal(t, ActionListTasksInPeriod, rewritten.Type)
	assert.Equal(t, "2026-02-23", rewritten.Args["start_date"])
	assert.Equal(t, "2026-03-01", rewritten.Args["end_date"])

	assert.Equal(t, "📋 再来週の予定はこちらです！", result.Reply)
	assert.False(t, result.ShouldRefresh)
}

func TestRunWeekScopeExpandsShortPeriods(t *testing.T) {
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(toolCall(ActionResolveExpression, map[string]any{"expression": "再来週火曜"})),
			toolRound(toolCall(ActionListTasksInPeriod, map[string]any{
				"start_date": "2026-02-24",
				"end_date":   "2026-02-24",
			})),
		},
		summarizerOut: "📋 その週の予定です！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("再来週火曜の11時の予定を確認して")}, testToday)

	require.Len(t, result.Trace, 2)
	expanded := result.Trace[1].Actions[0]
	assert.Equal(t, ActionListTasksInPeriod, expanded.Type)
	assert.Equal(t, "2026-02-23", expanded.Args["start_date"])
	assert.Equal(t, "2026-03-01", expanded.Args["end_date"])
}

func TestRunDuplicateWriteSkippedWithinRound(t *testing.T) {
	create := map[string]any{"name": "歯医者", "date": "2026-02-13", "time": "10:00"}
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(
				toolCall(ActionCreateCustomTask, create),
				toolCall(ActionCreateCustomTask, create),
			),
		},
		summarizerOut: "📅 追加しました！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("明日10時に歯医者を追加して")}, testToday)

	tasks, err := s.ListCustomTasks(context.Background(), &store.FindCustomTask{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "歯医者", tasks[0].Name)

	require.Len(t, result.Trace, 1)
	assert.Len(t, result.Trace[0].Actions, 1)
	assert.True(t, result.ShouldRefresh)
	assert.Equal(t, []string{"item_custom_1"}, result.ModifiedIDs)
}

func TestRunNoProgressStopOnReplayedWrites(t *testing.T) {
	createA := map[string]any{"name": "A", "date": "2026-02-13", "time": "09:00"}
	createB := map[string]any{"name": "B", "date": "2026-02-13", "time": "10:00"}
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(toolCall(ActionCreateCustomTask, createA), toolCall(ActionCreateCustomTask, createB)),
			// Replays under varying signatures so the duplicate-signature
			// guard stays quiet; the fingerprint dedup empties both rounds.
			toolRound(toolCall(ActionCreateCustomTask, createA)),
			toolRound(toolCall(ActionCreateCustomTask, createB)),
			toolRound(toolCall(ActionCreateCustomTask, createA)),
		},
		summarizerOut: "📅 追加しました！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("明日タスクを追加して")}, testToday)

	// Two inserts from round one; the replays were skipped and two
	// consecutive empty rounds ended the loop.
	tasks, err := s.ListCustomTasks(context.Background(), &store.FindCustomTask{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Equal(t, 3, svc.toolCalls)
	// The stop is internal; the user still gets the friendly summary.
	assert.Equal(t, "📅 追加しました！", result.Reply)
	assert.NotContains(t, result.Reply, "進展")
}

func TestRunStaleReadStop(t *testing.T) {
	read := toolRound(toolCall(ActionGetDailySummary, map[string]any{"date": testToday}))
	svc := &scriptedLLM{
		script:        []*llm.ChatResponse{read, read, read, read, read, read},
		summarizerOut: "📋 今日の予定を確認しました！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 2)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("今日の予定は？")}, testToday)

	// Round 1 establishes the signature; rounds 2 and 3 repeat it until
	// the streak cap fires.
	assert.Equal(t, 3, svc.toolCalls)
	assert.Equal(t, "📋 今日の予定を確認しました！", result.Reply)
	assert.NotContains(t, result.Reply, "同じ参照")
	assert.False(t, result.ShouldRefresh)
}

func TestRunDuplicateActionStopOnRepeatedWriteSignature(t *testing.T) {
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(
				toolCall(ActionCreateCustomTask, map[string]any{"name": "A", "date": "2026-02-13"}),
				toolCall(ActionGetDailySummary, map[string]any{"date": testToday}),
			),
			toolRound(
				toolCall(ActionCreateCustomTask, map[string]any{"name": "A", "date": "2026-02-13"}),
				toolCall(ActionGetDailySummary, map[string]any{"date": testToday}),
			),
		},
		summarizerOut: "追加済みです！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("明日タスクAを追加して")}, testToday)

	assert.Equal(t, 2, svc.toolCalls)
	tasks, err := s.ListCustomTasks(context.Background(), &store.FindCustomTask{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.NotContains(t, result.Reply, "重複実行")
}

func TestRunRelativeDateRejectedEndToEnd(t *testing.T) {
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(toolCall(ActionCreateCustomTask, map[string]any{
				"name": "買い物", "date": "3日後", "time": "10:00",
			})),
		},
		summarizerOut: "日付の指定がうまくいきませんでした。もう一度教えてください！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("3日後の10時に買い物を追加")}, testToday)

	tasks, err := s.ListCustomTasks(context.Background(), &store.FindCustomTask{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.False(t, result.ShouldRefresh)
	require.Len(t, result.Trace, 1)
	require.Len(t, result.Trace[0].Errors, 1)
	assert.Contains(t, result.Trace[0].Errors[0], "resolve_schedule_expression")
	assert.Equal(t, "日付の指定がうまくいきませんでした。もう一度教えてください！", result.Reply)
}

func TestRunReferenceDateInjection(t *testing.T) {
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(toolCall(ActionResolveExpression, map[string]any{"expression": "明日"})),
			// No base_date: the run's resolved memory supplies the anchor.
			toolRound(toolCall(ActionResolveExpression, map[string]any{"expression": "その翌日"})),
		},
		summarizerOut: "計算しました！",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("明日とその翌日を教えて")}, testToday)

	require.Len(t, result.Trace, 2)
	injected := result.Trace[1].Actions[0]
	assert.Equal(t, "2026-02-13", injected.Args["base_date"])
	// 「その翌日」 anchored on 2026-02-13 resolves to 2026-02-14.
	require.Len(t, result.Trace[1].Results, 1)
	assert.Contains(t, result.Trace[1].Results[0], "date=2026-02-14")
}

func TestRunRoundLimit(t *testing.T) {
	// Alternating distinct writes keep the loop busy until the cap.
	var script []*llm.ChatResponse
	for i := 0; i < 12; i++ {
		name := "タスク"
		if i%2 == 0 {
			name = "別タスク"
		}
		script = append(script, toolRound(toolCall(ActionCreateCustomTask, map[string]any{
			"name": name, "date": "2026-02-13", "time": fmt.Sprintf("%02d:00", i),
		})))
	}
	svc := &scriptedLLM{script: script, summarizerOut: "たくさん追加しました！"}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	result := o.Run(context.Background(),
		[]llm.Message{llm.UserMessage("タスクをたくさん追加して")}, testToday)

	assert.Equal(t, 10, svc.toolCalls)
	assert.Len(t, result.Trace, 10)
	assert.NotContains(t, result.Reply, "上限")
}

func TestRunTracePersistsThroughChatHistory(t *testing.T) {
	svc := &scriptedLLM{
		script: []*llm.ChatResponse{
			toolRound(toolCall(ActionCreateCustomTask, map[string]any{
				"name": "歯医者", "date": "2026-02-13", "time": "10:00",
			})),
		},
		summarizerOut: "保存済み",
	}
	s := newTestStore(t)
	o := newTestOrchestrator(t, s, svc, 10)

	ctx := context.Background()
	result := o.Run(ctx, []llm.Message{llm.UserMessage("明日10時に歯医者")}, testToday)

	_, err := s.CreateChatMessage(ctx, &store.ChatHistory{
		Role:    store.ChatRoleAssistant,
		Content: AttachExecutionTrace(result.Reply, result.Trace),
	})
	require.NoError(t, err)

	messages, err := s.ListChatMessages(ctx, &store.FindChatHistory{})
	require.NoError(t, err)
	require.Len(t, messages, 1)

	content, trace := ExtractExecutionTrace(messages[0].Content)
	assert.Equal(t, "保存済み", content)
	require.Len(t, trace, 1)
	require.NotEmpty(t, trace[0].Actions)
	assert.Equal(t, ActionCreateCustomTask, trace[0].Actions[0].Type)
}
