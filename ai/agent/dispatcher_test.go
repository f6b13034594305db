package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuhrw/schedsense/internal/profile"
	"github.com/kazuhrw/schedsense/store"
	"github.com/kazuhrw/schedsense/store/db/sqlite"
)

const testToday = "2026-02-12" // Thursday

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode: "dev",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = driver.Close()
	})
	s := store.New(driver, p)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func action(actionType string, args map[string]any) Action {
	if args == nil {
		args = map[string]any{}
	}
	return Action{Type: actionType, Args: args}
}

func TestApplyRejectsRelativeDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	outcome := d.Apply(ctx, []Action{
		action(ActionCreateCustomTask, map[string]any{"name": "買い物", "date": "3日後", "time": "10:00"}),
	}, testToday)

	assert.Empty(t, outcome.Results)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "resolve_schedule_expression")

	tasks, err := s.ListCustomTasks(ctx, &store.FindCustomTask{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestApplyRejectsRelativeTime(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(newTestStore(t))

	outcome := d.Apply(ctx, []Action{
		action(ActionCreateCustomTask, map[string]any{"name": "買い物", "date": "2026-02-15", "time": "30分後"}),
	}, testToday)

	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "resolve_schedule_expression")
}

func TestApplyCreateAndToggleCustomTask(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	created := d.Apply(ctx, []Action{
		action(ActionCreateCustomTask, map[string]any{"name": "歯医者", "date": "2026-02-13", "time": "10:00"}),
	}, testToday)
	require.Empty(t, created.Errors)
	require.Len(t, created.Results, 1)
	assert.Equal(t, "カスタムタスク「歯医者」を 2026-02-13 の 10:00 に追加しました。", created.Results[0])
	require.Len(t, created.ModifiedIDs, 1)
	assert.Equal(t, "item_custom_1", created.ModifiedIDs[0])

	toggled := d.Apply(ctx, []Action{
		action(ActionToggleCustomTask, map[string]any{"task_id": 1}),
	}, testToday)
	require.Empty(t, toggled.Errors)
	require.Len(t, toggled.Results, 1)
	assert.Equal(t, "「歯医者」を完了にしました。", toggled.Results[0])

	tasks, err := s.ListCustomTasks(ctx, &store.FindCustomTask{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Done)
}

func TestApplyCreateTasksInRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	outcome := d.Apply(ctx, []Action{
		action(ActionCreateTasksInRange, map[string]any{
			"name":       "散歩",
			"start_date": "2026-02-13",
			"end_date":   "2026-02-15",
			"time":       "07:00",
		}),
	}, testToday)
	require.Empty(t, outcome.Errors)
	require.Len(t, outcome.Results, 1)
	assert.Contains(t, outcome.Results[0], "3件")
	assert.Len(t, outcome.ModifiedIDs, 3)

	tasks, err := s.ListCustomTasks(ctx, &store.FindCustomTask{})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestApplyCreateTasksInRangeValidation(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(newTestStore(t))

	reversed := d.Apply(ctx, []Action{
		action(ActionCreateTasksInRange, map[string]any{
			"name":       "散歩",
			"start_date": "2026-02-15",
			"end_date":   "2026-02-13",
		}),
	}, testToday)
	require.Len(t, reversed.Errors, 1)
	assert.Contains(t, reversed.Errors[0], "開始日が終了日より後")

	tooLong := d.Apply(ctx, []Action{
		action(ActionCreateTasksInRange, map[string]any{
			"name":       "散歩",
			"start_date": "2026-01-01",
			"end_date":   "2027-06-01",
		}),
	}, testToday)
	require.Len(t, tooLong.Errors, 1)
	assert.Contains(t, tooLong.Errors[0], "期間が長すぎます")
}

func TestApplyBatchContinuesPastActionErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	outcome := d.Apply(ctx, []Action{
		action(ActionDeleteCustomTask, map[string]any{"task_id": 999}),
		action(ActionCreateCustomTask, map[string]any{"name": "歯医者", "date": "2026-02-13"}),
		action("teleport", nil),
	}, testToday)

	require.Len(t, outcome.Results, 1)
	require.Len(t, outcome.Errors, 2)
	assert.Contains(t, outcome.Errors[0], "カスタムタスクが見つかりません")
	assert.Equal(t, "未知のアクション: teleport", outcome.Errors[1])

	// The failed deletions did not abort the successful insert.
	tasks, err := s.ListCustomTasks(ctx, &store.FindCustomTask{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestApplyRoutineLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	setup := d.Apply(ctx, []Action{
		action(ActionAddRoutine, map[string]any{"name": "朝の運動", "days": "0,1,2,3,4"}),
		action(ActionAddStep, map[string]any{"routine_id": 1, "name": "ストレッチ", "time": "07:00", "category": "Lifestyle"}),
		action(ActionToggleStep, map[string]any{"step_id": 1, "date": "2026-02-12", "memo": "軽めに"}),
	}, testToday)
	require.Empty(t, setup.Errors)
	require.Len(t, setup.Results, 3)
	assert.Contains(t, setup.ModifiedIDs, "item_routine_1")

	logs, err := s.ListDailyLogs(ctx, &store.FindDailyLog{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Done)
	assert.Equal(t, "軽めに", logs[0].Memo)

	// Deleting the routine cascades to its step and the step's daily log.
	deleted := d.Apply(ctx, []Action{
		action(ActionDeleteRoutine, map[string]any{"routine_name": "朝の運動ルーチン"}),
	}, testToday)
	require.Empty(t, deleted.Errors)
	require.Len(t, deleted.Results, 1)
	assert.Equal(t, "ルーチン「朝の運動」を削除しました。", deleted.Results[0])

	routines, err := s.ListRoutines(ctx, &store.FindRoutine{})
	require.NoError(t, err)
	assert.Empty(t, routines)
	steps, err := s.ListSteps(ctx, &store.FindStep{})
	require.NoError(t, err)
	assert.Empty(t, steps)
	logs, err = s.ListDailyLogs(ctx, &store.FindDailyLog{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDeleteRoutineAmbiguousName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	setup := d.Apply(ctx, []Action{
		action(ActionAddRoutine, map[string]any{"name": "朝の運動"}),
		action(ActionAddRoutine, map[string]any{"name": "朝の読書"}),
	}, testToday)
	require.Empty(t, setup.Errors)

	outcome := d.Apply(ctx, []Action{
		action(ActionDeleteRoutine, map[string]any{"routine_name": "朝の"}),
	}, testToday)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "複数一致しました")
	assert.Contains(t, outcome.Errors[0], "朝の運動")
	assert.Contains(t, outcome.Errors[0], "朝の読書")

	routines, err := s.ListRoutines(ctx, &store.FindRoutine{})
	require.NoError(t, err)
	assert.Len(t, routines, 2)
}

func TestDeleteRoutineAllToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	setup := d.Apply(ctx, []Action{
		action(ActionAddRoutine, map[string]any{"name": "朝の運動"}),
		action(ActionAddRoutine, map[string]any{"name": "夜の片付け"}),
	}, testToday)
	require.Empty(t, setup.Errors)

	outcome := d.Apply(ctx, []Action{
		action(ActionDeleteRoutine, map[string]any{"routine_name": "全部"}),
	}, testToday)
	require.Empty(t, outcome.Errors)
	require.Len(t, outcome.Results, 1)
	assert.Contains(t, outcome.Results[0], "すべてのルーチン（2件）")

	routines, err := s.ListRoutines(ctx, &store.FindRoutine{})
	require.NoError(t, err)
	assert.Empty(t, routines)
}

func TestApplyDayLogWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	first := d.Apply(ctx, []Action{
		action(ActionUpdateLog, map[string]any{"content": "午前は集中できた"}),
	}, testToday)
	require.Empty(t, first.Errors)
	assert.Contains(t, first.ModifiedIDs, "daily-log-card")

	second := d.Apply(ctx, []Action{
		action(ActionAppendDayLog, map[string]any{"content": "午後は散歩"}),
	}, testToday)
	require.Empty(t, second.Errors)

	dayLog, err := s.GetDayLog(ctx, testToday)
	require.NoError(t, err)
	require.NotNil(t, dayLog)
	assert.Equal(t, "午前は集中できた\n午後は散歩", dayLog.Content)

	// update_log overwrites.
	third := d.Apply(ctx, []Action{
		action(ActionUpdateLog, map[string]any{"content": "まとめ直し"}),
	}, testToday)
	require.Empty(t, third.Errors)
	dayLog, err = s.GetDayLog(ctx, testToday)
	require.NoError(t, err)
	assert.Equal(t, "まとめ直し", dayLog.Content)
}

func TestApplyResolveExpression(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(newTestStore(t))

	outcome := d.Apply(ctx, []Action{
		action(ActionResolveExpression, map[string]any{"expression": "再来週火曜の11時"}),
	}, testToday)
	require.Empty(t, outcome.Errors)
	require.Len(t, outcome.Results, 1)
	assert.Contains(t, outcome.Results[0], "計算結果:")
	assert.Contains(t, outcome.Results[0], "date=2026-02-24")
	assert.Contains(t, outcome.Results[0], "time=11:00")

	require.Len(t, outcome.Resolved, 1)
	assert.Equal(t, "2026-02-24", outcome.Resolved[0].Date)
}

func TestApplyReadOnlyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	seed := d.Apply(ctx, []Action{
		action(ActionCreateCustomTask, map[string]any{"name": "歯医者", "date": testToday, "time": "10:00"}),
	}, testToday)
	require.Empty(t, seed.Errors)

	summary := action(ActionGetDailySummary, map[string]any{"date": testToday})
	first := d.Apply(ctx, []Action{summary}, testToday)
	second := d.Apply(ctx, []Action{summary}, testToday)
	require.Empty(t, first.Errors)
	assert.Equal(t, first.Results, second.Results)
	assert.Contains(t, first.Results[0], "のサマリー:")
	assert.Contains(t, first.Results[0], "歯医者")
}

func TestListTasksInPeriodIncludesRoutineSteps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	setup := d.Apply(ctx, []Action{
		// Thursday only.
		action(ActionAddRoutine, map[string]any{"name": "木曜の掃除", "days": "3"}),
		action(ActionAddStep, map[string]any{"routine_id": 1, "name": "床掃除", "time": "08:00"}),
		action(ActionCreateCustomTask, map[string]any{"name": "歯医者", "date": "2026-02-13", "time": "10:00"}),
	}, testToday)
	require.Empty(t, setup.Errors)

	outcome := d.Apply(ctx, []Action{
		action(ActionListTasksInPeriod, map[string]any{"start_date": "2026-02-09", "end_date": "2026-02-15"}),
	}, testToday)
	require.Empty(t, outcome.Errors)
	require.Len(t, outcome.Results, 1)
	listing := outcome.Results[0]

	assert.Contains(t, listing, "期間 2026-02-09〜2026-02-15 の予定:")
	// The step surfaces on the Thursday of the range, not on other days.
	assert.Contains(t, listing, "[ステップ:1] 2026-02-12 08:00 床掃除")
	assert.NotContains(t, listing, "[ステップ:1] 2026-02-13")
	assert.Contains(t, listing, "[カスタム:1] 2026-02-13 10:00 歯医者")
}

func TestModifiedIDsExcludeDeletions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	seed := d.Apply(ctx, []Action{
		action(ActionCreateCustomTask, map[string]any{"name": "歯医者", "date": testToday}),
	}, testToday)
	require.Empty(t, seed.Errors)

	deleted := d.Apply(ctx, []Action{
		action(ActionDeleteCustomTask, map[string]any{"task_id": 1}),
	}, testToday)
	require.Empty(t, deleted.Errors)
	assert.Empty(t, deleted.ModifiedIDs)
}
