package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuhrw/schedsense/store"
)

func TestContextBuilderEmptyWorld(t *testing.T) {
	ctx := context.Background()
	b := NewContextBuilder(newTestStore(t))

	block, err := b.Build(ctx, testToday)
	require.NoError(t, err)

	assert.Contains(t, block, "today_date: 2026-02-12 (木曜日)")
	for _, section := range []string{"routines:", "today_custom_tasks:", "today_step_logs:", "recent_day_logs:"} {
		assert.Contains(t, block, section)
	}
	assert.Equal(t, 4, strings.Count(block, "(none)"))
}

func TestContextBuilderSectionsAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := NewDispatcher(s)

	setup := d.Apply(ctx, []Action{
		action(ActionAddRoutine, map[string]any{"name": "朝の運動", "days": "0,1,2,3,4"}),
		// Steps are listed sorted by time, not by insertion order.
		action(ActionAddStep, map[string]any{"routine_id": 1, "name": "ジョギング", "time": "07:30", "category": "Lifestyle"}),
		action(ActionAddStep, map[string]any{"routine_id": 1, "name": "ストレッチ", "time": "07:00", "category": "Lifestyle"}),
		action(ActionAddRoutine, map[string]any{"name": "空のルーチン", "days": "5,6"}),
		action(ActionCreateCustomTask, map[string]any{"name": "歯医者", "date": testToday, "time": "10:00"}),
		action(ActionToggleStep, map[string]any{"step_id": 2, "date": testToday}),
		action(ActionUpdateLog, map[string]any{"date": testToday, "content": "集中できた"}),
		action(ActionUpdateLog, map[string]any{"date": "2026-02-11", "content": "昨日のメモ"}),
	}, testToday)
	require.Empty(t, setup.Errors)

	b := NewContextBuilder(s)
	block, err := b.Build(ctx, testToday)
	require.NoError(t, err)

	assert.Contains(t, block, "- Routine 1: 朝の運動 | days=0,1,2,3,4 | [2] 07:00 ストレッチ (Lifestyle), [1] 07:30 ジョギング (Lifestyle)")
	assert.Contains(t, block, "- Routine 2: 空のルーチン | days=5,6 | no steps")
	assert.Contains(t, block, "- [1] 10:00 歯医者 (未完了)")
	assert.Contains(t, block, "- step 2: 完了")
	assert.Contains(t, block, "- 2026-02-12: 集中できた")
	assert.Contains(t, block, "- 2026-02-11: 昨日のメモ")

	// Sections appear in their fixed order.
	order := []string{"today_date:", "routines:", "today_custom_tasks:", "today_step_logs:", "recent_day_logs:"}
	last := -1
	for _, section := range order {
		idx := strings.Index(block, section)
		require.GreaterOrEqual(t, idx, 0, "missing section %s", section)
		assert.Greater(t, idx, last, "section %s out of order", section)
		last = idx
	}
}

func TestContextBuilderRecentDayLogsWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Three days back falls outside the recent window.
	for _, entry := range []struct{ date, content string }{
		{"2026-02-09", "古すぎるメモ"},
		{"2026-02-10", "一昨日のメモ"},
		{"2026-02-12", "今日のメモ"},
	} {
		_, err := s.UpsertDayLog(ctx, &store.UpsertDayLog{Date: entry.date, Content: entry.content})
		require.NoError(t, err)
	}

	block, err := NewContextBuilder(s).Build(ctx, testToday)
	require.NoError(t, err)
	assert.Contains(t, block, "今日のメモ")
	assert.Contains(t, block, "一昨日のメモ")
	assert.NotContains(t, block, "古すぎるメモ")
}
