package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kazuhrw/schedsense/ai/llm"
)

// Action type names. These are exactly the tool names exposed to the LLM.
const (
	// Calculators and the expression resolver.
	ActionCalcDateOffset     = "calc_date_offset"
	ActionCalcMonthBoundary  = "calc_month_boundary"
	ActionCalcNearestWeekday = "calc_nearest_weekday"
	ActionCalcWeekWeekday    = "calc_week_weekday"
	ActionCalcWeekRange      = "calc_week_range"
	ActionCalcTimeOffset     = "calc_time_offset"
	ActionGetDateInfo        = "get_date_info"
	ActionResolveExpression  = "resolve_schedule_expression"

	// Reads.
	ActionGetDayLog         = "get_day_log"
	ActionListTasksInPeriod = "list_tasks_in_period"
	ActionGetDailySummary   = "get_daily_summary"

	// Custom task writes.
	ActionCreateCustomTask     = "create_custom_task"
	ActionCreateTasksInRange   = "create_tasks_in_range"
	ActionDeleteCustomTask     = "delete_custom_task"
	ActionToggleCustomTask     = "toggle_custom_task"
	ActionUpdateCustomTaskTime = "update_custom_task_time"
	ActionRenameCustomTask     = "rename_custom_task"
	ActionUpdateCustomTaskMemo = "update_custom_task_memo"

	// Day log writes.
	ActionUpdateLog    = "update_log"
	ActionAppendDayLog = "append_day_log"

	// Routine and step writes.
	ActionAddRoutine        = "add_routine"
	ActionDeleteRoutine     = "delete_routine"
	ActionUpdateRoutineDays = "update_routine_days"
	ActionAddStep           = "add_step"
	ActionDeleteStep        = "delete_step"
	ActionToggleStep        = "toggle_step"
	ActionUpdateStepTime    = "update_step_time"
	ActionRenameStep        = "rename_step"
	ActionUpdateStepMemo    = "update_step_memo"
)

// ReviewDecisionToolName is reserved for review flows. A call to it is
// captured as a decision object, never dispatched as an action.
const ReviewDecisionToolName = "set_review_outcome"

// readOnlyActions never mark the transaction dirty and are exempt from
// write dedup.
var readOnlyActions = map[string]bool{
	ActionCalcDateOffset:     true,
	ActionCalcMonthBoundary:  true,
	ActionCalcNearestWeekday: true,
	ActionCalcWeekWeekday:    true,
	ActionCalcWeekRange:      true,
	ActionCalcTimeOffset:     true,
	ActionGetDateInfo:        true,
	ActionGetDayLog:          true,
	ActionListTasksInPeriod:  true,
	ActionGetDailySummary:    true,
}

// IsReadOnlyAction reports whether the action type is in the read-only set.
func IsReadOnlyAction(actionType string) bool {
	return readOnlyActions[actionType]
}

// Action is one tool call proposed by the LLM, with decoded arguments.
type Action struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// ParseAction decodes a tool call's JSON arguments into an Action.
func ParseAction(name, arguments string) Action {
	args := map[string]any{}
	if strings.TrimSpace(arguments) != "" {
		// Malformed arguments leave Args empty; the dispatcher reports the
		// missing fields in Japanese.
		_ = json.Unmarshal([]byte(arguments), &args)
	}
	return Action{Type: name, Args: args}
}

// Fingerprint is the canonical signature of one action. json.Marshal on a
// map emits keys in sorted order, which keeps fingerprints stable across
// argument orderings.
func (a Action) Fingerprint() string {
	raw, err := json.Marshal(a.Args)
	if err != nil {
		raw = []byte("{}")
	}
	return a.Type + ":" + string(raw)
}

// ActionsSignature is the canonical signature of a whole proposal round.
func ActionsSignature(actions []Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.Fingerprint()
	}
	return strings.Join(parts, "|")
}

// Argument accessors. Tool-call arguments arrive as generic JSON, so
// numbers may be float64 or numeric strings depending on the provider.

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case float64:
			if t == float64(int64(t)) {
				return strconv.FormatInt(int64(t), 10)
			}
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

func argInt(args map[string]any, key string) (int, bool) {
	switch t := args[key].(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func argBool(args map[string]any, key string, def bool) bool {
	switch t := args[key].(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if s == "true" || s == "1" || s == "yes" {
			return true
		}
		if s == "false" || s == "0" || s == "no" {
			return false
		}
	case float64:
		return t != 0
	}
	return def
}

func hasArg(args map[string]any, key string) bool {
	_, ok := args[key]
	return ok
}

// schema builds a JSON-Schema string for a tool's parameters.
func schema(properties map[string]any, required ...string) string {
	if required == nil {
		required = []string{}
	}
	raw, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
	return string(raw)
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func enumProp(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

// SchedulerTools returns the full tool catalog handed to the LLM every round.
func SchedulerTools() []llm.ToolDescriptor {
	dateDesc := "日付 (YYYY-MM-DD)"
	timeDesc := "時刻 (HH:MM)"

	return []llm.ToolDescriptor{
		{
			Name:        ActionResolveExpression,
			Description: "「明日」「再来週火曜の11時」のような相対的な日時表現を絶対的な日付・時刻に解決する。相対表現を含む操作の前に必ず呼ぶこと。",
			Parameters: schema(map[string]any{
				"expression":   prop("string", "解決したい日時表現（例: 明日の10時, 再来週火曜）"),
				"base_date":    prop("string", "基準日 (YYYY-MM-DD)。省略時は今日。"),
				"base_time":    prop("string", "基準時刻 (HH:MM)。相対時刻の計算に使う。"),
				"default_time": prop("string", "表現に時刻がない場合に使う時刻 (HH:MM)"),
			}, "expression"),
		},
		{
			Name:        ActionCalcDateOffset,
			Description: "基準日に日数オフセットを加算した日付を返す。",
			Parameters: schema(map[string]any{
				"base_date":   prop("string", "基準日 (YYYY-MM-DD)"),
				"offset_days": prop("integer", "日数オフセット（負数で過去）"),
			}, "base_date", "offset_days"),
		},
		{
			Name:        ActionCalcMonthBoundary,
			Description: "指定した年月の月初または月末の日付を返す。",
			Parameters: schema(map[string]any{
				"year":     prop("integer", "年"),
				"month":    prop("integer", "月 (1-12)"),
				"boundary": enumProp("start=月初, end=月末", "start", "end"),
			}, "year", "month", "boundary"),
		},
		{
			Name:        ActionCalcNearestWeekday,
			Description: "基準日から前方または後方で最も近い指定曜日の日付を返す。基準日自身も候補に含む。",
			Parameters: schema(map[string]any{
				"base_date": prop("string", "基準日 (YYYY-MM-DD)"),
				"weekday":   prop("integer", "曜日 (0=月曜 .. 6=日曜)"),
				"direction": enumProp("探索方向", "forward", "backward"),
			}, "base_date", "weekday", "direction"),
		},
		{
			Name:        ActionCalcWeekWeekday,
			Description: "基準日の週（月曜起点）から week_offset 週先の指定曜日の日付を返す。",
			Parameters: schema(map[string]any{
				"base_date":   prop("string", "基準日 (YYYY-MM-DD)"),
				"week_offset": prop("integer", "週オフセット (0=今週, 1=来週, 2=再来週)"),
				"weekday":     prop("integer", "曜日 (0=月曜 .. 6=日曜)"),
			}, "base_date", "week_offset", "weekday"),
		},
		{
			Name:        ActionCalcWeekRange,
			Description: "基準日を含む週の月曜から日曜までの範囲を返す。",
			Parameters: schema(map[string]any{
				"base_date": prop("string", "基準日 (YYYY-MM-DD)"),
			}, "base_date"),
		},
		{
			Name:        ActionCalcTimeOffset,
			Description: "基準日時に分オフセットを加算した日時を返す。日をまたぐ計算に対応。",
			Parameters: schema(map[string]any{
				"base_date":      prop("string", "基準日 (YYYY-MM-DD)"),
				"base_time":      prop("string", "基準時刻 (HH:MM)"),
				"offset_minutes": prop("integer", "分オフセット（負数で過去）"),
			}, "base_date", "base_time", "offset_minutes"),
		},
		{
			Name:        ActionGetDateInfo,
			Description: "日付の曜日と年月日の分解情報を返す。",
			Parameters: schema(map[string]any{
				"date": prop("string", dateDesc),
			}, "date"),
		},
		{
			Name:        ActionGetDayLog,
			Description: "指定日の日報（デイログ）本文を取得する。",
			Parameters: schema(map[string]any{
				"date": prop("string", dateDesc+"。省略時は今日。"),
			}),
		},
		{
			Name:        ActionListTasksInPeriod,
			Description: "期間内のカスタムタスクと、各日の曜日に該当するルーチンステップ（完了状態つき）を一覧する。",
			Parameters: schema(map[string]any{
				"start_date": prop("string", "開始日 (YYYY-MM-DD)"),
				"end_date":   prop("string", "終了日 (YYYY-MM-DD)"),
			}, "start_date", "end_date"),
		},
		{
			Name:        ActionGetDailySummary,
			Description: "指定日の日報・カスタムタスク・ルーチンステップのサマリーを返す。",
			Parameters: schema(map[string]any{
				"date": prop("string", dateDesc+"。省略時は今日。"),
			}),
		},
		{
			Name:        ActionCreateCustomTask,
			Description: "カスタムタスクを追加する。date と time は絶対値のみ。相対表現は先に resolve_schedule_expression で解決すること。",
			Parameters: schema(map[string]any{
				"name": prop("string", "タスク名"),
				"date": prop("string", dateDesc+"。省略時は今日。"),
				"time": prop("string", timeDesc+"。省略時は 00:00。"),
				"memo": prop("string", "メモ"),
			}, "name"),
		},
		{
			Name:        ActionCreateTasksInRange,
			Description: "開始日から終了日まで（両端含む）毎日同名のカスタムタスクを追加する。期間は365日以内。",
			Parameters: schema(map[string]any{
				"name":       prop("string", "タスク名"),
				"start_date": prop("string", "開始日 (YYYY-MM-DD)"),
				"end_date":   prop("string", "終了日 (YYYY-MM-DD)"),
				"time":       prop("string", timeDesc),
				"memo":       prop("string", "メモ"),
			}, "name", "start_date", "end_date"),
		},
		{
			Name:        ActionDeleteCustomTask,
			Description: "カスタムタスクを削除する。",
			Parameters: schema(map[string]any{
				"task_id": prop("integer", "タスクID"),
			}, "task_id"),
		},
		{
			Name:        ActionToggleCustomTask,
			Description: "カスタムタスクの完了状態を変更する。",
			Parameters: schema(map[string]any{
				"task_id": prop("integer", "タスクID"),
				"done":    prop("boolean", "完了なら true（省略時 true）"),
				"memo":    prop("string", "メモ（任意）"),
			}, "task_id"),
		},
		{
			Name:        ActionUpdateCustomTaskTime,
			Description: "カスタムタスクの時刻を変更する。",
			Parameters: schema(map[string]any{
				"task_id":  prop("integer", "タスクID"),
				"new_time": prop("string", timeDesc),
			}, "task_id", "new_time"),
		},
		{
			Name:        ActionRenameCustomTask,
			Description: "カスタムタスクの名前を変更する。",
			Parameters: schema(map[string]any{
				"task_id":  prop("integer", "タスクID"),
				"new_name": prop("string", "新しいタスク名"),
			}, "task_id", "new_name"),
		},
		{
			Name:        ActionUpdateCustomTaskMemo,
			Description: "カスタムタスクのメモを更新する。空文字列でクリア。",
			Parameters: schema(map[string]any{
				"task_id":  prop("integer", "タスクID"),
				"new_memo": prop("string", "新しいメモ"),
			}, "task_id", "new_memo"),
		},
		{
			Name:        ActionUpdateLog,
			Description: "指定日の日報本文を上書きする。",
			Parameters: schema(map[string]any{
				"date":    prop("string", dateDesc+"。省略時は今日。"),
				"content": prop("string", "日報本文"),
			}, "content"),
		},
		{
			Name:        ActionAppendDayLog,
			Description: "指定日の日報に追記する。日報がなければ新規作成。",
			Parameters: schema(map[string]any{
				"date":    prop("string", dateDesc+"。省略時は今日。"),
				"content": prop("string", "追記する本文"),
			}, "content"),
		},
		{
			Name:        ActionAddRoutine,
			Description: "ルーチンを追加する。days は曜日インデックス (0=月曜 .. 6=日曜) のカンマ区切り。",
			Parameters: schema(map[string]any{
				"name":        prop("string", "ルーチン名"),
				"days":        prop("string", "実施曜日（例: 0,1,2,3,4）。省略時は平日。"),
				"description": prop("string", "説明"),
			}, "name"),
		},
		{
			Name:        ActionDeleteRoutine,
			Description: "ルーチンをIDまたは名前で削除する。all=true または scope=all で全ルーチンを削除。",
			Parameters: schema(map[string]any{
				"routine_id":   prop("integer", "ルーチンID"),
				"routine_name": prop("string", "ルーチン名（部分一致可）"),
				"scope":        prop("string", "all で全削除"),
				"all":          prop("boolean", "true で全削除"),
			}),
		},
		{
			Name:        ActionUpdateRoutineDays,
			Description: "ルーチンの実施曜日を変更する。",
			Parameters: schema(map[string]any{
				"routine_id": prop("integer", "ルーチンID"),
				"new_days":   prop("string", "新しい曜日セット（例: 0,2,4）"),
			}, "routine_id", "new_days"),
		},
		{
			Name:        ActionAddStep,
			Description: "ルーチンにステップを追加する。",
			Parameters: schema(map[string]any{
				"routine_id": prop("integer", "ルーチンID"),
				"name":       prop("string", "ステップ名"),
				"time":       prop("string", timeDesc+"。省略時は 00:00。"),
				"category":   enumProp("カテゴリ", "IoT", "Browser", "Lifestyle", "Other"),
			}, "routine_id", "name"),
		},
		{
			Name:        ActionDeleteStep,
			Description: "ステップを削除する。",
			Parameters: schema(map[string]any{
				"step_id": prop("integer", "ステップID"),
			}, "step_id"),
		},
		{
			Name:        ActionToggleStep,
			Description: "指定日のステップ完了状態を記録する。メモも同時に記録できる。",
			Parameters: schema(map[string]any{
				"step_id": prop("integer", "ステップID"),
				"date":    prop("string", dateDesc+"。省略時は今日。"),
				"done":    prop("boolean", "完了なら true（省略時 true）"),
				"memo":    prop("string", "その日のメモ（任意）"),
			}, "step_id"),
		},
		{
			Name:        ActionUpdateStepTime,
			Description: "ステップの時刻を変更する。",
			Parameters: schema(map[string]any{
				"step_id":  prop("integer", "ステップID"),
				"new_time": prop("string", timeDesc),
			}, "step_id", "new_time"),
		},
		{
			Name:        ActionRenameStep,
			Description: "ステップの名前を変更する。",
			Parameters: schema(map[string]any{
				"step_id":  prop("integer", "ステップID"),
				"new_name": prop("string", "新しいステップ名"),
			}, "step_id", "new_name"),
		},
		{
			Name:        ActionUpdateStepMemo,
			Description: "ステップの既定メモを更新する。特定日のメモは toggle_step を使うこと。",
			Parameters: schema(map[string]any{
				"step_id":  prop("integer", "ステップID"),
				"new_memo": prop("string", "新しいメモ"),
			}, "step_id", "new_memo"),
		},
	}
}

// describeAction renders an action for feedback and trace dumps.
func describeAction(a Action) string {
	raw, err := json.Marshal(a.Args)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf("%s %s", a.Type, string(raw))
}
