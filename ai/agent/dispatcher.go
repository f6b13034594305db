package agent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/ai/agent/dateparse"
	"github.com/kazuhrw/schedsense/store"
)

// Outcome is the result of applying one batch of actions.
type Outcome struct {
	Results     []string
	Errors      []string
	ModifiedIDs []string
	// Resolved holds the successful resolve_schedule_expression results of
	// this batch, in execution order.
	Resolved []dateparse.Result
}

// Dispatcher validates and executes typed actions against the schedule store.
// One Apply call runs one transaction; the transaction commits only when at
// least one write succeeded.
type Dispatcher struct {
	store *store.Store
}

func NewDispatcher(s *store.Store) *Dispatcher {
	return &Dispatcher{store: s}
}

// errNoWrites forces a rollback of a batch that only read. Harmless; it is
// filtered out before the outcome is returned.
var errNoWrites = errors.New("no writes in batch")

var (
	isoDateStrictRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeValueRe     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	allTokens       = map[string]bool{"all": true, "すべて": true, "全部": true, "全て": true}
)

// Apply runs the actions sequentially inside one transaction. A failed
// action appends an error line and the batch continues; an infrastructure
// failure rolls the whole batch back and yields a single synthetic error.
func (d *Dispatcher) Apply(ctx context.Context, actions []Action, defaultDate string) Outcome {
	run := &applyRun{ctx: ctx, defaultDate: defaultDate}

	err := d.store.RunInTx(ctx, func(tx *store.Store) error {
		run.tx = tx
		for _, action := range actions {
			run.dispatch(action)
			if run.fatal != nil {
				return run.fatal
			}
		}
		if !run.dirty {
			return errNoWrites
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoWrites) {
		slog.Error("dispatcher: batch rolled back", "error", err, "actions", len(actions))
		return Outcome{Errors: []string{fmt.Sprintf("操作の適用に失敗しました: %v", err)}}
	}

	return Outcome{
		Results:     run.results,
		Errors:      run.errs,
		ModifiedIDs: run.modifiedIDs,
		Resolved:    run.resolved,
	}
}

type applyRun struct {
	ctx         context.Context
	tx          *store.Store
	defaultDate string
	results     []string
	errs        []string
	modifiedIDs []string
	resolved    []dateparse.Result
	dirty       bool
	fatal       error
}

func (r *applyRun) addResult(format string, args ...any) {
	r.results = append(r.results, fmt.Sprintf(format, args...))
}

func (r *applyRun) addError(format string, args ...any) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

func (r *applyRun) markModified(token string) {
	r.modifiedIDs = append(r.modifiedIDs, token)
}

// fail records an infrastructure failure that aborts the batch. Not-found
// rows are not infrastructure failures and are reported per action.
func (r *applyRun) fail(err error) {
	r.fatal = err
}

func (r *applyRun) dispatch(action Action) {
	switch action.Type {
	case ActionResolveExpression:
		r.resolveExpression(action)
	case ActionCalcDateOffset:
		r.calcDateOffset(action)
	case ActionCalcMonthBoundary:
		r.calcMonthBoundary(action)
	case ActionCalcNearestWeekday:
		r.calcNearestWeekday(action)
	case ActionCalcWeekWeekday:
		r.calcWeekWeekday(action)
	case ActionCalcWeekRange:
		r.calcWeekRange(action)
	case ActionCalcTimeOffset:
		r.calcTimeOffset(action)
	case ActionGetDateInfo:
		r.getDateInfo(action)
	case ActionGetDayLog:
		r.getDayLog(action)
	case ActionListTasksInPeriod:
		r.listTasksInPeriod(action)
	case ActionGetDailySummary:
		r.getDailySummary(action)
	case ActionCreateCustomTask:
		r.createCustomTask(action)
	case ActionCreateTasksInRange:
		r.createTasksInRange(action)
	case ActionDeleteCustomTask:
		r.deleteCustomTask(action)
	case ActionToggleCustomTask:
		r.toggleCustomTask(action)
	case ActionUpdateCustomTaskTime:
		r.updateCustomTaskTime(action)
	case ActionRenameCustomTask:
		r.renameCustomTask(action)
	case ActionUpdateCustomTaskMemo:
		r.updateCustomTaskMemo(action)
	case ActionUpdateLog:
		r.updateLog(action)
	case ActionAppendDayLog:
		r.appendDayLog(action)
	case ActionAddRoutine:
		r.addRoutine(action)
	case ActionDeleteRoutine:
		r.deleteRoutine(action)
	case ActionUpdateRoutineDays:
		r.updateRoutineDays(action)
	case ActionAddStep:
		r.addStep(action)
	case ActionDeleteStep:
		r.deleteStep(action)
	case ActionToggleStep:
		r.toggleStep(action)
	case ActionUpdateStepTime:
		r.updateStepTime(action)
	case ActionRenameStep:
		r.renameStep(action)
	case ActionUpdateStepMemo:
		r.updateStepMemo(action)
	default:
		r.addError("未知のアクション: %s", action.Type)
	}
}

// ---- argument validation ----

// requireID reads a positive integer id argument.
func (r *applyRun) requireID(action Action, key string) (int32, bool) {
	n, ok := argInt(action.Args, key)
	if !ok || n <= 0 {
		r.addError("%s: %s が不正です", action.Type, key)
		return 0, false
	}
	return int32(n), true
}

func (r *applyRun) requireString(action Action, key string) (string, bool) {
	v := strings.TrimSpace(argString(action.Args, key))
	if v == "" {
		r.addError("%s: %s が指定されていません", action.Type, key)
		return "", false
	}
	return v, true
}

// checkDate enforces the relative guard on mutation date arguments:
// only absolute YYYY-MM-DD values pass.
func (r *applyRun) checkDate(action Action, key, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return r.defaultDate, true
	}
	if !isoDateStrictRe.MatchString(value) || dateparse.IsRelativeDatetimeText(value) {
		r.addError("%s: 相対的な日付表現「%s」はそのまま使えません。先に resolve_schedule_expression で絶対日付に解決してください。", action.Type, value)
		return "", false
	}
	if _, err := dateparse.ParseDate(value); err != nil {
		r.addError("%s: 日付の形式が不正です: %s", action.Type, value)
		return "", false
	}
	return value, true
}

/// checkTime normalizes a mutation time argument to HH:MM, rejecting
// relative expressions.
func (r *applyRun) checkTime(action Action, key, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "00:00", true
	}
	m := timeValueRe.FindStringSubmatch(value)
	if m == nil {
		if dateparse.IsRelativeDatetimeText(value) {
			r.addError("%s: 相対的な時刻表現「%s」はそのまま使えません。先に resolve_schedule_expression で絶対時刻に解決してください。", action.Type, value)
		} else {
			r.addError("%s: 時刻は HH:MM 形式で指定してください: %s", action.Type, value)
		}
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		r.addError("%s: 時刻が範囲外です: %s", action.Type, value)
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// ---- calculators ----

func (r *applyRun) recordCalc(result dateparse.Result) {
	if !result.OK {
		r.addError("%s", result.Error)
		return
	}
	r.addResult("%s", formatCalcResult(result))
}

func formatCalcResult(result dateparse.Result) string {
	parts := []string{"計算結果:"}
	if result.Expression != "" {
		parts = append(parts, fmt.Sprintf("expression=「%s」", result.Expression))
	}
	if result.Date != "" {
		parts = append(parts, "date="+result.Date)
	}
	if result.Time != "" {
		parts = append(parts, "time="+result.Time)
	}
	if result.Datetime != "" {
		parts = append(parts, "datetime="+result.Datetime)
	}
	if result.Weekday != "" {
		parts = append(parts, "weekday="+result.Weekday)
	}
	if result.PeriodStart != "" {
		parts = append(parts, "period_start="+result.PeriodStart, "period_end="+result.PeriodEnd)
	}
	if result.Year != 0 {
		parts = append(parts, fmt.Sprintf("year=%d month=%d day=%d", result.Year, result.Month, result.Day))
	}
	if result.Source != "" {
		parts = append(parts, "source="+result.Source)
	}
	return strings.Join(parts, " ")
}

func (r *applyRun) resolveExpression(action Action) {
	expression, ok := r.requireString(action, "expression")
	if !ok {
		return
	}
	baseDate := strings.TrimSpace(argString(action.Args, "base_date"))
	if baseDate == "" || !isoDateStrictRe.MatchString(baseDate) {
		baseDate = r.defaultDate
	}
	result := dateparse.ResolveScheduleExpression(
		expression,
		baseDate,
		strings.TrimSpace(argString(action.Args, "base_time")),
		strings.TrimSpace(argString(action.Args, "default_time")),
	)
	if result.OK {
		r.resolved = append(r.resolved, result)
	}
	r.recordCalc(result)
}

func (r *applyRun) calcDateOffset(action Action) {
	offset, ok := argInt(action.Args, "offset_days")
	if !ok {
		r.addError("%s: offset_days が不正です", action.Type)
		return
	}
	r.recordCalc(dateparse.CalcDateOffset(argString(action.Args, "base_date"), offset))
}

func (r *applyRun) calcMonthBoundary(action Action) {
	year, okY := argInt(action.Args, "year")
	month, okM := argInt(action.Args, "month")
	if !okY || !okM {
		r.addError("%s: year/month が不正です", action.Type)
		return
	}
	r.recordCalc(dateparse.CalcMonthBoundary(year, month, argString(action.Args, "boundary")))
}

func (r *applyRun) calcNearestWeekday(action Action) {
	weekday, ok := argInt(action.Args, "weekday")
	if !ok {
		r.addError("%s: weekday が不正です", action.Type)
		return
	}
	r.recordCalc(dateparse.CalcNearestWeekday(
		argString(action.Args, "base_date"), weekday, argString(action.Args, "direction")))
}

func (r *applyRun) calcWeekWeekday(action Action) {
	weekOffset, okO := argInt(action.Args, "week_offset")
	weekday, okW := argInt(action.Args, "weekday")
	if !okO || !okW {
		r.addError("%s: week_offset/weekday が不正です", action.Type)
		return
	}
	r.recordCalc(dateparse.CalcWeekWeekday(argString(action.Args, "base_date"), weekOffset, weekday))
}

func (r *applyRun) calcWeekRange(action Action) {
	r.recordCalc(dateparse.CalcWeekRange(argString(action.Args, "base_date")))
}

func (r *applyRun) calcTimeOffset(action Action) {
	offset, ok := argInt(action.Args, "offset_minutes")
	if !ok {
		r.addError("%s: offset_minutes が不正です", action.Type)
		return
	}
	r.recordCalc(dateparse.CalcTimeOffset(
		argString(action.Args, "base_date"), argString(action.Args, "base_time"), offset))
}

func (r *applyRun) getDateInfo(action Action) {
	r.recordCalc(dateparse.GetDateInfo(argString(action.Args, "date")))
}

// ---- reads ----

func (r *applyRun) readDate(action Action) (string, bool) {
	date := strings.TrimSpace(argString(action.Args, "date"))
	if date == "" {
		return r.defaultDate, true
	}
	if _, err := dateparse.ParseDate(date); err != nil {
		r.addError("%s: 日付の形式が不正です: %s", action.Type, date)
		return "", false
	}
	return date, true
}

func (r *applyRun) getDayLog(action Action) {
	date, ok := r.readDate(action)
	if !ok {
		return
	}
	dayLog, err := r.tx.GetDayLog(r.ctx, date)
	if err != nil {
		r.fail(err)
		return
	}
	if dayLog == nil || strings.TrimSpace(dayLog.Content) == "" {
		r.addResult("%s の日報: なし", date)
		return
	}
	r.addResult("%s の日報: %s", date, dayLog.Content)
}

// periodDays expands an inclusive date range into individual days.
func periodDays(startDate, endDate string) ([]string, error) {
	start, err := dateparse.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("開始日の形式が不正です: %s", startDate)
	}
	end, err := dateparse.ParseDate(endDate)
	if err != nil {
		return nil, fmt.Errorf("終了日の形式が不正です: %s", endDate)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("開始日が終了日より後になっています: %s > %s", startDate, endDate)
	}
	span := int(end.Sub(start).Hours()/24) + 1
	if span > 366 {
		return nil, fmt.Errorf("期間が長すぎます（最大366日）: %s〜%s", startDate, endDate)
	}
	days := make([]string, 0, span)
	for t := start; !t.After(end); t = t.AddDate(0, 0, 1) {
		days = append(days, t.Format(dateparse.DateLayout))
	}
	return days, nil
}

// routineSchedule is the in-memory join of routines, their steps and the
// weekday sets they run on, loaded once per read action.
type routineSchedule struct {
	routines []*store.Routine
	steps    map[int32][]*store.Step // keyed by routine id
	days     map[int32]map[int]bool  // keyed by routine id
}

func (r *applyRun) loadRoutineSchedule() (*routineSchedule, error) {
	routines, err := r.tx.ListRoutines(r.ctx, &store.FindRoutine{})
	if err != nil {
		return nil, err
	}
	steps, err := r.tx.ListSteps(r.ctx, &store.FindStep{})
	if err != nil {
		return nil, err
	}
	schedule := &routineSchedule{
		routines: routines,
		steps:    map[int32][]*store.Step{},
		days:     map[int32]map[int]bool{},
	}
	for _, step := range steps {
		schedule.steps[step.RoutineID] = append(schedule.steps[step.RoutineID], step)
	}
	for _, routine := range routines {
		schedule.days[routine.ID] = parseDaySet(routine.Days)
	}
	return schedule, nil
}

func parseDaySet(days string) map[int]bool {
	set := map[int]bool{}
	for _, token := range strings.Split(days, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(token))
		if err == nil && n >= 0 && n <= 6 {
			set[n] = true
		}
	}
	return set
}

func (r *applyRun) dailyLogsByStep(date string) (map[int32]*store.DailyLog, error) {
	logs, err := r.tx.ListDailyLogs(r.ctx, &store.FindDailyLog{Date: &date})
	if err != nil {
		return nil, err
	}
	byStep := make(map[int32]*store.DailyLog, len(logs))
	for _, dailyLog := range logs {
		byStep[dailyLog.StepID] = dailyLog
	}
	return byStep, nil
}

func doneLabel(done bool) string {
	if done {
		return "完了"
	}
	return "未完了"
}

func (r *applyRun) listTasksInPeriod(action Action) {
	startDate, okS := r.requireString(action, "start_date")
	endDate, okE := r.requireString(action, "end_date")
	if !okS || !okE {
		return
	}
	days, err := periodDays(startDate, endDate)
	if err != nil {
		r.addError("%s: %v", action.Type, err)
		return
	}

	tasks, err := r.tx.ListCustomTasks(r.ctx, &store.FindCustomTask{StartDate: &startDate, EndDate: &endDate})
	if err != nil {
		r.fail(err)
		return
	}
	tasksByDate := map[string][]*store.CustomTask{}
	for _, task := range tasks {
		tasksByDate[task.Date] = append(tasksByDate[task.Date], task)
	}

	schedule, err := r.loadRoutineSchedule()
	if err != nil {
		r.fail(err)
		return
	}

	var lines []string
	for _, date := range days {
		weekday := mustWeekdayIndex(date)
		for _, task := range tasksByDate[date] {
			line := fmt.Sprintf("- [カスタム:%d] %s %s %s (%s)", task.ID, date, task.Time, task.Name, doneLabel(task.Done))
			if task.Memo != "" {
				line += " メモ: " + task.Memo
			}
			lines = append(lines, line)
		}

		var logsByStep map[int32]*store.DailyLog
		for _, routine := range schedule.routines {
			if !schedule.days[routine.ID][weekday] {
				continue
			}
			if logsByStep == nil {
				logsByStep, err = r.dailyLogsByStep(date)
				if err != nil {
					r.fail(err)
					return
				}
			}
			for _, step := range schedule.steps[routine.ID] {
				status := "未完了"
				memo := ""
				if dailyLog := logsByStep[step.ID]; dailyLog != nil {
					status = doneLabel(dailyLog.Done)
					memo = dailyLog.Memo
				}
				line := fmt.Sprintf("- [ステップ:%d] %s %s %s (%s) (%s)", step.ID, date, step.Time, step.Name, routine.Name, status)
				if memo != "" {
					line += " メモ: " + memo
				}
				lines = append(lines, line)
			}
		}
	}

	if len(lines) == 0 {
		r.addResult("期間 %s〜%s の予定: なし", startDate, endDate)
		return
	}
	r.addResult("期間 %s〜%s の予定:\n%s", startDate, endDate, strings.Join(lines, "\n"))
}

func (r *applyRun) getDailySummary(action Action) {
	date, ok := r.readDate(action)
	if !ok {
		return
	}

	dayLog, err := r.tx.GetDayLog(r.ctx, date)
	if err != nil {
		r.fail(err)
		return
	}
	content := "なし"
	if dayLog != nil && strings.TrimSpace(dayLog.Content) != "" {
		content = dayLog.Content
	}

	tasks, err := r.tx.ListCustomTasks(r.ctx, &store.FindCustomTask{Date: &date})
	if err != nil {
		r.fail(err)
		return
	}
	schedule, err := r.loadRoutineSchedule()
	if err != nil {
		r.fail(err)
		return
	}
	logsByStep, err := r.dailyLogsByStep(date)
	if err != nil {
		r.fail(err)
		return
	}

	lines := []string{
		fmt.Sprintf("%s (%s) のサマリー:", date, mustWeekdayName(date)),
		"日報: " + content,
	}
	for _, task := range tasks {
		lines = append(lines, fmt.Sprintf("- [カスタム:%d] %s %s (%s)", task.ID, task.Time, task.Name, doneLabel(task.Done)))
	}
	weekday := mustWeekdayIndex(date)
	for _, routine := range schedule.routines {
		if !schedule.days[routine.ID][weekday] {
			continue
		}
		for _, step := range schedule.steps[routine.ID] {
			status := "未完了"
			if dailyLog := logsByStep[step.ID]; dailyLog != nil {
				status = doneLabel(dailyLog.Done)
			}
			lines = append(lines, fmt.Sprintf("- [ステップ:%d] %s %s (%s) (%s)", step.ID, step.Time, step.Name, routine.Name, status))
		}
	}
	r.addResult("%s", strings.Join(lines, "\n"))
}

func mustWeekdayIndex(date string) int {
	t, err := dateparse.ParseDate(date)
	if err != nil {
		return 0
	}
	return dateparse.WeekdayIndexOf(t)
}

func mustWeekdayName(date string) string {
	return dateparse.WeekdayName(mustWeekdayIndex(date))
}

// ---- custom task writes ----

func (r *applyRun) createCustomTask(action Action) {
	name, ok := r.requireString(action, "name")
	if !ok {
		return
	}
	date, ok := r.checkDate(action, "date", argString(action.Args, "date"))
	if !ok {
		return
	}
	taskTime, ok := r.checkTime(action, "time", argString(action.Args, "time"))
	if !ok {
		return
	}

	task, err := r.tx.CreateCustomTask(r.ctx, &store.CustomTask{
		Date: date,
		Name: name,
		Time: taskTime,
		Memo: argString(action.Args, "memo"),
	})
	if err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_custom_%d", task.ID))
	r.addResult("カスタムタスク「%s」を %s の %s に追加しました。", task.Name, task.Date, task.Time)
}

func (r *applyRun) createTasksInRange(action Action) {
	name, ok := r.requireString(action, "name")
	if !ok {
		return
	}
	startDate, ok := r.checkDate(action, "start_date", argString(action.Args, "start_date"))
	if !ok {
		return
	}
	endDate, ok := r.checkDate(action, "end_date", argString(action.Args, "end_date"))
	if !ok {
		return
	}
	taskTime, ok := r.checkTime(action, "time", argString(action.Args, "time"))
	if !ok {
		return
	}
	days, err := periodDays(startDate, endDate)
	if err != nil {
		r.addError("%s: %v", action.Type, err)
		return
	}
	if len(days) > 365 {
		r.addError("%s: 期間が長すぎます（最大365日）: %s〜%s", action.Type, startDate, endDate)
		return
	}

	memo := argString(action.Args, "memo")
	for _, date := range days {
		task, err := r.tx.CreateCustomTask(r.ctx, &store.CustomTask{
			Date: date,
			Name: name,
			Time: taskTime,
			Memo: memo,
		})
		if err != nil {
			r.fail(err)
			return
		}
		r.markModified(fmt.Sprintf("item_custom_%d", task.ID))
	}
	r.dirty = true
	r.addResult("カスタムタスク「%s」を %s〜%s の各日 %s に追加しました（%d件）。", name, startDate, endDate, taskTime, len(days))
}

func (r *applyRun) deleteCustomTask(action Action) {
	taskID, ok := r.requireID(action, "task_id")
	if !ok {
		return
	}
	if err := r.tx.DeleteCustomTask(r.ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: カスタムタスクが見つかりません: ID %d", action.Type, taskID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.addResult("カスタムタスク(ID %d)を削除しました。", taskID)
}

func (r *applyRun) toggleCustomTask(action Action) {
	taskID, ok := r.requireID(action, "task_id")
	if !ok {
		return
	}
	done := argBool(action.Args, "done", true)

	update := &store.UpdateCustomTask{ID: taskID, Done: &done}
	if hasArg(action.Args, "memo") {
		memo := argString(action.Args, "memo")
		update.Memo = &memo
	}
	task, err := r.tx.UpdateCustomTask(r.ctx, update)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: カスタムタスクが見つかりません: ID %d", action.Type, taskID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_custom_%d", task.ID))
	r.addResult("「%s」を%sにしました。", task.Name, doneLabel(task.Done))
}

func (r *applyRun) updateCustomTaskTime(action Action) {
	taskID, ok := r.requireID(action, "task_id")
	if !ok {
		return
	}
	rawTime, ok := r.requireString(action, "new_time")
	if !ok {
		return
	}
	newTime, ok := r.checkTime(action, "new_time", rawTime)
	if !ok {
		return
	}
	task, err := r.tx.UpdateCustomTask(r.ctx, &store.UpdateCustomTask{ID: taskID, Time: &newTime})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: カスタムタスクが見つかりません: ID %d", action.Type, taskID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_custom_%d", task.ID))
	r.addResult("カスタムタスク「%s」の時刻を %s に変更しました。", task.Name, task.Time)
}

func (r *applyRun) renameCustomTask(action Action) {
	taskID, ok := r.requireID(action, "task_id")
	if !ok {
		return
	}
	newName, ok := r.requireString(action, "new_name")
	if !ok {
		return
	}
	task, err := r.tx.UpdateCustomTask(r.ctx, &store.UpdateCustomTask{ID: taskID, Name: &newName})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: カスタムタスクが見つかりません: ID %d", action.Type, taskID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_custom_%d", task.ID))
	r.addResult("カスタムタスクの名前を「%s」に変更しました。", task.Name)
}

func (r *applyRun) updateCustomTaskMemo(action Action) {
	taskID, ok := r.requireID(action, "task_id")
	if !ok {
		return
	}
	// Empty string clears the memo, so new_memo is read without requiring
	// non-empty content.
	newMemo := argString(action.Args, "new_memo")
	task, err := r.tx.UpdateCustomTask(r.ctx, &store.UpdateCustomTask{ID: taskID, Memo: &newMemo})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: カスタムタスクが見つかりません: ID %d", action.Type, taskID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_custom_%d", task.ID))
	if newMemo == "" {
		r.addResult("カスタムタスク「%s」のメモをクリアしました。", task.Name)
		return
	}
	r.addResult("カスタムタスク「%s」のメモを更新しました。", task.Name)
}

// ---- day log writes ----

func (r *applyRun) updateLog(action Action) {
	content, ok := r.requireString(action, "content")
	if !ok {
		return
	}
	date, ok := r.checkDate(action, "date", argString(action.Args, "date"))
	if !ok {
		return
	}
	if _, err := r.tx.UpsertDayLog(r.ctx, &store.UpsertDayLog{Date: date, Content: content}); err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified("daily-log-card")
	r.addResult("%s の日報を更新しました。", date)
}

func (r *applyRun) appendDayLog(action Action) {
	content, ok := r.requireString(action, "content")
	if !ok {
		return
	}
	date, ok := r.checkDate(action, "date", argString(action.Args, "date"))
	if !ok {
		return
	}
	existing, err := r.tx.GetDayLog(r.ctx, date)
	if err != nil {
		r.fail(err)
		return
	}
	if existing != nil && strings.TrimSpace(existing.Content) != "" {
		content = existing.Content + "\n" + content
	}
	if _, err := r.tx.UpsertDayLog(r.ctx, &store.UpsertDayLog{Date: date, Content: content}); err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified("daily-log-card")
	r.addResult("%s の日報に追記しました。", date)
}

// ---- routine and step writes ----

func (r *applyRun) checkDays(action Action, days string) (string, bool) {
	days = strings.TrimSpace(days)
	if days == "" {
		return "0,1,2,3,4", true
	}
	var tokens []string
	for _, token := range strings.Split(days, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || n < 0 || n > 6 {
			r.addError("%s: days は 0〜6 のカンマ区切りで指定してください: %s", action.Type, days)
			return "", false
		}
		tokens = append(tokens, strconv.Itoa(n))
	}
	return strings.Join(tokens, ","), true
}

func (r *applyRun) addRoutine(action Action) {
	name, ok := r.requireString(action, "name")
	if !ok {
		return
	}
	days, ok := r.checkDays(action, argString(action.Args, "days"))
	if !ok {
		return
	}
	routine, err := r.tx.CreateRoutine(r.ctx, &store.Routine{
		Name:        name,
		Days:        days,
		Description: argString(action.Args, "description"),
	})
	if err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.addResult("ルーチン「%s」を追加しました（曜日: %s）。", routine.Name, routine.Days)
}

// normalizeRoutineName folds case, strips whitespace and common routine
// suffixes so that 「朝のルーチン」 matches a routine named 「朝の」.
func normalizeRoutineName(name string) string {
	s := strings.ToLower(name)
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '　' {
			return -1
		}
		return r
	}, s)
	for _, suffix := range []string{"ルーチン", "ルーティン", "routines", "routine"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return s
}

func (r *applyRun) deleteAllRoutines(action Action) {
	routines, err := r.tx.ListRoutines(r.ctx, &store.FindRoutine{})
	if err != nil {
		r.fail(err)
		return
	}
	if len(routines) == 0 {
		r.addError("%s: 削除できるルーチンがありません", action.Type)
		return
	}
	for _, routine := range routines {
		if err := r.tx.DeleteRoutine(r.ctx, routine.ID); err != nil {
			r.fail(err)
			return
		}
	}
	r.dirty = true
	r.addResult("すべてのルーチン（%d件）を削除しました。", len(routines))
}

func (r *applyRun) deleteRoutine(action Action) {
	name := strings.TrimSpace(argString(action.Args, "routine_name"))
	if argBool(action.Args, "all", false) ||
		strings.EqualFold(strings.TrimSpace(argString(action.Args, "scope")), "all") ||
		(name != "" && allTokens[normalizeRoutineName(name)]) {
		r.deleteAllRoutines(action)
		return
	}

	if routineID, ok := argInt(action.Args, "routine_id"); ok && routineID > 0 {
		if err := r.tx.DeleteRoutine(r.ctx, int32(routineID)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				r.addError("%s: ルーチンが見つかりません: ID %d", action.Type, routineID)
				return
			}
			r.fail(err)
			return
		}
		r.dirty = true
		r.addResult("ルーチン(ID %d)を削除しました。", routineID)
		return
	}

	if name == "" {
		r.addError("%s: routine_id か routine_name を指定してください", action.Type)
		return
	}

	routines, err := r.tx.ListRoutines(r.ctx, &store.FindRoutine{})
	if err != nil {
		r.fail(err)
		return
	}
	target := normalizeRoutineName(name)

	var exact, partial []*store.Routine
	for _, routine := range routines {
		normalized := normalizeRoutineName(routine.Name)
		if normalized == target {
			exact = append(exact, routine)
		} else if target != "" && strings.Contains(normalized, target) {
			partial = append(partial, routine)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch {
	case len(matches) == 0:
		r.addError("%s: ルーチンが見つかりません: %s", action.Type, name)
		return
	case len(matches) > 1:
		candidates := make([]string, 0, 5)
		for _, routine := range matches {
			candidates = append(candidates, routine.Name)
			if len(candidates) == 5 {
				break
			}
		}
		sort.Strings(candidates)
		r.addError("%s: ルーチン名「%s」に複数一致しました。候補: %s", action.Type, name, strings.Join(candidates, ", "))
		return
	}

	routine := matches[0]
	if err := r.tx.DeleteRoutine(r.ctx, routine.ID); err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.addResult("ルーチン「%s」を削除しました。", routine.Name)
}

func (r *applyRun) updateRoutineDays(action Action) {
	routineID, ok := r.requireID(action, "routine_id")
	if !ok {
		return
	}
	rawDays, ok := r.requireString(action, "new_days")
	if !ok {
		return
	}
	days, ok := r.checkDays(action, rawDays)
	if !ok {
		return
	}
	routine, err := r.tx.UpdateRoutine(r.ctx, &store.UpdateRoutine{ID: routineID, Days: &days})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: ルーチンが見つかりません: ID %d", action.Type, routineID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.addResult("ルーチン「%s」の実施曜日を %s に変更しました。", routine.Name, routine.Days)
}

func (r *applyRun) addStep(action Action) {
	routineID, ok := r.requireID(action, "routine_id")
	if !ok {
		return
	}
	name, ok := r.requireString(action, "name")
	if !ok {
		return
	}
	stepTime, ok := r.checkTime(action, "time", argString(action.Args, "time"))
	if !ok {
		return
	}
	category := store.StepCategory(strings.TrimSpace(argString(action.Args, "category")))
	if category == "" {
		category = store.StepCategoryOther
	}
	if !store.ValidStepCategory(category) {
		r.addError("%s: カテゴリが不正です: %s", action.Type, category)
		return
	}

	routines, err := r.tx.ListRoutines(r.ctx, &store.FindRoutine{ID: &routineID})
	if err != nil {
		r.fail(err)
		return
	}
	if len(routines) == 0 {
		r.addError("%s: ルーチンが見つかりません: ID %d", action.Type, routineID)
		return
	}

	step, err := r.tx.CreateStep(r.ctx, &store.Step{
		RoutineID: routineID,
		Name:      name,
		Time:      stepTime,
		Category:  category,
	})
	if err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_routine_%d", step.ID))
	r.addResult("ステップ「%s」(%s) をルーチン「%s」に追加しました。", step.Name, step.Time, routines[0].Name)
}

func (r *applyRun) deleteStep(action Action) {
	stepID, ok := r.requireID(action, "step_id")
	if !ok {
		return
	}
	if err := r.tx.DeleteStep(r.ctx, stepID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: ステップが見つかりません: ID %d", action.Type, stepID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.addResult("ステップ(ID %d)を削除しました。", stepID)
}

func (r *applyRun) findStep(action Action, stepID int32) (*store.Step, bool) {
	steps, err := r.tx.ListSteps(r.ctx, &store.FindStep{ID: &stepID})
	if err != nil {
		r.fail(err)
		return nil, false
	}
	if len(steps) == 0 {
		r.addError("%s: ステップが見つかりません: ID %d", action.Type, stepID)
		return nil, false
	}
	return steps[0], true
}

func (r *applyRun) toggleStep(action Action) {
	stepID, ok := r.requireID(action, "step_id")
	if !ok {
		return
	}
	date, ok := r.checkDate(action, "date", argString(action.Args, "date"))
	if !ok {
		return
	}
	step, ok := r.findStep(action, stepID)
	if !ok {
		return
	}

	upsert := &store.UpsertDailyLog{Date: date, StepID: stepID, Done: argBool(action.Args, "done", true)}
	if hasArg(action.Args, "memo") {
		memo := argString(action.Args, "memo")
		upsert.Memo = &memo
	}
	dailyLog, err := r.tx.UpsertDailyLog(r.ctx, upsert)
	if err != nil {
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_routine_%d", stepID))
	r.addResult("「%s」を%sにしました。", step.Name, doneLabel(dailyLog.Done))
}

func (r *applyRun) updateStepTime(action Action) {
	stepID, ok := r.requireID(action, "step_id")
	if !ok {
		return
	}
	rawTime, ok := r.requireString(action, "new_time")
	if !ok {
		return
	}
	newTime, ok := r.checkTime(action, "new_time", rawTime)
	if !ok {
		return
	}
	step, err := r.tx.UpdateStep(r.ctx, &store.UpdateStep{ID: stepID, Time: &newTime})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: ステップが見つかりません: ID %d", action.Type, stepID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_routine_%d", step.ID))
	r.addResult("ステップ「%s」の時刻を %s に変更しました。", step.Name, step.Time)
}

func (r *applyRun) renameStep(action Action) {
	stepID, ok := r.requireID(action, "step_id")
	if !ok {
		return
	}
	newName, ok := r.requireString(action, "new_name")
	if !ok {
		return
	}
	step, err := r.tx.UpdateStep(r.ctx, &store.UpdateStep{ID: stepID, Name: &newName})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: ステップが見つかりません: ID %d", action.Type, stepID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_routine_%d", step.ID))
	r.addResult("ステップの名前を「%s」に変更しました。", step.Name)
}

func (r *applyRun) updateStepMemo(action Action) {
	stepID, ok := r.requireID(action, "step_id")
	if !ok {
		return
	}
	newMemo := argString(action.Args, "new_memo")
	step, err := r.tx.UpdateStep(r.ctx, &store.UpdateStep{ID: stepID, Memo: &newMemo})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.addError("%s: ステップが見つかりません: ID %d", action.Type, stepID)
			return
		}
		r.fail(err)
		return
	}
	r.dirty = true
	r.markModified(fmt.Sprintf("item_routine_%d", step.ID))
	if newMemo == "" {
		r.addResult("ステップ「%s」のメモをクリアしました。", step.Name)
		return
	}
	r.addResult("ステップ「%s」のメモを更新しました。", step.Name)
}
