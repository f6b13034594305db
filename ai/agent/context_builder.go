package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kazuhrw/schedsense/ai/agent/dateparse"
	"github.com/kazuhrw/schedsense/store"
)

// ContextBuilder renders the world-state block handed to the LLM every
// round. The block is the model's only view of mutable schedule state, so
// it is rebuilt from the store on each call.
type ContextBuilder struct {
	store *store.Store
}

func NewContextBuilder(s *store.Store) *ContextBuilder {
	return &ContextBuilder{store: s}
}

// Build renders the labeled sections for the given day.
func (b *ContextBuilder) Build(ctx context.Context, today string) (string, error) {
	var sb strings.Builder

	weekdayName := ""
	if t, err := dateparse.ParseDate(today); err == nil {
		weekdayName = dateparse.WeekdayName(dateparse.WeekdayIndexOf(t))
	}
	fmt.Fprintf(&sb, "today_date: %s (%s)\n", today, weekdayName)

	if err := b.writeRoutines(ctx, &sb); err != nil {
		return "", err
	}
	if err := b.writeTodayCustomTasks(ctx, &sb, today); err != nil {
		return "", err
	}
	if err := b.writeTodayStepLogs(ctx, &sb, today); err != nil {
		return "", err
	}
	if err := b.writeRecentDayLogs(ctx, &sb, today); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (b *ContextBuilder) writeRoutines(ctx context.Context, sb *strings.Builder) error {
	routines, err := b.store.ListRoutines(ctx, &store.FindRoutine{})
	if err != nil {
		return err
	}
	steps, err := b.store.ListSteps(ctx, &store.FindStep{})
	if err != nil {
		return err
	}
	stepsByRoutine := map[int32][]*store.Step{}
	for _, step := range steps {
		stepsByRoutine[step.RoutineID] = append(stepsByRoutine[step.RoutineID], step)
	}

	sb.WriteString("routines:\n")
	if len(routines) == 0 {
		sb.WriteString("(none)\n")
		return nil
	}
	for _, routine := range routines {
		owned := stepsByRoutine[routine.ID]
		sort.SliceStable(owned, func(i, j int) bool {
			if owned[i].Time != owned[j].Time {
				return owned[i].Time < owned[j].Time
			}
			return owned[i].ID < owned[j].ID
		})

		stepText := "no steps"
		if len(owned) > 0 {
			parts := make([]string, len(owned))
			for i, step := range owned {
				parts[i] = fmt.Sprintf("[%d] %s %s (%s)", step.ID, step.Time, step.Name, step.Category)
			}
			stepText = strings.Join(parts, ", ")
		}
		fmt.Fprintf(sb, "- Routine %d: %s | days=%s | %s\n", routine.ID, routine.Name, routine.Days, stepText)
	}
	return nil
}

func (b *ContextBuilder) writeTodayCustomTasks(ctx context.Context, sb *strings.Builder, today string) error {
	tasks, err := b.store.ListCustomTasks(ctx, &store.FindCustomTask{Date: &today})
	if err != nil {
		return err
	}
	sb.WriteString("today_custom_tasks:\n")
	if len(tasks) == 0 {
		sb.WriteString("(none)\n")
		return nil
	}
	for _, task := range tasks {
		line := fmt.Sprintf("- [%d] %s %s (%s)", task.ID, task.Time, task.Name, doneLabel(task.Done))
		if task.Memo != "" {
			line += " メモ: " + task.Memo
		}
		sb.WriteString(line + "\n")
	}
	return nil
}

func (b *ContextBuilder) writeTodayStepLogs(ctx context.Context, sb *strings.Builder, today string) error {
	logs, err := b.store.ListDailyLogs(ctx, &store.FindDailyLog{Date: &today})
	if err != nil {
		return err
	}
	sb.WriteString("today_step_logs:\n")
	if len(logs) == 0 {
		sb.WriteString("(none)\n")
		return nil
	}
	for _, dailyLog := range logs {
		line := fmt.Sprintf("- step %d: %s", dailyLog.StepID, doneLabel(dailyLog.Done))
		if dailyLog.Memo != "" {
			line += " メモ: " + dailyLog.Memo
		}
		sb.WriteString(line + "\n")
	}
	return nil
}

// writeRecentDayLogs shows today and the previous two days that carry
// non-empty content.
func (b *ContextBuilder) writeRecentDayLogs(ctx context.Context, sb *strings.Builder, today string) error {
	base, err := dateparse.ParseDate(today)
	if err != nil {
		return fmt.Errorf("invalid today %q", today)
	}

	sb.WriteString("recent_day_logs:\n")
	any := false
	for offset := 0; offset >= -2; offset-- {
		date := base.AddDate(0, 0, offset).Format(dateparse.DateLayout)
		dayLog, err := b.store.GetDayLog(ctx, date)
		if err != nil {
			return err
		}
		if dayLog == nil || strings.TrimSpace(dayLog.Content) == "" {
			continue
		}
		any = true
		fmt.Fprintf(sb, "- %s: %s\n", date, strings.ReplaceAll(dayLog.Content, "\n", " / "))
	}
	if !any {
		sb.WriteString("(none)\n")
	}
	return nil
}
