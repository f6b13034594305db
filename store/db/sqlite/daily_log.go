package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/store"
)

// UpsertDailyLog lazily creates the (date, step) completion row on first
// toggle and updates it afterwards. A nil Memo leaves the stored memo alone.
func (d *DB) UpsertDailyLog(ctx context.Context, upsert *store.UpsertDailyLog) (*store.DailyLog, error) {
	stmt := `
		INSERT INTO daily_log (date, step_id, done, memo)
		VALUES (?, ?, ?, COALESCE(?, ''))
		ON CONFLICT (date, step_id) DO UPDATE SET
			done = excluded.done,
			memo = COALESCE(?, daily_log.memo)
		RETURNING id, date, step_id, done, memo
	`
	var log store.DailyLog
	err := d.q.QueryRowContext(ctx, stmt,
		upsert.Date,
		upsert.StepID,
		upsert.Done,
		upsert.Memo,
		upsert.Memo,
	).Scan(
		&log.ID,
		&log.Date,
		&log.StepID,
		&log.Done,
		&log.Memo,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert daily log")
	}
	return &log, nil
}

func (d *DB) ListDailyLogs(ctx context.Context, find *store.FindDailyLog) ([]*store.DailyLog, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.Date != nil {
		where, args = append(where, "date = ?"), append(args, *find.Date)
	}
	if find.StepID != nil {
		where, args = append(where, "step_id = ?"), append(args, *find.StepID)
	}

	query := "SELECT id, date, step_id, done, memo FROM daily_log WHERE " + joinAnd(where) + " ORDER BY date ASC, step_id ASC"

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list daily logs")
	}
	defer rows.Close()

	var logs []*store.DailyLog
	for rows.Next() {
		var log store.DailyLog
		if err := rows.Scan(&log.ID, &log.Date, &log.StepID, &log.Done, &log.Memo); err != nil {
			return nil, errors.Wrap(err, "failed to scan daily log")
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
