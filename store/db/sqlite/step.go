package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/store"
)

func joinAnd(where []string) string {
	return strings.Join(where, " AND ")
}

func joinComma(set []string) string {
	return strings.Join(set, ", ")
}

func (d *DB) CreateStep(ctx context.Context, create *store.Step) (*store.Step, error) {
	stmt := `
		INSERT INTO step (routine_id, name, time, category, memo)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, routine_id, name, time, category, memo
	`
	var step store.Step
	err := d.q.QueryRowContext(ctx, stmt,
		create.RoutineID,
		create.Name,
		create.Time,
		create.Category,
		create.Memo,
	).Scan(
		&step.ID,
		&step.RoutineID,
		&step.Name,
		&step.Time,
		&step.Category,
		&step.Memo,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create step")
	}
	return &step, nil
}

func (d *DB) ListSteps(ctx context.Context, find *store.FindStep) ([]*store.Step, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.RoutineID != nil {
		where, args = append(where, "routine_id = ?"), append(args, *find.RoutineID)
	}

	query := "SELECT id, routine_id, name, time, category, memo FROM step WHERE " + joinAnd(where) + " ORDER BY time ASC, id ASC"

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list steps")
	}
	defer rows.Close()

	var steps []*store.Step
	for rows.Next() {
		var step store.Step
		if err := rows.Scan(&step.ID, &step.RoutineID, &step.Name, &step.Time, &step.Category, &step.Memo); err != nil {
			return nil, errors.Wrap(err, "failed to scan step")
		}
		steps = append(steps, &step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func (d *DB) UpdateStep(ctx context.Context, update *store.UpdateStep) (*store.Step, error) {
	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, *update.Name)
	}
	if update.Time != nil {
		set, args = append(set, "time = ?"), append(args, *update.Time)
	}
	if update.Category != nil {
		set, args = append(set, "category = ?"), append(args, *update.Category)
	}
	if update.Memo != nil {
		set, args = append(set, "memo = ?"), append(args, *update.Memo)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	query := "UPDATE step SET " + joinComma(set) + " WHERE id = ? RETURNING id, routine_id, name, time, category, memo"
	var step store.Step
	err := d.q.QueryRowContext(ctx, query, args...).Scan(&step.ID, &step.RoutineID, &step.Name, &step.Time, &step.Category, &step.Memo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update step")
	}
	return &step, nil
}

// DeleteStep removes a step and its daily logs.
func (d *DB) DeleteStep(ctx context.Context, id int32) error {
	return d.RunInTx(ctx, func(txDriver store.Driver) error {
		tx := txDriver.(*DB)
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM daily_log WHERE step_id = ?`, id); err != nil {
			return errors.Wrap(err, "failed to delete step daily logs")
		}
		result, err := tx.q.ExecContext(ctx, `DELETE FROM step WHERE id = ?`, id)
		if err != nil {
			return errors.Wrap(err, "failed to delete step")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
