package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/store"
)

func (d *DB) CreateCustomTask(ctx context.Context, create *store.CustomTask) (*store.CustomTask, error) {
	stmt := `
		INSERT INTO custom_task (date, name, time, done, memo)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, date, name, time, done, memo
	`
	var task store.CustomTask
	err := d.q.QueryRowContext(ctx, stmt,
		create.Date,
		create.Name,
		create.Time,
		create.Done,
		create.Memo,
	).Scan(
		&task.ID,
		&task.Date,
		&task.Name,
		&task.Time,
		&task.Done,
		&task.Memo,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create custom task")
	}
	return &task, nil
}

func (d *DB) ListCustomTasks(ctx context.Context, find *store.FindCustomTask) ([]*store.CustomTask, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Date != nil {
		where, args = append(where, "date = ?"), append(args, *find.Date)
	}
	if find.StartDate != nil {
		where, args = append(where, "date >= ?"), append(args, *find.StartDate)
	}
	if find.EndDate != nil {
		where, args = append(where, "date <= ?"), append(args, *find.EndDate)
	}

	query := "SELECT id, date, name, time, done, memo FROM custom_task WHERE " + joinAnd(where) + " ORDER BY date ASC, time ASC, id ASC"

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list custom tasks")
	}
	defer rows.Close()

	var tasks []*store.CustomTask
	for rows.Next() {
		var task store.CustomTask
		if err := rows.Scan(&task.ID, &task.Date, &task.Name, &task.Time, &task.Done, &task.Memo); err != nil {
			return nil, errors.Wrap(err, "failed to scan custom task")
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (d *DB) UpdateCustomTask(ctx context.Context, update *store.UpdateCustomTask) (*store.CustomTask, error) {
	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, *update.Name)
	}
	if update.Date != nil {
		set, args = append(set, "date = ?"), append(args, *update.Date)
	}
	if update.Time != nil {
		set, args = append(set, "time = ?"), append(args, *update.Time)
	}
	if update.Done != nil {
		set, args = append(set, "done = ?"), append(args, *update.Done)
	}
	if update.Memo != nil {
		set, args = append(set, "memo = ?"), append(args, *update.Memo)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	query := "UPDATE custom_task SET " + joinComma(set) + " WHERE id = ? RETURNING id, date, name, time, done, memo"
	var task store.CustomTask
	err := d.q.QueryRowContext(ctx, query, args...).Scan(&task.ID, &task.Date, &task.Name, &task.Time, &task.Done, &task.Memo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update custom task")
	}
	return &task, nil
}

func (d *DB) DeleteCustomTask(ctx context.Context, id int32) error {
	result, err := d.q.ExecContext(ctx, `DELETE FROM custom_task WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete custom task")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
