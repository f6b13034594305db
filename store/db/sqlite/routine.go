package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/store"
)

func (d *DB) CreateRoutine(ctx context.Context, create *store.Routine) (*store.Routine, error) {
	stmt := `
		INSERT INTO routine (name, days, description)
		VALUES (?, ?, ?)
		RETURNING id, name, days, description
	`
	var routine store.Routine
	err := d.q.QueryRowContext(ctx, stmt,
		create.Name,
		create.Days,
		create.Description,
	).Scan(
		&routine.ID,
		&routine.Name,
		&routine.Days,
		&routine.Description,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create routine")
	}
	return &routine, nil
}

func (d *DB) ListRoutines(ctx context.Context, find *store.FindRoutine) ([]*store.Routine, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}

	query := "SELECT id, name, days, description FROM routine WHERE " + joinAnd(where) + " ORDER BY id ASC"

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list routines")
	}
	defer rows.Close()

	var routines []*store.Routine
	for rows.Next() {
		var routine store.Routine
		if err := rows.Scan(&routine.ID, &routine.Name, &routine.Days, &routine.Description); err != nil {
			return nil, errors.Wrap(err, "failed to scan routine")
		}
		routines = append(routines, &routine)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return routines, nil
}

func (d *DB) UpdateRoutine(ctx context.Context, update *store.UpdateRoutine) (*store.Routine, error) {
	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, *update.Name)
	}
	if update.Days != nil {
		set, args = append(set, "days = ?"), append(args, *update.Days)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	query := "UPDATE routine SET " + joinComma(set) + " WHERE id = ? RETURNING id, name, days, description"
	var routine store.Routine
	err := d.q.QueryRowContext(ctx, query, args...).Scan(&routine.ID, &routine.Name, &routine.Days, &routine.Description)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update routine")
	}
	return &routine, nil
}

// DeleteRoutine removes a routine, its steps, and their daily logs.
// Cascades are explicit because foreign keys are disabled at the connection.
func (d *DB) DeleteRoutine(ctx context.Context, id int32) error {
	return d.RunInTx(ctx, func(txDriver store.Driver) error {
		tx := txDriver.(*DB)
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM daily_log WHERE step_id IN (SELECT id FROM step WHERE routine_id = ?)`, id); err != nil {
			return errors.Wrap(err, "failed to delete routine daily logs")
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM step WHERE routine_id = ?`, id); err != nil {
			return errors.Wrap(err, "failed to delete routine steps")
		}
		result, err := tx.q.ExecContext(ctx, `DELETE FROM routine WHERE id = ?`, id)
		if err != nil {
			return errors.Wrap(err, "failed to delete routine")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
