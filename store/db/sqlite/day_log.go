package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/store"
)

// GetDayLog returns the journal entry for a date, or nil if none exists.
func (d *DB) GetDayLog(ctx context.Context, date string) (*store.DayLog, error) {
	var log store.DayLog
	err := d.q.QueryRowContext(ctx,
		`SELECT id, date, content FROM day_log WHERE date = ?`, date,
	).Scan(&log.ID, &log.Date, &log.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get day log")
	}
	return &log, nil
}

// UpsertDayLog overwrites the single journal row for a date.
// The zero-or-one-per-date invariant is the UNIQUE(date) constraint.
func (d *DB) UpsertDayLog(ctx context.Context, upsert *store.UpsertDayLog) (*store.DayLog, error) {
	stmt := `
		INSERT INTO day_log (date, content)
		VALUES (?, ?)
		ON CONFLICT (date) DO UPDATE SET content = excluded.content
		RETURNING id, date, content
	`
	var log store.DayLog
	err := d.q.QueryRowContext(ctx, stmt, upsert.Date, upsert.Content).Scan(&log.ID, &log.Date, &log.Content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert day log")
	}
	return &log, nil
}
