package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/kazuhrw/schedsense/internal/profile"
	"github.com/kazuhrw/schedsense/store"
)

// DB implements store.Driver on SQLite.
//
// q is either the root *sql.DB or an active *sql.Tx; every query method
// goes through it so that a transaction-bound clone produced by RunInTx
// shares all the CRUD code below.
type DB struct {
	db      *sql.DB
	q       queryer
	profile *profile.Profile
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB opens a database specified by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect with some sane settings:
	// - busy_timeout avoids immediate SQLITE_BUSY under the WAL writer.
	// - WAL journal mode is the recommended mode for most applications.
	// Foreign keys stay off; cascades are done explicitly in the driver.
	//
	// Note: with the `modernc.org/sqlite` driver each pragma must be
	// prefixed with `_pragma=`.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite: a single connection is optimal with WAL for a personal instance.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, q: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS routine (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	days TEXT NOT NULL DEFAULT '0,1,2,3,4',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS step (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	routine_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	time TEXT NOT NULL DEFAULT '00:00',
	category TEXT NOT NULL DEFAULT 'Other',
	memo TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_step_routine_id ON step (routine_id);

CREATE TABLE IF NOT EXISTS daily_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	step_id INTEGER NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	memo TEXT NOT NULL DEFAULT '',
	UNIQUE (date, step_id)
);

CREATE TABLE IF NOT EXISTS custom_task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	name TEXT NOT NULL,
	time TEXT NOT NULL DEFAULT '00:00',
	done INTEGER NOT NULL DEFAULT 0,
	memo TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_custom_task_date ON custom_task (date);

CREATE TABLE IF NOT EXISTS day_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chat_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);
`

// Migrate bootstraps the schema. All statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	return nil
}

// RunInTx executes fn against a transaction-bound driver clone.
func (d *DB) RunInTx(ctx context.Context, fn func(txDriver store.Driver) error) error {
	if _, ok := d.q.(*sql.Tx); ok {
		// Nested transactional scopes reuse the outer transaction.
		return fn(d)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	clone := &DB{db: d.db, q: tx, profile: d.profile}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(clone); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Wrapf(err, "rollback also failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
