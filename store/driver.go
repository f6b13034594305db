package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that the store layer uses to access persistence.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// RunInTx executes fn against a transaction-bound driver.
	// The transaction commits when fn returns nil and rolls back otherwise.
	// The action dispatcher runs each apply batch inside exactly one call.
	RunInTx(ctx context.Context, fn func(txDriver Driver) error) error

	// Routine
	CreateRoutine(ctx context.Context, create *Routine) (*Routine, error)
	ListRoutines(ctx context.Context, find *FindRoutine) ([]*Routine, error)
	UpdateRoutine(ctx context.Context, update *UpdateRoutine) (*Routine, error)
	DeleteRoutine(ctx context.Context, id int32) error

	// Step
	CreateStep(ctx context.Context, create *Step) (*Step, error)
	ListSteps(ctx context.Context, find *FindStep) ([]*Step, error)
	UpdateStep(ctx context.Context, update *UpdateStep) (*Step, error)
	DeleteStep(ctx context.Context, id int32) error

	// DailyLog
	UpsertDailyLog(ctx context.Context, upsert *UpsertDailyLog) (*DailyLog, error)
	ListDailyLogs(ctx context.Context, find *FindDailyLog) ([]*DailyLog, error)

	// CustomTask
	CreateCustomTask(ctx context.Context, create *CustomTask) (*CustomTask, error)
	ListCustomTasks(ctx context.Context, find *FindCustomTask) ([]*CustomTask, error)
	UpdateCustomTask(ctx context.Context, update *UpdateCustomTask) (*CustomTask, error)
	DeleteCustomTask(ctx context.Context, id int32) error

	// DayLog
	GetDayLog(ctx context.Context, date string) (*DayLog, error)
	UpsertDayLog(ctx context.Context, upsert *UpsertDayLog) (*DayLog, error)

	// ChatHistory
	CreateChatMessage(ctx context.Context, create *ChatHistory) (*ChatHistory, error)
	ListChatMessages(ctx context.Context, find *FindChatHistory) ([]*ChatHistory, error)
}
