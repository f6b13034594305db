package store

import (
	"context"

	"github.com/kazuhrw/schedsense/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// RunInTx executes fn against a transaction-bound Store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.driver.RunInTx(ctx, func(txDriver Driver) error {
		return fn(&Store{driver: txDriver, profile: s.profile})
	})
}

func (s *Store) CreateRoutine(ctx context.Context, create *Routine) (*Routine, error) {
	return s.driver.CreateRoutine(ctx, create)
}

func (s *Store) ListRoutines(ctx context.Context, find *FindRoutine) ([]*Routine, error) {
	return s.driver.ListRoutines(ctx, find)
}

func (s *Store) UpdateRoutine(ctx context.Context, update *UpdateRoutine) (*Routine, error) {
	return s.driver.UpdateRoutine(ctx, update)
}

func (s *Store) DeleteRoutine(ctx context.Context, id int32) error {
	return s.driver.DeleteRoutine(ctx, id)
}

func (s *Store) CreateStep(ctx context.Context, create *Step) (*Step, error) {
	return s.driver.CreateStep(ctx, create)
}

func (s *Store) ListSteps(ctx context.Context, find *FindStep) ([]*Step, error) {
	return s.driver.ListSteps(ctx, find)
}

func (s *Store) UpdateStep(ctx context.Context, update *UpdateStep) (*Step, error) {
	return s.driver.UpdateStep(ctx, update)
}

func (s *Store) DeleteStep(ctx context.Context, id int32) error {
	return s.driver.DeleteStep(ctx, id)
}

func (s *Store) UpsertDailyLog(ctx context.Context, upsert *UpsertDailyLog) (*DailyLog, error) {
	return s.driver.UpsertDailyLog(ctx, upsert)
}

func (s *Store) ListDailyLogs(ctx context.Context, find *FindDailyLog) ([]*DailyLog, error) {
	return s.driver.ListDailyLogs(ctx, find)
}

func (s *Store) CreateCustomTask(ctx context.Context, create *CustomTask) (*CustomTask, error) {
	return s.driver.CreateCustomTask(ctx, create)
}

func (s *Store) ListCustomTasks(ctx context.Context, find *FindCustomTask) ([]*CustomTask, error) {
	return s.driver.ListCustomTasks(ctx, find)
}

func (s *Store) UpdateCustomTask(ctx context.Context, update *UpdateCustomTask) (*CustomTask, error) {
	return s.driver.UpdateCustomTask(ctx, update)
}

func (s *Store) DeleteCustomTask(ctx context.Context, id int32) error {
	return s.driver.DeleteCustomTask(ctx, id)
}

func (s *Store) GetDayLog(ctx context.Context, date string) (*DayLog, error) {
	return s.driver.GetDayLog(ctx, date)
}

func (s *Store) UpsertDayLog(ctx context.Context, upsert *UpsertDayLog) (*DayLog, error) {
	return s.driver.UpsertDayLog(ctx, upsert)
}

func (s *Store) CreateChatMessage(ctx context.Context, create *ChatHistory) (*ChatHistory, error) {
	return s.driver.CreateChatMessage(ctx, create)
}

func (s *Store) ListChatMessages(ctx context.Context, find *FindChatHistory) ([]*ChatHistory, error) {
	return s.driver.ListChatMessages(ctx, find)
}
