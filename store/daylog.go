package store

// DayLog is the free-form journal entry for a single date.
// At most one row exists per date.
type DayLog struct {
	Date    string // YYYY-MM-DD, unique
	Content string
	ID      int32
}

type UpsertDayLog struct {
	Date    string
	Content string
}

// DailyLog records per-day completion of a routine step.
// A row exists only once a step has been toggled or annotated for that date.
type DailyLog struct {
	Date   string // YYYY-MM-DD
	Memo   string
	ID     int32
	StepID int32
	Done   bool
}

type FindDailyLog struct {
	Date   *string
	StepID *int32
}

type UpsertDailyLog struct {
	Date   string
	Memo   *string // nil leaves the stored memo untouched
	StepID int32
	Done   bool
}
