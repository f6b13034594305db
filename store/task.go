package store

// CustomTask is a one-off dated task independent of any routine.
type CustomTask struct {
	Date string // YYYY-MM-DD
	Name string
	Time string // HH:MM
	Memo string
	ID   int32
	Done bool
}

type FindCustomTask struct {
	ID        *int32
	Date      *string
	StartDate *string // inclusive, used together with EndDate
	EndDate   *string // inclusive
}

type UpdateCustomTask struct {
	Name *string
	Date *string
	Time *string
	Done *bool
	Memo *string
	ID   int32
}
