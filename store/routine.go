package store

// StepCategory classifies a routine step for the UI and the agent context block.
type StepCategory string

const (
	StepCategoryIoT       StepCategory = "IoT"
	StepCategoryBrowser   StepCategory = "Browser"
	StepCategoryLifestyle StepCategory = "Lifestyle"
	StepCategoryOther     StepCategory = "Other"
)

// ValidStepCategory reports whether c is one of the four known categories.
func ValidStepCategory(c StepCategory) bool {
	switch c {
	case StepCategoryIoT, StepCategoryBrowser, StepCategoryLifestyle, StepCategoryOther:
		return true
	}
	return false
}

// Routine is a weekly-recurring named grouping of steps.
// Days holds comma-joined weekday indices, 0=Monday .. 6=Sunday.
type Routine struct {
	Name        string
	Days        string
	Description string
	ID          int32
}

type FindRoutine struct {
	ID *int32
}

type UpdateRoutine struct {
	Name        *string
	Days        *string
	Description *string
	ID          int32
}

// Step is one timed item inside a routine. Its per-day completion state
// lives in DailyLog; Memo here is the step-level memo.
type Step struct {
	Name      string
	Time      string // HH:MM
	Category  StepCategory
	Memo      string
	ID        int32
	RoutineID int32
}

type FindStep struct {
	ID        *int32
	RoutineID *int32
}

type UpdateStep struct {
	Name     *string
	Time     *string
	Category *StepCategory
	Memo     *string
	ID       int32
}
