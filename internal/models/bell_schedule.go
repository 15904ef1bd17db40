package models

// GradeCohort identifies a group of grades sharing one bell schedule.
type GradeCohort string

const (
	CohortSix   GradeCohort = "6"
	CohortSeven GradeCohort = "7"
)

// BellSchedulePeriod is one row of a cohort's bell schedule. Immutable
// reference data. Times are wall-clock "HH:MM" strings.
type BellSchedulePeriod struct {
	GradeCohort GradeCohort `db:"grade_cohort" json:"grade_cohort"`
	Period      int         `db:"period" json:"period"`
	StartTime   string      `db:"start_time" json:"start_time"`
	EndTime     string      `db:"end_time" json:"end_time"`
}

// LunchPeriod marks a period that can never be observed for a grade's
// classroom teachers.
type LunchPeriod struct {
	Grade  string `db:"grade" json:"grade"`
	Period int    `db:"period" json:"period"`
}
