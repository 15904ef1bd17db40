package models

import (
	"time"

	"github.com/lib/pq"
)

// TeacherType distinguishes classroom teachers from support staff.
type TeacherType string

const (
	TeacherTypeClassroom TeacherType = "classroom"
	TeacherTypeSupport   TeacherType = "support"
)

// Grade labels used in the grades column. Grades 7 and up share one bell
// schedule cohort; grade 6 has its own.
const (
	GradeSix     = "6"
	GradeSeven   = "7"
	GradeEight   = "8"
	GradeSupport = "support"
)

// Teacher represents a roster entry. Teachers are never deleted, only
// deactivated, so observation history keeps resolving.
type Teacher struct {
	ID       string         `db:"id" json:"id"`
	Email    string         `db:"email" json:"email"`
	FullName string         `db:"full_name" json:"full_name"`
	Room     string         `db:"room" json:"room"`
	Grades   pq.StringArray `db:"grades" json:"grades"`
	Type     TeacherType    `db:"type" json:"type"`

	// UnavailablePeriods is the explicit per-teacher block list. When empty
	// the legacy LunchPeriod field applies, and failing that the
	// grade-derived lunch periods.
	UnavailablePeriods pq.Int64Array `db:"unavailable_periods" json:"unavailable_periods"`
	LunchPeriod        *int64        `db:"lunch_period" json:"lunch_period,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Grade     string
	Type      *TeacherType
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
