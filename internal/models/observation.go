package models

import (
	"time"

	"github.com/lib/pq"
)

// ObservationStatus tracks the lifecycle of a booking.
type ObservationStatus string

const (
	ObservationStatusConfirmed  ObservationStatus = "confirmed"
	ObservationStatusPendingSub ObservationStatus = "pending_sub"
	ObservationStatusCanceled   ObservationStatus = "canceled"
)

// SubStatus mirrors the linked substitute request on the observation row.
type SubStatus string

const (
	SubStatusNotNeeded SubStatus = "not_needed"
	SubStatusPending   SubStatus = "pending"
	SubStatusApproved  SubStatus = "approved"
	SubStatusDenied    SubStatus = "denied"
)

// Observation is a booked classroom visit. For a given (teacher_id, date)
// the period sets of all non-canceled observations must be pairwise disjoint.
type Observation struct {
	ID         string        `db:"id" json:"id"`
	ObserverID string        `db:"observer_id" json:"observer_id"`
	TeacherID  string        `db:"teacher_id" json:"teacher_id"`
	Date       time.Time     `db:"date" json:"date"`
	Periods    pq.Int64Array `db:"periods" json:"periods"`

	NeedsSub     bool              `db:"needs_sub" json:"needs_sub"`
	SubStatus    SubStatus         `db:"sub_status" json:"sub_status"`
	Status       ObservationStatus `db:"status" json:"status"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`

	// Display cache only; the teachers table stays authoritative.
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	TeacherRoom string `db:"teacher_room" json:"teacher_room"`

	ObserverEventID *string `db:"observer_event_id" json:"observer_event_id,omitempty"`
	TeacherEventID  *string `db:"teacher_event_id" json:"teacher_event_id,omitempty"`

	CreatedBy     string     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ModifiedBy    *string    `db:"modified_by" json:"modified_by,omitempty"`
	ModifiedAt    *time.Time `db:"modified_at" json:"modified_at,omitempty"`
	RescheduledAt *time.Time `db:"rescheduled_at" json:"rescheduled_at,omitempty"`
	CanceledBy    *string    `db:"canceled_by" json:"canceled_by,omitempty"`
	CanceledAt    *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
}

// Active reports whether the observation still occupies its periods.
func (o *Observation) Active() bool {
	return o != nil && o.Status != ObservationStatusCanceled
}

// ContainsPeriod reports whether the observation covers the given period.
func (o *Observation) ContainsPeriod(period int64) bool {
	for _, p := range o.Periods {
		if p == period {
			return true
		}
	}
	return false
}

// ObservationFilter narrows observation listings.
type ObservationFilter struct {
	ObserverID string
	TeacherID  string
	Status     []ObservationStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}

// Unavailability reasons reported by the availability resolver, in priority
// order. Only the first matching reason is ever reported for a period.
const (
	ReasonTeacherUnavailable = "Teacher unavailable"
	ReasonAlreadyHasObserver = "Already has observer"
	ReasonObserverBusy       = "You have another observation"
	ReasonObserverObserved   = "You are being observed"
)

// Slot is one row of the availability matrix handed to the client picker.
// Advisory only; the booking transaction re-validates under the lock.
type Slot struct {
	Period    int    `json:"period"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
