package models

import (
	"time"

	"github.com/lib/pq"
)

// SubRequestStatus is the substitute approval workflow state. Approved,
// denied and canceled are terminal.
type SubRequestStatus string

const (
	SubRequestStatusPending  SubRequestStatus = "pending"
	SubRequestStatusApproved SubRequestStatus = "approved"
	SubRequestStatusDenied   SubRequestStatus = "denied"
	SubRequestStatusCanceled SubRequestStatus = "canceled"
)

// Terminal reports whether no further transition is permitted.
func (s SubRequestStatus) Terminal() bool {
	return s == SubRequestStatusApproved || s == SubRequestStatusDenied || s == SubRequestStatusCanceled
}

// SubstituteRequest asks for coverage of the observer's own class during an
// observation. Exactly one per observation with needs_sub set.
type SubstituteRequest struct {
	ID             string        `db:"id" json:"id"`
	ObservationID  string        `db:"observation_id" json:"observation_id"`
	RequesterEmail string        `db:"requester_email" json:"requester_email"`
	Date           time.Time     `db:"date" json:"date"`
	Periods        pq.Int64Array `db:"periods" json:"periods"`

	Status       SubRequestStatus `db:"status" json:"status"`
	ReviewedBy   *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	DenialReason *string          `db:"denial_reason" json:"denial_reason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubstituteRequestFilter narrows substitute request listings.
type SubstituteRequestFilter struct {
	Status   []SubRequestStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}
