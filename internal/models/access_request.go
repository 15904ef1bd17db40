package models

import "time"

// AccessRequestStatus tracks a pending registration.
type AccessRequestStatus string

const (
	AccessRequestStatusPending  AccessRequestStatus = "pending"
	AccessRequestStatusApproved AccessRequestStatus = "approved"
	AccessRequestStatusDenied   AccessRequestStatus = "denied"
)

// AccessRequest is a registration awaiting admin approval into the roster.
type AccessRequest struct {
	ID            string              `db:"id" json:"id"`
	Email         string              `db:"email" json:"email"`
	FullName      string              `db:"full_name" json:"full_name"`
	RequestedRole UserRole            `db:"requested_role" json:"requested_role"`
	Status        AccessRequestStatus `db:"status" json:"status"`
	ReviewedBy    *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time          `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}
