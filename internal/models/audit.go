package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionBookingCreate      = "BOOKING_CREATE"
	AuditActionBookingReschedule  = "BOOKING_RESCHEDULE"
	AuditActionBookingCancel      = "BOOKING_CANCEL"
	AuditActionBookingAdminEdit   = "BOOKING_ADMIN_EDIT"
	AuditActionBookingAdminDelete = "BOOKING_ADMIN_DELETE"
	AuditActionSubApprove         = "SUB_REQUEST_APPROVE"
	AuditActionSubDeny            = "SUB_REQUEST_DENY"
	AuditActionTeacherCreate      = "TEACHER_CREATE"
	AuditActionTeacherUpdate      = "TEACHER_UPDATE"
	AuditActionTeacherDeactivate  = "TEACHER_DEACTIVATE"
	AuditActionAccessApprove      = "ACCESS_REQUEST_APPROVE"
	AuditActionAccessDeny         = "ACCESS_REQUEST_DENY"
)

// AuditLog represents an audit trail record. Writes to the audit sink are
// best-effort; a failed append never fails the primary operation.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorEmail string    `db:"actor_email" json:"actor_email"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
