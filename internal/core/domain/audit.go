package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateIOU   AuditAction = "CREATE_IOU"
	AuditActionBulkSync    AuditAction = "BULK_SYNC"
	AuditActionMarkSettled AuditAction = "MARK_SETTLED"
	AuditActionDeleteIOU   AuditAction = "DELETE_IOU"
	AuditActionSweep       AuditAction = "SWEEP"
	AuditActionAdminLogin  AuditAction = "ADMIN_LOGIN"
)

// AuditLog records a single audited write against the IOU ledger.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
