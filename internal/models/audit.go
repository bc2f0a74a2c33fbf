package models

import "time"

// AuditEntry records one status change. Entries are append-only.
type AuditEntry struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"orderId"`
	ActorID   string      `json:"actorId"`
	OldStatus OrderStatus `json:"oldStatus,omitempty"`
	NewStatus OrderStatus `json:"newStatus"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
