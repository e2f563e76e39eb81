package notifications

import (
	"context"
	"time"
)

// Type enumerates the user-facing events a notification can describe.
type Type string

const (
	TypeAppointmentReminder  Type = "APPOINTMENT_REMINDER"
	TypeAppointmentConfirmed Type = "APPOINTMENT_CONFIRMED"
	TypeAppointmentCancelled Type = "APPOINTMENT_CANCELLED"
	TypeNewMessage           Type = "NEW_MESSAGE"
	TypePaymentSuccess       Type = "PAYMENT_SUCCESS"
)

// Notification is one user-facing event record. It lives in the cache under a
// 7-day TTL and is referenced by the owning user's newest-first ID list.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      Type                   `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Sink observes notification creation. The realtime hub registers one to push
// fresh notifications to live sockets; tests register fakes.
type Sink interface {
	NotificationCreated(ctx context.Context, n *Notification)
}
