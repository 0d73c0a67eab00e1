// Package notify delivers user-facing notifications produced by workflow
// transitions. Delivery is best effort; callers never roll back on failure.
package notify

import (
	"context"
	"time"
)

// Severity grades a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is addressed to a single user.
type Notification struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	TicketID  string    `json:"ticket_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink is a delivery channel for notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}
