// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published when a booking state transition should
// reach the user by email.  It carries everything the consumer needs so
// delivery never queries the primary database.
type NotificationEvent struct {
	UserID  uint64 `json:"user_id"`
	Email   string `json:"email"`
	Type    string `json:"type"`
	EventID uint64 `json:"event_id"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	SentAt  string `json:"sent_at"`
}
