package model

// NotificationType enumerates the notification kinds users can opt out
// of.  Each value maps to a boolean column on notification_preferences.
type NotificationType string

const (
	NotifyBookingConfirmed NotificationType = "booking_confirmed"
	NotifyBookingCancelled NotificationType = "booking_cancelled"
	NotifyPaymentFailed    NotificationType = "payment_failed"
)

// NotificationPreferences holds a user's per-type opt-out flags.  A user
// without a preferences row gets the zero-value-overridden defaults from
// the repository (everything enabled).
type NotificationPreferences struct {
	UserID           uint64 // notification_preferences.user_id
	BookingConfirmed bool   // notification_preferences.booking_confirmed
	BookingCancelled bool   // notification_preferences.booking_cancelled
	PaymentFailed    bool   // notification_preferences.payment_failed
}

// Allows reports whether the given notification type is enabled.
// Unknown types default to enabled so new types fail open rather than
// silently suppressing mail.
func (p NotificationPreferences) Allows(t NotificationType) bool {
	switch t {
	case NotifyBookingConfirmed:
		return p.BookingConfirmed
	case NotifyBookingCancelled:
		return p.BookingCancelled
	case NotifyPaymentFailed:
		return p.PaymentFailed
	}
	return true
}
