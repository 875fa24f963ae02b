package model

import "time"

// Booking status values.  A booking is created as PENDING_PAYMENT (or
// directly CONFIRMED when no payment is required) and moves exactly once
// into CONFIRMED or CANCELLED.  Terminal states are never left again;
// bookings are never deleted so the table doubles as an audit trail.
const (
	BookingPendingPayment = "PENDING_PAYMENT"
	BookingConfirmed      = "CONFIRMED"
	BookingCancelled      = "CANCELLED"
)

// Booking records a user's claim on one unit of a timeslot.  The access
// token is generated when the booking is confirmed and is later presented
// for entry validation; it stays NULL for unconfirmed bookings.
type Booking struct {
	ID          uint64    // bookings.id
	TimeslotID  uint64    // bookings.timeslot_id
	UserID      uint64    // bookings.user_id
	Status      string    // bookings.status
	AccessToken *string   // bookings.access_token (nullable)
	CreatedAt   time.Time // bookings.created_at
	UpdatedAt   time.Time // bookings.updated_at
}
