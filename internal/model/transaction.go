package model

import "time"

// Transaction status values.  Like bookings, transactions transition
// monotonically: once CONFIRMED or CANCELLED they never move again.
// A late or duplicate gateway webhook therefore becomes a no-op.
const (
	TransactionPending   = "PENDING"
	TransactionConfirmed = "CONFIRMED"
	TransactionCancelled = "CANCELLED"
)

// Transaction is one payment attempt for a booking.  Reference is chosen
// by us before the gateway ever sees the payment; it is globally unique,
// immutable, and doubles as the gateway idempotency key and the sole
// correlation key for inbound webhooks.  PSPReference is assigned by the
// gateway and stays NULL until the first webhook carries it.  A booking
// has at most one non-cancelled transaction at a time.
type Transaction struct {
	ID           uint64    // transactions.id
	BookingID    uint64    // transactions.booking_id
	Reference    string    // transactions.reference (unique)
	PSPReference *string   // transactions.psp_reference (nullable)
	AmountCents  uint32    // transactions.amount_cents
	Status       string    // transactions.status
	CreatedAt    time.Time // transactions.created_at
	UpdatedAt    time.Time // transactions.updated_at
}
