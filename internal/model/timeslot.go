package model

import "time"

// Timeslot is a capacity-limited sellable unit of an event, for example
// an entry window.  Remaining counts down as bookings are created and is
// restored when bookings are cancelled.  It must never go negative: the
// repository enforces this with a conditional decrement rather than a
// read-then-write sequence.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – owning event.
//  Capacity   – total number of sellable units.
//  Remaining  – units still available for sale.
//  PriceCents – price per unit in cents; zero means no payment required.
//  StartsAt   – when the timeslot begins, stored in UTC.
type Timeslot struct {
	ID         uint64    // timeslots.id
	EventID    uint64    // timeslots.event_id
	Capacity   uint32    // timeslots.capacity
	Remaining  uint32    // timeslots.remaining
	PriceCents uint32    // timeslots.price_cents
	StartsAt   time.Time // timeslots.starts_at
	CreatedAt  time.Time // timeslots.created_at
	UpdatedAt  time.Time // timeslots.updated_at
}
