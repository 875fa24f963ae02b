// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them to HTTP responses without inspecting error strings.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as polling the status of another
// user's payment reference. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because the
// target is already in a terminal state, such as cancelling a booking
// that is already cancelled. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrCapacityExceeded is returned when a reservation finds no remaining
// units at the moment of the atomic decrement. The caller must not
// retry automatically; the user should pick another timeslot.
var ErrCapacityExceeded = errors.New("timeslot capacity exceeded")

// ErrTimeslotNotFound is returned when a timeslot ID does not exist.
var ErrTimeslotNotFound = errors.New("timeslot not found")

// ErrBookingNotFound is returned when a booking ID does not exist.
var ErrBookingNotFound = errors.New("booking not found")
