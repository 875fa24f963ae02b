// Package service implements the booking and payment reconciliation
// engine: reserving capacity, opening payments, applying gateway
// outcomes and coordinating cancellations and refunds.
package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
	"github.com/khatteland/drikkepress-v2-sub001/internal/vipps"
)

// Reservations is the reservation manager: it turns a purchase intent
// into a Booking + Transaction pair under one database transaction and
// opens the payment at the gateway afterwards.  It is the only writer
// that decrements timeslot capacity.
type Reservations struct {
	db         *sql.DB
	slots      *repository.TimeslotRepo
	bookings   *repository.BookingRepo
	txns       *repository.TransactionRepo
	gateway    vipps.Gateway
	dispatcher *Dispatcher
	returnURL  string
}

// NewReservations constructs the reservation manager.
func NewReservations(db *sql.DB, slots *repository.TimeslotRepo, bookings *repository.BookingRepo,
	txns *repository.TransactionRepo, gateway vipps.Gateway, dispatcher *Dispatcher, returnURL string) *Reservations {
	return &Reservations{
		db: db, slots: slots, bookings: bookings, txns: txns,
		gateway: gateway, dispatcher: dispatcher, returnURL: returnURL,
	}
}

// ReservationResult is what a reserve call hands back to the transport
// layer.  RedirectURL is empty when no payment is required or when the
// request matched an existing reservation.
type ReservationResult struct {
	BookingID       uint64
	BookingStatus   string
	Reference       string
	AmountCents     uint32
	PaymentRequired bool
	RedirectURL     string
}

// Reserve atomically takes one unit of the timeslot and creates the
// booking, plus a pending transaction when the slot costs money.  A
// repeated request from a user who already holds a non-cancelled booking
// for the slot returns that reservation instead of creating a second
// one.  When payment is required the gateway call happens after commit;
// a gateway failure rolls the reservation back (booking and transaction
// cancelled, unit released) and surfaces vipps.ErrUnavailable.
func (s *Reservations) Reserve(ctx context.Context, timeslotID, userID uint64) (*ReservationResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Idempotent repeat: hand back the reservation the user already holds.
	if existing, err := s.bookings.ActiveByUserAndSlotTx(ctx, tx, userID, timeslotID); err != nil {
		return nil, err
	} else if existing != nil {
		res := &ReservationResult{BookingID: existing.ID, BookingStatus: existing.Status}
		if existing.Status == model.BookingPendingPayment {
			t, err := s.txns.ActiveByBookingTx(ctx, tx, existing.ID)
			if err != nil {
				return nil, err
			}
			if t != nil {
				res.Reference = t.Reference
				res.AmountCents = t.AmountCents
				res.PaymentRequired = true
			}
		}
		return res, nil
	}

	// Check-and-decrement in one conditional update; the one place in the
	// system that needs a strict ordering guarantee.
	if err := s.slots.ReserveUnitTx(ctx, tx, timeslotID); err != nil {
		return nil, err
	}
	slot, err := s.slots.GetByIDTx(ctx, tx, timeslotID)
	if err != nil {
		return nil, err
	}

	// Free timeslots confirm immediately; no transaction is opened.
	if slot.PriceCents == 0 {
		token, err := randomToken(32)
		if err != nil {
			return nil, err
		}
		booking := &model.Booking{
			TimeslotID: timeslotID, UserID: userID,
			Status: model.BookingConfirmed, AccessToken: &token,
		}
		if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		s.dispatcher.Notify(ctx, userID, model.NotifyBookingConfirmed, slot.EventID, 0, "")
		return &ReservationResult{
			BookingID:     booking.ID,
			BookingStatus: model.BookingConfirmed,
		}, nil
	}

	booking := &model.Booking{
		TimeslotID: timeslotID, UserID: userID, Status: model.BookingPendingPayment,
	}
	if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
		return nil, err
	}
	txn := &model.Transaction{
		BookingID:   booking.ID,
		Reference:   uuid.NewString(),
		AmountCents: slot.PriceCents,
		Status:      model.TransactionPending,
	}
	if err := s.txns.CreateTx(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	// The gateway call runs after commit so an AUTHORIZED webhook racing
	// the response always finds the transaction row.
	redirect, err := s.gateway.CreatePayment(ctx, txn.Reference, txn.AmountCents, s.returnURL)
	if err != nil {
		s.rollbackReservation(ctx, booking.ID, txn.ID, timeslotID)
		return nil, fmt.Errorf("create payment for %s: %w", txn.Reference, err)
	}

	return &ReservationResult{
		BookingID:       booking.ID,
		BookingStatus:   model.BookingPendingPayment,
		Reference:       txn.Reference,
		AmountCents:     txn.AmountCents,
		PaymentRequired: true,
		RedirectURL:     redirect,
	}, nil
}

// rollbackReservation compensates a committed reservation whose payment
// could not be opened: transaction and booking are cancelled and the
// unit goes back to the timeslot.  Guarded transitions make this safe
// against a webhook racing in between.
func (s *Reservations) rollbackReservation(ctx context.Context, bookingID, txnID, timeslotID uint64) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("reserve: rollback begin failed for booking %d: %v", bookingID, err)
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := s.txns.CancelPendingTx(ctx, tx, txnID); err != nil {
		log.Printf("reserve: rollback transaction %d failed: %v", txnID, err)
		return
	}
	moved, err := s.bookings.CancelPendingTx(ctx, tx, bookingID)
	if err != nil {
		log.Printf("reserve: rollback booking %d failed: %v", bookingID, err)
		return
	}
	if moved {
		if err := s.slots.ReleaseUnitTx(ctx, tx, timeslotID); err != nil {
			log.Printf("reserve: rollback release for timeslot %d failed: %v", timeslotID, err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("reserve: rollback commit failed for booking %d: %v", bookingID, err)
		return
	}
	committed = true
}

// StatusResult is the owner-only payment status view.
type StatusResult struct {
	Reference     string
	Status        string
	BookingID     uint64
	BookingStatus string
	AccessToken   *string
}

// Status returns the state of a payment reference for its owner.  The
// access token is only included once the booking is confirmed.  Unknown
// references surface sql.ErrNoRows; references owned by someone else
// surface repository.ErrForbidden without leaking their state.
func (s *Reservations) Status(ctx context.Context, reference string, userID uint64) (*StatusResult, error) {
	ps, err := s.txns.StatusByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if ps.UserID != userID {
		return nil, repository.ErrForbidden
	}
	res := &StatusResult{
		Reference:     ps.Reference,
		Status:        ps.Status,
		BookingID:     ps.BookingID,
		BookingStatus: ps.BookingStatus,
	}
	if ps.BookingStatus == model.BookingConfirmed {
		res.AccessToken = ps.AccessToken
	}
	return res, nil
}

// ListBookings returns the caller's bookings with event details.
func (s *Reservations) ListBookings(ctx context.Context, userID uint64) ([]repository.BookingDetail, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// randomToken generates a random hexadecimal string from n bytes of
// cryptographically secure data.  Confirmed bookings carry a 64
// character token used later for entry validation.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
