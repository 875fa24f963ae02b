package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
)

// Gateway webhook event names.  Anything else is acknowledged and
// ignored so the gateway never retries events we will never act on.
const (
	EventAuthorized = "AUTHORIZED"
	EventCancelled  = "CANCELLED"
	EventExpired    = "EXPIRED"
	EventFailed     = "FAILED"
	EventRejected   = "REJECTED"
)

// Reconciler applies asynchronously delivered gateway outcomes to
// transaction and booking state.  It is the only component allowed to
// move a transaction into CONFIRMED.  All transitions are guarded on
// the current status inside the UPDATE that writes the new one, which
// makes at-least-once, out-of-order and concurrent webhook delivery a
// no-op rather than a double effect.
type Reconciler struct {
	db         *sql.DB
	slots      *repository.TimeslotRepo
	bookings   *repository.BookingRepo
	txns       *repository.TransactionRepo
	dispatcher *Dispatcher
}

// NewReconciler constructs the webhook reconciler.
func NewReconciler(db *sql.DB, slots *repository.TimeslotRepo, bookings *repository.BookingRepo,
	txns *repository.TransactionRepo, dispatcher *Dispatcher) *Reconciler {
	return &Reconciler{db: db, slots: slots, bookings: bookings, txns: txns, dispatcher: dispatcher}
}

// Apply processes one webhook event.  A nil return means the event was
// handled or deliberately dropped (unknown reference, already-terminal
// transaction, unrecognized name) and the gateway should stop
// redelivering.  A non-nil return means a genuine internal failure the
// gateway should retry.
func (r *Reconciler) Apply(ctx context.Context, reference, pspReference, name string) error {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case EventAuthorized:
		return r.applyAuthorized(ctx, reference, pspReference)
	case EventCancelled, EventExpired:
		return r.applyTerminated(ctx, reference, pspReference, model.NotifyBookingCancelled)
	case EventFailed, EventRejected:
		return r.applyTerminated(ctx, reference, pspReference, model.NotifyPaymentFailed)
	default:
		log.Printf("reconciler: ignoring event %q for reference %s", name, reference)
		return nil
	}
}

// applyAuthorized confirms the transaction and its booking and issues
// the booking's access token.
func (r *Reconciler) applyAuthorized(ctx context.Context, reference, pspReference string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	txn, err := r.txns.GetByReferenceTx(ctx, tx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		// Spoofed or obsolete reference: acknowledge, log, touch nothing.
		log.Printf("reconciler: AUTHORIZED for unknown reference %s", reference)
		return nil
	}
	if err != nil {
		return err
	}

	moved, err := r.txns.ConfirmByReferenceTx(ctx, tx, reference, pspReference)
	if err != nil {
		return err
	}
	if !moved {
		// Duplicate or late delivery against a terminal transaction.
		return nil
	}
	token, err := randomToken(32)
	if err != nil {
		return err
	}
	if _, err := r.bookings.ConfirmTx(ctx, tx, txn.BookingID, token); err != nil {
		return err
	}
	booking, err := r.bookings.GetByIDTx(ctx, tx, txn.BookingID)
	if err != nil {
		return err
	}
	slot, err := r.slots.GetByIDTx(ctx, tx, booking.TimeslotID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	r.dispatcher.Notify(ctx, booking.UserID, model.NotifyBookingConfirmed, slot.EventID, 0, "")
	return nil
}

// applyTerminated cancels a still-pending transaction and booking and
// returns the reserved unit to the timeslot.  A transaction already
// confirmed by an earlier AUTHORIZED event is left alone: terminal
// states never move again.
func (r *Reconciler) applyTerminated(ctx context.Context, reference, pspReference string, notifyType model.NotificationType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	txn, err := r.txns.GetByReferenceTx(ctx, tx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		log.Printf("reconciler: termination event for unknown reference %s", reference)
		return nil
	}
	if err != nil {
		return err
	}

	moved, err := r.txns.CancelByReferenceTx(ctx, tx, reference, pspReference)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	booking, err := r.bookings.GetByIDTx(ctx, tx, txn.BookingID)
	if err != nil {
		return err
	}
	bookingMoved, err := r.bookings.CancelPendingTx(ctx, tx, txn.BookingID)
	if err != nil {
		return err
	}
	if bookingMoved {
		if err := r.slots.ReleaseUnitTx(ctx, tx, booking.TimeslotID); err != nil {
			return err
		}
	}
	slot, err := r.slots.GetByIDTx(ctx, tx, booking.TimeslotID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	if bookingMoved {
		r.dispatcher.Notify(ctx, booking.UserID, notifyType, slot.EventID, 0, "")
	}
	return nil
}
