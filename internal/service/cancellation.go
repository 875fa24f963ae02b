package service

import (
	"context"
	"database/sql"
	"log"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
	"github.com/khatteland/drikkepress-v2-sub001/internal/vipps"
)

// Cancellations is the cancellation/refund coordinator.  Cancelling is
// a bounded, synchronous operation: the booking is cancelled and the
// unit released in one database transaction, and only then is a refund
// attempted when one is owed.  A failing refund call is logged and
// reported, never allowed to undo or block the cancellation.
type Cancellations struct {
	db         *sql.DB
	slots      *repository.TimeslotRepo
	bookings   *repository.BookingRepo
	txns       *repository.TransactionRepo
	gateway    vipps.Gateway
	dispatcher *Dispatcher
}

// NewCancellations constructs the cancellation coordinator.
func NewCancellations(db *sql.DB, slots *repository.TimeslotRepo, bookings *repository.BookingRepo,
	txns *repository.TransactionRepo, gateway vipps.Gateway, dispatcher *Dispatcher) *Cancellations {
	return &Cancellations{db: db, slots: slots, bookings: bookings, txns: txns, gateway: gateway, dispatcher: dispatcher}
}

// CancelResult reports what happened to the booking and its money.
type CancelResult struct {
	RefundNeeded bool // a confirmed payment existed when cancelling
	Refunded     bool // the refund call actually succeeded
}

// Cancel cancels a booking on behalf of its owner.  The booking must be
// PENDING_PAYMENT or CONFIRMED; only the owning user (or an actor with
// the same ID, e.g. the reconciler acting for them) may cancel.  The
// state change and capacity release commit before the refund call, so
// cancellation is always honored even when the money-return step fails.
func (s *Cancellations) Cancel(ctx context.Context, bookingID, userID uint64) (*CancelResult, error) {
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

	booking, err := s.bookings.GetByIDTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, repository.ErrForbidden
	}

	moved, err := s.bookings.CancelActiveTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, repository.ErrConflict // already cancelled
	}
	if err := s.slots.ReleaseUnitTx(ctx, tx, booking.TimeslotID); err != nil {
		return nil, err
	}

	txn, err := s.txns.ActiveByBookingTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	refundNeeded := false
	if txn != nil {
		switch txn.Status {
		case model.TransactionConfirmed:
			// Leave the transaction confirmed until the refund is attempted;
			// a confirmed transaction joined to a cancelled booking is the
			// durable marker for money still owed.
			refundNeeded = true
		case model.TransactionPending:
			// Kill the open payment attempt so a late AUTHORIZED webhook
			// finds a terminal transaction and becomes a no-op.
			if _, err := s.txns.CancelPendingTx(ctx, tx, txn.ID); err != nil {
				return nil, err
			}
		}
	}
	slot, err := s.slots.GetByIDTx(ctx, tx, booking.TimeslotID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	result := &CancelResult{RefundNeeded: refundNeeded}
	if refundNeeded {
		if err := s.gateway.Refund(ctx, txn.Reference, txn.AmountCents); err != nil {
			log.Printf("cancel: refund failed for reference %s: %v", txn.Reference, err)
		} else {
			result.Refunded = true
			if _, err := s.txns.CancelConfirmed(ctx, txn.ID); err != nil {
				log.Printf("cancel: marking transaction %d refunded failed: %v", txn.ID, err)
			}
		}
	}

	s.dispatcher.Notify(ctx, booking.UserID, model.NotifyBookingCancelled, slot.EventID, userID, "")
	return result, nil
}
