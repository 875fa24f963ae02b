package repository

import (
	"context"
	"database/sql"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

// TransactionRepo provides data access to the transactions table.  The
// reference column is unique and immutable; it is the only correlation
// key between internal state and gateway webhooks, so every webhook-side
// mutation here is keyed by reference and guarded on the current status
// within the same UPDATE.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// CreateTx inserts a new pending transaction within the scope of an
// existing database transaction and populates the generated ID.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	const q = `INSERT INTO transactions (booking_id, reference, amount_cents, status) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.BookingID, t.Reference, t.AmountCents, t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByReferenceTx returns the transaction with the given reference, or
// sql.ErrNoRows when the reference is unknown.  Webhooks for unknown
// references are accepted and dropped by the caller, so the sentinel is
// passed through unchanged.
func (r *TransactionRepo) GetByReferenceTx(ctx context.Context, tx *sql.Tx, reference string) (*model.Transaction, error) {
	const q = `SELECT id, booking_id, reference, psp_reference, amount_cents, status, created_at, updated_at
               FROM transactions WHERE reference = ?`
	var t model.Transaction
	var psp sql.NullString
	err := tx.QueryRowContext(ctx, q, reference).Scan(
		&t.ID, &t.BookingID, &t.Reference, &psp, &t.AmountCents, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if psp.Valid {
		p := psp.String
		t.PSPReference = &p
	}
	return &t, nil
}

// ConfirmByReferenceTx moves a transaction from PENDING to CONFIRMED and
// records the gateway-assigned PSP reference.  The status guard lives in
// the same UPDATE that writes the new status, so redelivered AUTHORIZED
// webhooks affect zero rows.  It reports whether the row moved.
func (r *TransactionRepo) ConfirmByReferenceTx(ctx context.Context, tx *sql.Tx, reference, pspReference string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, psp_reference = ? WHERE reference = ? AND status = ?`,
		model.TransactionConfirmed, pspReference, reference, model.TransactionPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelByReferenceTx moves a transaction from PENDING to CANCELLED.
// Used by the reconciler for CANCELLED/EXPIRED/FAILED/REJECTED events.
// A transaction already confirmed by an earlier AUTHORIZED event is left
// untouched and false is returned.
func (r *TransactionRepo) CancelByReferenceTx(ctx context.Context, tx *sql.Tx, reference, pspReference string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, psp_reference = ? WHERE reference = ? AND status = ?`,
		model.TransactionCancelled, pspReference, reference, model.TransactionPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelPendingTx cancels a pending transaction by primary key.  Used
// when rolling back a reservation after the gateway rejected payment
// creation and when a user cancels a booking that never got paid.
func (r *TransactionRepo) CancelPendingTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
		model.TransactionCancelled, id, model.TransactionPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelConfirmed marks a confirmed transaction cancelled after a
// successful refund.  Runs outside any multi-statement transaction
// because the refund call it follows is an external effect that has
// already happened.
func (r *TransactionRepo) CancelConfirmed(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
		model.TransactionCancelled, id, model.TransactionConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveByBookingTx returns the booking's non-cancelled transaction, or
// nil when every attempt has been cancelled.  A booking has at most one
// active transaction at a time.
func (r *TransactionRepo) ActiveByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Transaction, error) {
	const q = `SELECT id, booking_id, reference, psp_reference, amount_cents, status, created_at, updated_at
               FROM transactions
               WHERE booking_id = ? AND status <> ?
               ORDER BY id DESC LIMIT 1`
	var t model.Transaction
	var psp sql.NullString
	err := tx.QueryRowContext(ctx, q, bookingID, model.TransactionCancelled).Scan(
		&t.ID, &t.BookingID, &t.Reference, &psp, &t.AmountCents, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if psp.Valid {
		p := psp.String
		t.PSPReference = &p
	}
	return &t, nil
}

// PaymentStatus is the joined transaction/booking view returned to a
// customer polling for the outcome of a payment.
type PaymentStatus struct {
	Reference     string
	Status        string
	BookingID     uint64
	BookingStatus string
	AccessToken   *string
	UserID        uint64
}

// StatusByReference loads the payment status for a reference together
// with the owning user, so the caller can enforce that only the owner
// sees it.  Returns sql.ErrNoRows for unknown references.
func (r *TransactionRepo) StatusByReference(ctx context.Context, reference string) (*PaymentStatus, error) {
	const q = `SELECT t.reference, t.status, b.id, b.status, b.access_token, b.user_id
               FROM transactions t
               JOIN bookings b ON b.id = t.booking_id
               WHERE t.reference = ?`
	var ps PaymentStatus
	var token sql.NullString
	err := r.db.QueryRowContext(ctx, q, reference).Scan(
		&ps.Reference, &ps.Status, &ps.BookingID, &ps.BookingStatus, &token, &ps.UserID,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		t := token.String
		ps.AccessToken = &t
	}
	return &ps, nil
}
