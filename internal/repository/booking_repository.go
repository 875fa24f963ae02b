package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

// BookingRepo provides data access to the bookings table.  Status
// transitions are expressed as conditional UPDATEs that include the
// expected current status in the WHERE clause, so a transition applied
// twice (or applied after the row already reached a terminal state)
// affects zero rows instead of corrupting state.  All timestamps are
// stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID on the provided booking.
// Status must be one of the model.Booking* constants.  The caller must
// commit or roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (timeslot_id, user_id, status, access_token) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.TimeslotID, b.UserID, b.Status, b.AccessToken)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByIDTx returns a single booking within a transaction.
// ErrBookingNotFound is returned when the ID does not exist.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT id, timeslot_id, user_id, status, access_token, created_at, updated_at
               FROM bookings WHERE id = ?`
	var b model.Booking
	var token sql.NullString
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.TimeslotID, &b.UserID, &b.Status, &token, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if token.Valid {
		t := token.String
		b.AccessToken = &t
	}
	return &b, nil
}

// ActiveByUserAndSlotTx returns the caller's non-cancelled booking for a
// timeslot, or nil when none exists.  Used to make repeated reserve
// requests idempotent instead of creating duplicate claims.
func (r *BookingRepo) ActiveByUserAndSlotTx(ctx context.Context, tx *sql.Tx, userID, timeslotID uint64) (*model.Booking, error) {
	const q = `SELECT id, timeslot_id, user_id, status, access_token, created_at, updated_at
               FROM bookings
               WHERE user_id = ? AND timeslot_id = ? AND status <> ?
               ORDER BY id DESC LIMIT 1`
	var b model.Booking
	var token sql.NullString
	err := tx.QueryRowContext(ctx, q, userID, timeslotID, model.BookingCancelled).Scan(
		&b.ID, &b.TimeslotID, &b.UserID, &b.Status, &token, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if token.Valid {
		t := token.String
		b.AccessToken = &t
	}
	return &b, nil
}

// ConfirmTx moves a booking from PENDING_PAYMENT to CONFIRMED and stores
// the freshly generated access token.  It reports whether a row actually
// moved; false means the booking was already terminal and the caller
// should treat the confirmation as a no-op.
func (r *BookingRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id uint64, accessToken string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, access_token = ? WHERE id = ? AND status = ?`,
		model.BookingConfirmed, accessToken, id, model.BookingPendingPayment)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelPendingTx moves a booking from PENDING_PAYMENT to CANCELLED.
// Used by the webhook reconciler, which must never cancel a booking
// that has already been confirmed by an earlier AUTHORIZED event.
func (r *BookingRepo) CancelPendingTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		model.BookingCancelled, id, model.BookingPendingPayment)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelActiveTx moves a booking out of either non-terminal-cancelled
// state (PENDING_PAYMENT or CONFIRMED) into CANCELLED.  Used by the
// user-facing cancellation path.  Returns false when the booking was
// already cancelled.
func (r *BookingRepo) CancelActiveTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status IN (?, ?)`,
		model.BookingCancelled, id, model.BookingPendingPayment, model.BookingConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BookingDetail is a booking joined with its timeslot and event for
// display to customers.
type BookingDetail struct {
	ID          uint64  `json:"id"`
	TimeslotID  uint64  `json:"timeslot_id"`
	Status      string  `json:"status"`
	AccessToken *string `json:"access_token,omitempty"`
	EventID     uint64  `json:"event_id"`
	EventTitle  string  `json:"event_title"`
	StartsAt    string  `json:"starts_at"`
	PriceCents  uint32  `json:"price_cents"`
}

// ListByUser returns all bookings for the given user, newest first,
// along with timeslot and event details.  When no bookings exist an
// empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.timeslot_id, b.status, b.access_token,
                      e.id, e.title, t.starts_at, t.price_cents
               FROM bookings b
               JOIN timeslots t ON t.id = b.timeslot_id
               JOIN events e ON e.id = t.event_id
               WHERE b.user_id = ?
               ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		var token sql.NullString
		var startsAt time.Time
		if err := rows.Scan(
			&d.ID, &d.TimeslotID, &d.Status, &token,
			&d.EventID, &d.EventTitle, &startsAt, &d.PriceCents,
		); err != nil {
			return nil, err
		}
		if token.Valid && d.Status == model.BookingConfirmed {
			t := token.String
			d.AccessToken = &t
		}
		d.StartsAt = startsAt.UTC().Format(time.RFC3339)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
