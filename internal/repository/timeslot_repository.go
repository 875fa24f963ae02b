package repository

import (
	"context"
	"database/sql"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

// TimeslotRepo provides data access to the timeslots table.  The
// remaining counter is the core safety invariant of the system: it is
// only ever changed through the conditional updates below, never through
// a read-modify-write cycle, so concurrent reservations can never push
// it below zero regardless of arrival order.
type TimeslotRepo struct {
	db *sql.DB
}

// NewTimeslotRepo returns a new TimeslotRepo bound to the given database.
func NewTimeslotRepo(db *sql.DB) *TimeslotRepo { return &TimeslotRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *TimeslotRepo) DB() *sql.DB { return r.db }

// GetByID returns a single timeslot.  ErrTimeslotNotFound is returned
// when the ID does not exist.
func (r *TimeslotRepo) GetByID(ctx context.Context, id uint64) (*model.Timeslot, error) {
	const q = `SELECT id, event_id, capacity, remaining, price_cents, starts_at, created_at, updated_at
               FROM timeslots WHERE id = ?`
	var ts model.Timeslot
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ts.ID, &ts.EventID, &ts.Capacity, &ts.Remaining, &ts.PriceCents,
		&ts.StartsAt, &ts.CreatedAt, &ts.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTimeslotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// GetByIDTx is GetByID within an existing transaction.
func (r *TimeslotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Timeslot, error) {
	const q = `SELECT id, event_id, capacity, remaining, price_cents, starts_at, created_at, updated_at
               FROM timeslots WHERE id = ?`
	var ts model.Timeslot
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&ts.ID, &ts.EventID, &ts.Capacity, &ts.Remaining, &ts.PriceCents,
		&ts.StartsAt, &ts.CreatedAt, &ts.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTimeslotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// ReserveUnitTx atomically takes one unit from the timeslot.  The check
// and the decrement happen in a single conditional UPDATE so two
// concurrent reservations can never both consume the last unit.  When no
// row is affected the timeslot is either full (ErrCapacityExceeded) or
// absent (ErrTimeslotNotFound); a follow-up existence check decides
// which.  The caller must commit or roll back the transaction.
func (r *TimeslotRepo) ReserveUnitTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE timeslots SET remaining = remaining - 1 WHERE id = ? AND remaining > 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM timeslots WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrTimeslotNotFound
	}
	if err != nil {
		return err
	}
	return ErrCapacityExceeded
}

// ReleaseUnitTx returns one unit to the timeslot.  The remaining <
// capacity guard bounds the counter from above so a stray double
// release can never make a slot appear larger than it is.  Releasing is
// only reachable through status-guarded booking transitions, so under
// normal operation the guard never fires.
func (r *TimeslotRepo) ReleaseUnitTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE timeslots SET remaining = remaining + 1 WHERE id = ? AND remaining < capacity`, id)
	return err
}
