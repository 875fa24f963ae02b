package repository

import (
	"context"
	"database/sql"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

// UserRepo reads the minimal user data this service needs: display names
// for notification messages and optional email addresses plus per-type
// opt-out flags for delivery decisions.  Account management is handled
// by an external collaborator and never written from here.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// GetByID returns a user, or sql.ErrNoRows when the ID is unknown.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	const q = `SELECT id, name, email FROM users WHERE id = ?`
	var u model.User
	var email sql.NullString
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Name, &email); err != nil {
		return nil, err
	}
	if email.Valid {
		e := email.String
		u.Email = &e
	}
	return &u, nil
}

// NotificationPrefs returns the user's opt-out flags.  A user without a
// preferences row gets everything enabled, which matches the product
// default of opt-out rather than opt-in.
func (r *UserRepo) NotificationPrefs(ctx context.Context, userID uint64) (model.NotificationPreferences, error) {
	const q = `SELECT user_id, booking_confirmed, booking_cancelled, payment_failed
               FROM notification_preferences WHERE user_id = ?`
	var p model.NotificationPreferences
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&p.UserID, &p.BookingConfirmed, &p.BookingCancelled, &p.PaymentFailed,
	)
	if err == sql.ErrNoRows {
		return model.NotificationPreferences{
			UserID:           userID,
			BookingConfirmed: true,
			BookingCancelled: true,
			PaymentFailed:    true,
		}, nil
	}
	if err != nil {
		return model.NotificationPreferences{}, err
	}
	return p, nil
}
