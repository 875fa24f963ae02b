package repository

import (
	"context"
	"database/sql"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
)

// EventRepo reads event rows for notification composition and public
// availability responses.  Event CRUD lives outside this service.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetByID returns an event, or sql.ErrNoRows when the ID is unknown.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT id, host_id, title, created_at FROM events WHERE id = ?`
	var e model.Event
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.HostID, &e.Title, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
