package model

import "time"

// Event is the host-owned container for timeslots.  Event management
// itself (creation, editing) lives outside this service; events are read
// here only to compose notifications and public availability responses.
type Event struct {
	ID        uint64    // events.id
	HostID    uint64    // events.host_id
	Title     string    // events.title
	CreatedAt time.Time // events.created_at
}
