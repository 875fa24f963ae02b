package model

// User carries the minimal profile data this service reads.  Account
// management is an external collaborator; we only need a display name for
// notification messages and an optional email address to deliver them to.
type User struct {
	ID    uint64  // users.id
	Name  string  // users.name
	Email *string // users.email (nullable; nil silently disables email)
}
