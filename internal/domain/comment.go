package domain

import "time"

// Comment is an entry in a ticket's thread. UpdatedAt stays nil until the first edit.
type Comment struct {
	ID         int64
	TicketID   int64
	UserID     int64
	Content    string
	IsInternal bool
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}
