package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketUpdated        EventType = "ticket_updated"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketDeleted        EventType = "ticket_deleted"
	EventTicketCommentAdded   EventType = "ticket_comment_added"
	EventTicketCommentUpdated EventType = "ticket_comment_updated"
	EventTicketCommentDeleted EventType = "ticket_comment_deleted"
	EventTicketWatcherAdded   EventType = "ticket_watcher_added"
	EventTicketWatcherRemoved EventType = "ticket_watcher_removed"
	EventTicketSLABreached    EventType = "ticket_sla_breached"
)

// AllEventTypes lists every type the lifecycle emits.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketUpdated,
		EventTicketStatusChanged,
		EventTicketDeleted,
		EventTicketCommentAdded,
		EventTicketCommentUpdated,
		EventTicketCommentDeleted,
		EventTicketWatcherAdded,
		EventTicketWatcherRemoved,
		EventTicketSLABreached,
	}
}

// Event represents a domain event emitted by services. ActorID is nil for
// changes made by the system (the breach sweeper).
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TicketID     int64     `json:"ticketId"`
	TicketNumber string    `json:"ticketNumber,omitempty"`
	ActorID      *int64    `json:"actorId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string  `json:"title"`
	CategoryID int64   `json:"categoryId"`
	PriorityID int64   `json:"priorityId"`
	AssignedTo *int64  `json:"assignedTo,omitempty"`
	Watchers   []int64 `json:"watchers"`
}

// TicketUpdatedPayload lists the camelCase names of the fields an update touched.
type TicketUpdatedPayload struct {
	Fields  []string `json:"fields"`
	Version int64    `json:"version"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatusID int64 `json:"oldStatusId"`
	NewStatusID int64 `json:"newStatusId"`
}

// CommentPayload is shared by the comment events.
type CommentPayload struct {
	CommentID   int64  `json:"commentId"`
	AuthorID    int64  `json:"authorId,omitempty"`
	IsInternal  bool   `json:"isInternal,omitempty"`
	BodyPreview string `json:"bodyPreview,omitempty"`
}

// WatcherPayload is shared by the watcher events.
type WatcherPayload struct {
	UserID int64 `json:"userId"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	ResolutionDeadline time.Time `json:"resolutionDeadline"`
}
