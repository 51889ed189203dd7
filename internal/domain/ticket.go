package domain

import "time"

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             int64
	Number         string
	Title          string
	Description    string
	CategoryID     int64
	PriorityID     int64
	StatusID       int64
	CreatedBy      int64
	AssignedTo     *int64
	EstimatedHours *float64
	ActualHours    *float64
	CustomFields   map[string]any
	SLA            SLA
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	Comments       []Comment
	Watchers       []int64
}

// SLA holds the deadlines frozen at creation and the breach flag set by the sweeper.
type SLA struct {
	ResponseDeadline   time.Time
	ResolutionDeadline time.Time
	Breached           bool
}

// HasWatcher reports whether userID is in the watcher set.
func (t *Ticket) HasWatcher(userID int64) bool {
	for _, id := range t.Watchers {
		if id == userID {
			return true
		}
	}
	return false
}

// TicketPatch carries the subset of fields an update touches.
type TicketPatch struct {
	Title          Optional[string]
	Description    Optional[string]
	CategoryID     Optional[int64]
	PriorityID     Optional[int64]
	StatusID       Optional[int64]
	AssignedTo     Optional[*int64]
	EstimatedHours Optional[*float64]
	ActualHours    Optional[*float64]
	CustomFields   Optional[map[string]any]

	// ExpectedVersion, when set, rejects the update if the ticket moved on.
	ExpectedVersion *int64
}

// IsEmpty reports whether no field is being changed.
func (p TicketPatch) IsEmpty() bool {
	return !p.Title.Set &&
		!p.Description.Set &&
		!p.CategoryID.Set &&
		!p.PriorityID.Set &&
		!p.StatusID.Set &&
		!p.AssignedTo.Set &&
		!p.EstimatedHours.Set &&
		!p.ActualHours.Set &&
		!p.CustomFields.Set
}

// TicketFacts is the projection the statistics aggregator works over.
type TicketFacts struct {
	StatusID   int64
	PriorityID int64
	CategoryID int64
	Breached   bool
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
