// Package reference holds the read-only lookup tables tickets are classified against.
package reference

import (
	"sort"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
)

// Catalog indexes categories, priorities and statuses by id. It is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	categories map[int64]domain.Category
	priorities map[int64]domain.Priority
	statuses   map[int64]domain.Status
}

// NewCatalog builds a catalog from rows loaded from storage.
func NewCatalog(categories []domain.Category, priorities []domain.Priority, statuses []domain.Status) *Catalog {
	c := &Catalog{
		categories: make(map[int64]domain.Category, len(categories)),
		priorities: make(map[int64]domain.Priority, len(priorities)),
		statuses:   make(map[int64]domain.Status, len(statuses)),
	}
	for _, row := range categories {
		c.categories[row.ID] = row
	}
	for _, row := range priorities {
		c.priorities[row.ID] = row
	}
	for _, row := range statuses {
		c.statuses[row.ID] = row
	}
	return c
}

// Default returns the install-time seed used by the in-memory store and the
// initial migration.
func Default() *Catalog {
	return NewCatalog(DefaultCategories(), DefaultPriorities(), DefaultStatuses())
}

func DefaultCategories() []domain.Category {
	return []domain.Category{
		{ID: 1, Name: "Technical Support", Color: "#3B82F6"},
		{ID: 2, Name: "Bug Report", Color: "#EF4444"},
		{ID: 3, Name: "Feature Request", Color: "#10B981"},
		{ID: 4, Name: "Access Request", Color: "#F59E0B"},
		{ID: 5, Name: "Microsoft 365 Issue", Color: "#8B5CF6"},
		{ID: 6, Name: "GitHub/Copilot Issue", Color: "#EC4899"},
		{ID: 7, Name: "General Inquiry", Color: "#6B7280"},
	}
}

func DefaultPriorities() []domain.Priority {
	return []domain.Priority{
		{ID: domain.PriorityLow, Name: "Low", Level: 1, Color: "#10B981"},
		{ID: domain.PriorityMedium, Name: "Medium", Level: 2, Color: "#F59E0B"},
		{ID: domain.PriorityHigh, Name: "High", Level: 3, Color: "#EF4444"},
		{ID: domain.PriorityCritical, Name: "Critical", Level: 4, Color: "#DC2626"},
	}
}

func DefaultStatuses() []domain.Status {
	return []domain.Status{
		{ID: domain.StatusOpen, Name: "Open", Color: "#3B82F6"},
		{ID: domain.StatusInProgress, Name: "In Progress", Color: "#F59E0B"},
		{ID: domain.StatusWaitingForResponse, Name: "Waiting for Response", Color: "#8B5CF6"},
		{ID: domain.StatusResolved, Name: "Resolved", Color: "#10B981", Terminal: true},
		{ID: domain.StatusClosed, Name: "Closed", Color: "#6B7280", Terminal: true},
		{ID: domain.StatusReopened, Name: "Reopened", Color: "#EF4444"},
	}
}

func (c *Catalog) Category(id int64) (domain.Category, bool) {
	row, ok := c.categories[id]
	return row, ok
}

func (c *Catalog) Priority(id int64) (domain.Priority, bool) {
	row, ok := c.priorities[id]
	return row, ok
}

func (c *Catalog) Status(id int64) (domain.Status, bool) {
	row, ok := c.statuses[id]
	return row, ok
}

// Categories lists categories ordered by name.
func (c *Catalog) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(c.categories))
	for _, row := range c.categories {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Priorities lists priorities ordered by level.
func (c *Catalog) Priorities() []domain.Priority {
	out := make([]domain.Priority, 0, len(c.priorities))
	for _, row := range c.priorities {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// Statuses lists statuses ordered by id.
func (c *Catalog) Statuses() []domain.Status {
	out := make([]domain.Status, 0, len(c.statuses))
	for _, row := range c.statuses {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsTerminal reports whether breach detection stops at this status.
func (c *Catalog) IsTerminal(statusID int64) bool {
	return c.statuses[statusID].Terminal
}

// TerminalStatusIDs returns the ids of all terminal statuses in ascending order.
func (c *Catalog) TerminalStatusIDs() []int64 {
	var ids []int64
	for _, row := range c.Statuses() {
		if row.Terminal {
			ids = append(ids, row.ID)
		}
	}
	return ids
}

// OpenStatusIDs returns the ids of all non-terminal statuses in ascending order.
func (c *Catalog) OpenStatusIDs() []int64 {
	var ids []int64
	for _, row := range c.Statuses() {
		if !row.Terminal {
			ids = append(ids, row.ID)
		}
	}
	return ids
}
