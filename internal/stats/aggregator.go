// Package stats derives ticket health rollups from a snapshot of ticket facts.
package stats

import (
	"math"
	"time"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
)

// Statistics summarizes the ticket set at one instant.
type Statistics struct {
	Total                 int            `json:"total"`
	Open                  int            `json:"open"`
	Resolved              int            `json:"resolved"`
	Closed                int            `json:"closed"`
	SLABreach             int            `json:"slaBreach"`
	TicketsCreatedToday   int            `json:"ticketsCreatedToday"`
	ByStatus              map[string]int `json:"byStatus"`
	ByPriority            map[string]int `json:"byPriority"`
	ByCategory            map[string]int `json:"byCategory"`
	AverageResolutionTime int64          `json:"averageResolutionTime"`
}

// Aggregate computes Statistics over facts. "Today" is the calendar day of now
// in loc. Rows referencing ids missing from the catalog are counted under "unknown".
func Aggregate(facts []domain.TicketFacts, catalog *reference.Catalog, now time.Time, loc *time.Location) Statistics {
	if loc == nil {
		loc = time.UTC
	}
	out := Statistics{
		Total:      len(facts),
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
		ByCategory: map[string]int{},
	}

	todayY, todayM, todayD := now.In(loc).Date()
	var resolvedHours float64
	var resolvedCount int

	for _, f := range facts {
		switch {
		case f.StatusID == domain.StatusResolved:
			out.Resolved++
		case f.StatusID == domain.StatusClosed:
			out.Closed++
		case !catalog.IsTerminal(f.StatusID):
			out.Open++
		}
		if f.Breached {
			out.SLABreach++
		}
		if y, m, d := f.CreatedAt.In(loc).Date(); y == todayY && m == todayM && d == todayD {
			out.TicketsCreatedToday++
		}

		out.ByStatus[statusName(catalog, f.StatusID)]++
		out.ByPriority[priorityName(catalog, f.PriorityID)]++
		out.ByCategory[categoryName(catalog, f.CategoryID)]++

		if f.ResolvedAt != nil {
			resolvedHours += f.ResolvedAt.Sub(f.CreatedAt).Hours()
			resolvedCount++
		}
	}

	if resolvedCount > 0 {
		out.AverageResolutionTime = int64(math.Round(resolvedHours / float64(resolvedCount)))
	}
	return out
}

const unknownName = "unknown"

func statusName(c *reference.Catalog, id int64) string {
	if row, ok := c.Status(id); ok {
		return row.Name
	}
	return unknownName
}

func priorityName(c *reference.Catalog, id int64) string {
	if row, ok := c.Priority(id); ok {
		return row.Name
	}
	return unknownName
}

func categoryName(c *reference.Catalog, id int64) string {
	if row, ok := c.Category(id); ok {
		return row.Name
	}
	return unknownName
}
