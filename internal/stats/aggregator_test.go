package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
)

var now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func fact(status, priority, category int64, created time.Time) domain.TicketFacts {
	return domain.TicketFacts{StatusID: status, PriorityID: priority, CategoryID: category, CreatedAt: created}
}

func TestAggregate_Counts(t *testing.T) {
	yesterday := now.Add(-24 * time.Hour)
	facts := []domain.TicketFacts{
		fact(domain.StatusOpen, domain.PriorityLow, 1, now.Add(-time.Hour)),
		fact(domain.StatusOpen, domain.PriorityHigh, 1, yesterday),
		fact(domain.StatusResolved, domain.PriorityHigh, 2, yesterday),
		fact(domain.StatusClosed, domain.PriorityHigh, 2, yesterday),
	}
	facts[1].Breached = true

	got := Aggregate(facts, reference.Default(), now, time.UTC)

	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.Open)
	assert.Equal(t, 1, got.Resolved)
	assert.Equal(t, 1, got.Closed)
	assert.Equal(t, 1, got.SLABreach)
	assert.Equal(t, 1, got.TicketsCreatedToday)
	assert.Equal(t, map[string]int{"Open": 2, "Resolved": 1, "Closed": 1}, got.ByStatus)
	assert.Equal(t, map[string]int{"Low": 1, "High": 3}, got.ByPriority)
	assert.Equal(t, map[string]int{"Technical Support": 2, "Bug Report": 2}, got.ByCategory)
	assert.Zero(t, got.AverageResolutionTime)
}

func TestAggregate_OpenIncludesAllNonTerminal(t *testing.T) {
	facts := []domain.TicketFacts{
		fact(domain.StatusOpen, domain.PriorityLow, 1, now),
		fact(domain.StatusInProgress, domain.PriorityLow, 1, now),
		fact(domain.StatusWaitingForResponse, domain.PriorityLow, 1, now),
		fact(domain.StatusReopened, domain.PriorityLow, 1, now),
	}

	got := Aggregate(facts, reference.Default(), now, time.UTC)
	assert.Equal(t, 4, got.Open)
	assert.Len(t, got.ByStatus, 4)
}

func TestAggregate_AverageResolutionRounds(t *testing.T) {
	created := now.Add(-72 * time.Hour)
	r1 := created.Add(10 * time.Hour)
	r2 := created.Add(13 * time.Hour)
	facts := []domain.TicketFacts{
		{StatusID: domain.StatusResolved, PriorityID: 1, CategoryID: 1, CreatedAt: created, ResolvedAt: &r1},
		// Reopened tickets keep their first resolution time.
		{StatusID: domain.StatusReopened, PriorityID: 1, CategoryID: 1, CreatedAt: created, ResolvedAt: &r2},
		{StatusID: domain.StatusOpen, PriorityID: 1, CategoryID: 1, CreatedAt: created},
	}

	got := Aggregate(facts, reference.Default(), now, time.UTC)
	assert.Equal(t, int64(12), got.AverageResolutionTime, "11.5h rounds half away from zero")
}

func TestAggregate_TodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 15:00 UTC on May 20 is 01:00 on May 21 at UTC+10.
	facts := []domain.TicketFacts{
		fact(domain.StatusOpen, 1, 1, time.Date(2026, 5, 20, 14, 30, 0, 0, time.UTC)),
		fact(domain.StatusOpen, 1, 1, time.Date(2026, 5, 20, 13, 0, 0, 0, time.UTC)),
	}

	assert.Equal(t, 2, Aggregate(facts, reference.Default(), now, time.UTC).TicketsCreatedToday)
	assert.Equal(t, 1, Aggregate(facts, reference.Default(), now, loc).TicketsCreatedToday)
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, reference.Default(), now, nil)

	assert.Zero(t, got.Total)
	assert.Empty(t, got.ByStatus)
	assert.NotNil(t, got.ByCategory)
}

func TestAggregate_UnknownReference(t *testing.T) {
	got := Aggregate([]domain.TicketFacts{fact(99, 1, 1, now)}, reference.Default(), now, time.UTC)
	assert.Equal(t, map[string]int{"unknown": 1}, got.ByStatus)
}
