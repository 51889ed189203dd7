// Package memory is an in-process implementation of the repository interfaces,
// used when no Postgres DSN is configured and by tests. A single mutex plays
// the role of the database transaction: every method is atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/numbering"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository"
)

// Store holds all rows. Use Tickets, Comments and History for the repository views.
type Store struct {
	mu sync.Mutex

	tickets   map[int64]*domain.Ticket
	watchers  map[int64]map[int64]struct{}
	comments  map[int64]*domain.Comment
	history   []domain.TicketHistory
	sequences map[int]int64

	nextTicketID  int64
	nextCommentID int64
	nextHistoryID int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tickets:   make(map[int64]*domain.Ticket),
		watchers:  make(map[int64]map[int64]struct{}),
		comments:  make(map[int64]*domain.Comment),
		sequences: make(map[int]int64),
	}
}

func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket, year int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.sequences[year] + 1
	number := numbering.Format(year, counter)
	for _, existing := range s.tickets {
		if existing.Number == number {
			return repository.ErrDuplicateNumber
		}
	}
	s.sequences[year] = counter

	s.nextTicketID++
	ticket.ID = s.nextTicketID
	ticket.Number = number
	ticket.Version = 1
	ticket.UpdatedAt = ticket.CreatedAt
	if ticket.CustomFields == nil {
		ticket.CustomFields = map[string]any{}
	}

	stored := cloneTicket(ticket)
	stored.Comments = nil
	stored.Watchers = nil
	s.tickets[ticket.ID] = stored

	set := make(map[int64]struct{}, len(ticket.Watchers))
	for _, userID := range ticket.Watchers {
		set[userID] = struct{}{}
	}
	s.watchers[ticket.ID] = set
	return nil
}

func (r ticketRepo) ResyncSequence(_ context.Context, year int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	numbers := make([]string, 0, len(s.tickets))
	for _, t := range s.tickets {
		numbers = append(numbers, t.Number)
	}
	if max := numbering.MaxCounter(numbers, year); max > s.sequences[year] {
		s.sequences[year] = max
	}
	return nil
}

// SetSequence overrides a year's counter. Tests use it to simulate rows that
// predate the sequence.
func (s *Store) SetSequence(year int, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[year] = value
}

func (r ticketRepo) Update(_ context.Context, id int64, changes repository.TicketChanges) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Version != changes.ExpectedVersion {
		return repository.ErrConflict
	}

	p := changes.Patch
	if p.Title.Set {
		t.Title = p.Title.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.CategoryID.Set {
		t.CategoryID = p.CategoryID.Value
	}
	if p.PriorityID.Set {
		t.PriorityID = p.PriorityID.Value
	}
	if p.StatusID.Set {
		t.StatusID = p.StatusID.Value
	}
	if p.AssignedTo.Set {
		t.AssignedTo = cloneInt(p.AssignedTo.Value)
	}
	if p.EstimatedHours.Set {
		t.EstimatedHours = cloneFloat(p.EstimatedHours.Value)
	}
	if p.ActualHours.Set {
		t.ActualHours = cloneFloat(p.ActualHours.Value)
	}
	if p.CustomFields.Set {
		t.CustomFields = cloneFields(p.CustomFields.Value)
	}
	if changes.ResolvedAt != nil && t.ResolvedAt == nil {
		t.ResolvedAt = cloneTime(changes.ResolvedAt)
	}
	if changes.ClosedAt != nil && t.ClosedAt == nil {
		t.ClosedAt = cloneTime(changes.ClosedAt)
	}
	t.UpdatedAt = changes.UpdatedAt
	t.Version++

	for i := range changes.History {
		s.appendHistory(&changes.History[i])
	}
	return nil
}

func (r ticketRepo) Delete(_ context.Context, id int64) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return false, nil
	}
	delete(s.tickets, id)
	delete(s.watchers, id)
	for cid, c := range s.comments {
		if c.TicketID == id {
			delete(s.comments, cid)
		}
	}
	kept := s.history[:0]
	for _, h := range s.history {
		if h.TicketID != id {
			kept = append(kept, h)
		}
	}
	s.history = kept
	return true, nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r ticketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.Number == number {
			return cloneTicket(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var result []domain.Ticket
	for _, t := range s.tickets {
		if !matchID(filter.StatusID, t.StatusID) ||
			!matchID(filter.PriorityID, t.PriorityID) ||
			!matchID(filter.CategoryID, t.CategoryID) ||
			!matchID(filter.CreatedBy, t.CreatedBy) {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.Number), search) {
			continue
		}
		result = append(result, *cloneTicket(t))
	}

	sortBy := filter.SortBy
	if !sortBy.Valid() {
		sortBy = repository.SortByCreatedAt
	}
	sort.SliceStable(result, func(i, j int) bool {
		c := compareTickets(&result[i], &result[j], sortBy)
		if c == 0 {
			c = compareInt(result[i].ID, result[j].ID)
		}
		if filter.SortAsc {
			return c < 0
		}
		return c > 0
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r ticketRepo) Watchers(_ context.Context, ticketID int64) ([]int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.watchers[ticketID]))
	for id := range s.watchers[ticketID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r ticketRepo) AddWatcher(_ context.Context, ticketID, userID int64, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	t.UpdatedAt = at
	s.watchers[ticketID][userID] = struct{}{}
	return nil
}

func (r ticketRepo) RemoveWatcher(_ context.Context, ticketID, userID int64, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	t.UpdatedAt = at
	delete(s.watchers[ticketID], userID)
	return nil
}

func (r ticketRepo) Facts(_ context.Context) ([]domain.TicketFacts, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := make([]domain.TicketFacts, 0, len(s.tickets))
	for _, t := range s.tickets {
		facts = append(facts, domain.TicketFacts{
			StatusID:   t.StatusID,
			PriorityID: t.PriorityID,
			CategoryID: t.CategoryID,
			Breached:   t.SLA.Breached,
			CreatedAt:  t.CreatedAt,
			ResolvedAt: cloneTime(t.ResolvedAt),
		})
	}
	return facts, nil
}

func (r ticketRepo) OverdueIDs(_ context.Context, now time.Time, terminal []int64) ([]int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, t := range s.tickets {
		if overdue(t, now, terminal) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r ticketRepo) MarkBreached(_ context.Context, id int64, now time.Time, terminal []int64, entry *domain.TicketHistory) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok || !overdue(t, now, terminal) {
		return false, nil
	}
	t.SLA.Breached = true
	if entry != nil {
		s.appendHistory(entry)
	}
	return true, nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[comment.TicketID]
	if !ok {
		return repository.ErrNotFound
	}
	s.nextCommentID++
	comment.ID = s.nextCommentID
	c := *comment
	s.comments[c.ID] = &c
	t.UpdatedAt = comment.CreatedAt
	return nil
}

func (r commentRepo) Update(_ context.Context, ticketID, commentID int64, content string, at time.Time) (*domain.Comment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.TicketID != ticketID {
		return nil, repository.ErrNotFound
	}
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Content = content
	c.UpdatedAt = cloneTime(&at)
	t.UpdatedAt = at
	out := *c
	out.UpdatedAt = cloneTime(c.UpdatedAt)
	return &out, nil
}

func (r commentRepo) Delete(_ context.Context, ticketID, commentID int64, at time.Time) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.TicketID != ticketID {
		return false, nil
	}
	delete(s.comments, commentID)
	if t, ok := s.tickets[ticketID]; ok {
		t.UpdatedAt = at
	}
	return true, nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []domain.Comment{}
	for _, c := range s.comments {
		if c.TicketID == ticketID {
			out := *c
			out.UpdatedAt = cloneTime(c.UpdatedAt)
			result = append(result, out)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []domain.TicketHistory{}
	for _, h := range s.history {
		if h.TicketID == ticketID {
			result = append(result, cloneHistory(h))
		}
	}
	return result, nil
}

// appendHistory must be called with s.mu held.
func (s *Store) appendHistory(entry *domain.TicketHistory) {
	s.nextHistoryID++
	entry.ID = s.nextHistoryID
	s.history = append(s.history, cloneHistory(*entry))
}

func overdue(t *domain.Ticket, now time.Time, terminal []int64) bool {
	if t.SLA.Breached || !t.SLA.ResolutionDeadline.Before(now) {
		return false
	}
	for _, id := range terminal {
		if t.StatusID == id {
			return false
		}
	}
	return true
}

func matchID(want *int64, got int64) bool {
	return want == nil || *want == got
}

func compareTickets(a, b *domain.Ticket, field repository.SortField) int {
	switch field {
	case repository.SortByID:
		return compareInt(a.ID, b.ID)
	case repository.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case repository.SortByPriority:
		return compareInt(a.PriorityID, b.PriorityID)
	case repository.SortByStatus:
		return compareInt(a.StatusID, b.StatusID)
	case repository.SortByNumber:
		return strings.Compare(a.Number, b.Number)
	case repository.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	out.AssignedTo = cloneInt(t.AssignedTo)
	out.EstimatedHours = cloneFloat(t.EstimatedHours)
	out.ActualHours = cloneFloat(t.ActualHours)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	out.CustomFields = cloneFields(t.CustomFields)
	if t.Watchers != nil {
		out.Watchers = append([]int64(nil), t.Watchers...)
	}
	if t.Comments != nil {
		out.Comments = append([]domain.Comment(nil), t.Comments...)
	}
	return &out
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the containers a decoded JSON value can hold.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneFields(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneHistory(h domain.TicketHistory) domain.TicketHistory {
	h.ChangedBy = cloneInt(h.ChangedBy)
	if h.OldValue != nil {
		h.OldValue = cloneFields(h.OldValue)
	}
	if h.NewValue != nil {
		h.NewValue = cloneFields(h.NewValue)
	}
	return h
}
