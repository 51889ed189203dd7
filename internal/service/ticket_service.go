package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/events"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository"
	"github.com/craigfelt/zerobitone-ticket-service/internal/sla"
	"github.com/craigfelt/zerobitone-ticket-service/internal/stats"
	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

// Authorizer is the capability check composed with the lifecycle. A nil
// Authorizer trusts the caller.
type Authorizer interface {
	CanMutateTicket(actor domain.Actor, ticket *domain.Ticket) bool
	CanDeleteTicket(actor domain.Actor) bool
	CanEditComment(actor domain.Actor, comment *domain.Comment) bool
	CanDeleteComment(actor domain.Actor, comment *domain.Comment) bool
	CanManageWatcher(actor domain.Actor, userID int64) bool
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	catalog    *reference.Catalog
	authorizer Authorizer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	loc        *time.Location

	publishTimeout time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	Catalog     *reference.Catalog
	Authorizer  Authorizer
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Location is the business timezone used for the numbering year and
	// "created today". Defaults to UTC.
	Location *time.Location
	// PublishTimeout bounds the delivery of one event. Defaults to 5s.
	PublishTimeout time.Duration
}

const defaultPublishTimeout = 5 * time.Second

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title          string
	Description    string
	CategoryID     int64
	PriorityID     *int64
	AssignedTo     *int64
	EstimatedHours *float64
	CustomFields   map[string]any
	WatcherIDs     []int64
}

// TicketListFilter describes listing filters.
type TicketListFilter = repository.TicketFilter

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		catalog:    deps.Catalog,
		authorizer: deps.Authorizer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
		loc:        deps.Location,

		publishTimeout: deps.PublishTimeout,
	}
	if s.catalog == nil {
		s.catalog = reference.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = defaultPublishTimeout
	}
	return s
}

// Catalog exposes the reference data the service validates against.
func (s *TicketService) Catalog() *reference.Catalog {
	return s.catalog
}

// CreateTicket validates input, allocates a number, freezes the SLA deadlines
// and stores the ticket with the creator as a watcher.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	var missing []string
	if isBlank(input.Title) {
		missing = append(missing, "title")
	}
	if isBlank(input.Description) {
		missing = append(missing, "description")
	}
	if input.CategoryID == 0 {
		missing = append(missing, "categoryId")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	if _, ok := s.catalog.Category(input.CategoryID); !ok {
		return nil, apperrors.NewInvalidReference("category", input.CategoryID)
	}
	priorityID := domain.PriorityMedium
	if input.PriorityID != nil {
		priorityID = *input.PriorityID
	}
	priority, ok := s.catalog.Priority(priorityID)
	if !ok {
		return nil, apperrors.NewInvalidReference("priority", priorityID)
	}

	now := s.now().UTC()
	responseDeadline, resolutionDeadline, err := sla.Deadlines(priority.Level, now)
	if err != nil {
		return nil, mapSLAError(err)
	}

	ticket := &domain.Ticket{
		Title:          input.Title,
		Description:    input.Description,
		CategoryID:     input.CategoryID,
		PriorityID:     priorityID,
		StatusID:       domain.StatusOpen,
		CreatedBy:      actor.ID,
		AssignedTo:     input.AssignedTo,
		EstimatedHours: input.EstimatedHours,
		CustomFields:   input.CustomFields,
		CreatedAt:      now,
		SLA: domain.SLA{
			ResponseDeadline:   responseDeadline,
			ResolutionDeadline: resolutionDeadline,
		},
		Watchers: watcherSet(actor.ID, input.WatcherIDs),
	}
	if ticket.CustomFields == nil {
		ticket.CustomFields = map[string]any{}
	}

	if err := s.insertWithRetry(ctx, ticket, now.In(s.loc).Year()); err != nil {
		return nil, err
	}

	created, err := s.load(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketCreated,
		TicketID:     created.ID,
		TicketNumber: created.Number,
		ActorID:      actorID(actor),
		Payload: events.TicketCreatedPayload{
			Title:      created.Title,
			CategoryID: created.CategoryID,
			PriorityID: created.PriorityID,
			AssignedTo: created.AssignedTo,
			Watchers:   created.Watchers,
		},
	})
	return created, nil
}

// insertWithRetry retries number allocation once after resynchronising the
// year sequence with the stored numbers.
func (s *TicketService) insertWithRetry(ctx context.Context, ticket *domain.Ticket, year int) error {
	err := s.tickets.Create(ctx, ticket, year)
	if !errors.Is(err, repository.ErrDuplicateNumber) {
		return err
	}
	s.logger.Warn("duplicate ticket number; resynchronising sequence",
		zap.Int("year", year), zap.String("number", ticket.Number))
	if err := s.tickets.ResyncSequence(ctx, year); err != nil {
		return fmt.Errorf("resync ticket sequence: %w", err)
	}
	err = s.tickets.Create(ctx, ticket, year)
	if errors.Is(err, repository.ErrDuplicateNumber) {
		return apperrors.NewConflict("could not allocate a unique ticket number", map[string]any{"year": year})
	}
	return err
}

// UpdateTicket applies patch. An empty patch is a pure read. A patch that
// carries ExpectedVersion fails with CONFLICT if the ticket moved on; without
// one, a concurrent write between read and write still fails with CONFLICT.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID int64, patch domain.TicketPatch) (*domain.Ticket, error) {
	if patch.IsEmpty() {
		return s.GetTicket(ctx, ticketID)
	}
	if err := s.validatePatch(&patch); err != nil {
		return nil, err
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	if s.authorizer != nil && !s.authorizer.CanMutateTicket(actor, current) {
		return nil, apperrors.NewForbidden("only the creator, the assignee or an administrator may update this ticket")
	}

	expected := current.Version
	if patch.ExpectedVersion != nil {
		if *patch.ExpectedVersion != current.Version {
			return nil, versionConflict(ticketID, *patch.ExpectedVersion, current.Version)
		}
		expected = *patch.ExpectedVersion
	}

	now := s.now().UTC()
	changes := repository.TicketChanges{
		Patch:           patch,
		ExpectedVersion: expected,
		UpdatedAt:       now,
		History:         diffHistory(current, patch, actorID(actor), now),
	}
	if patch.StatusID.Set {
		switch patch.StatusID.Value {
		case domain.StatusResolved:
			changes.ResolvedAt = &now
		case domain.StatusClosed:
			changes.ClosedAt = &now
		}
	}

	if err := s.tickets.Update(ctx, ticketID, changes); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, versionConflict(ticketID, expected, 0)
		}
		return nil, mapTicketError(err, ticketID)
	}

	updated, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketUpdated,
		TicketID:     updated.ID,
		TicketNumber: updated.Number,
		ActorID:      actorID(actor),
		Payload:      events.TicketUpdatedPayload{Fields: patchFields(patch), Version: updated.Version},
	})
	if patch.StatusID.Set && patch.StatusID.Value != current.StatusID {
		s.publishEvent(ctx, events.Event{
			Type:         events.EventTicketStatusChanged,
			TicketID:     updated.ID,
			TicketNumber: updated.Number,
			ActorID:      actorID(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatusID: current.StatusID,
				NewStatusID: updated.StatusID,
			},
		})
	}
	return updated, nil
}

func (s *TicketService) validatePatch(patch *domain.TicketPatch) error {
	var empty []string
	if patch.Title.Set && isBlank(patch.Title.Value) {
		empty = append(empty, "title")
	}
	if patch.Description.Set && isBlank(patch.Description.Value) {
		empty = append(empty, "description")
	}
	if len(empty) > 0 {
		return apperrors.NewValidationError("fields cannot be empty", map[string]any{"fields": empty})
	}

	if patch.CategoryID.Set {
		if _, ok := s.catalog.Category(patch.CategoryID.Value); !ok {
			return apperrors.NewInvalidReference("category", patch.CategoryID.Value)
		}
	}
	if patch.PriorityID.Set {
		priority, ok := s.catalog.Priority(patch.PriorityID.Value)
		if !ok {
			return apperrors.NewInvalidReference("priority", patch.PriorityID.Value)
		}
		if _, err := sla.Duration(sla.Resolution, priority.Level); err != nil {
			return mapSLAError(err)
		}
	}
	if patch.StatusID.Set {
		if _, ok := s.catalog.Status(patch.StatusID.Value); !ok {
			return apperrors.NewInvalidReference("status", patch.StatusID.Value)
		}
	}
	if patch.CustomFields.Set && patch.CustomFields.Value == nil {
		patch.CustomFields.Value = map[string]any{}
	}
	return nil
}

// DeleteTicket hard-deletes the ticket with its comments, watchers and
// history. It reports false when nothing was deleted.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID int64) (bool, error) {
	if s.authorizer != nil && !s.authorizer.CanDeleteTicket(actor) {
		return false, apperrors.NewForbidden("only administrators may delete tickets")
	}
	deleted, err := s.tickets.Delete(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketDeleted,
			TicketID: ticketID,
			ActorID:  actorID(actor),
		})
	}
	return deleted, nil
}

// GetTicket returns the hydrated ticket or NOT_FOUND.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.load(ctx, ticketID)
}

// GetTicketByNumber returns the hydrated ticket or NOT_FOUND.
func (s *TicketService) GetTicketByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticketNumber": number})
		}
		return nil, err
	}
	if err := s.hydrate(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns hydrated tickets matching filter.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	for i := range tickets {
		if err := s.hydrate(ctx, &tickets[i]); err != nil {
			return nil, err
		}
	}
	return tickets, nil
}

// AddWatcher subscribes userID to the ticket. Adding an existing watcher is a no-op.
func (s *TicketService) AddWatcher(ctx context.Context, actor domain.Actor, ticketID, userID int64) (*domain.Ticket, error) {
	return s.changeWatcher(ctx, actor, ticketID, userID, true)
}

// RemoveWatcher unsubscribes userID. Removing a non-watcher is a no-op.
func (s *TicketService) RemoveWatcher(ctx context.Context, actor domain.Actor, ticketID, userID int64) (*domain.Ticket, error) {
	return s.changeWatcher(ctx, actor, ticketID, userID, false)
}

func (s *TicketService) changeWatcher(ctx context.Context, actor domain.Actor, ticketID, userID int64, add bool) (*domain.Ticket, error) {
	if userID <= 0 {
		return nil, apperrors.NewValidationError("userId is required", map[string]any{"fields": []string{"userId"}})
	}
	if s.authorizer != nil && !s.authorizer.CanManageWatcher(actor, userID) {
		return nil, apperrors.NewForbidden("users may only manage their own watch subscription")
	}

	now := s.now().UTC()
	eventType := events.EventTicketWatcherAdded
	var err error
	if add {
		err = s.tickets.AddWatcher(ctx, ticketID, userID, now)
	} else {
		eventType = events.EventTicketWatcherRemoved
		err = s.tickets.RemoveWatcher(ctx, ticketID, userID, now)
	}
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:         eventType,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		ActorID:      actorID(actor),
		Payload:      events.WatcherPayload{UserID: userID},
	})
	return ticket, nil
}

// ListHistory returns the ticket's audit trail, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// Statistics computes fresh rollups over every stored ticket.
func (s *TicketService) Statistics(ctx context.Context) (stats.Statistics, error) {
	facts, err := s.tickets.Facts(ctx)
	if err != nil {
		return stats.Statistics{}, err
	}
	return stats.Aggregate(facts, s.catalog, s.now(), s.loc), nil
}

func (s *TicketService) load(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	if err := s.hydrate(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) hydrate(ctx context.Context, ticket *domain.Ticket) error {
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	watchers, err := s.tickets.Watchers(ctx, ticket.ID)
	if err != nil {
		return err
	}
	ticket.Comments = comments
	ticket.Watchers = watchers
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	// Delivery outlives the caller's cancellation but never blocks it for
	// longer than publishTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// isBlank reports whether s has no visible content. Text is stored as submitted.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// watcherSet returns the creator plus extra, deduplicated and sorted.
func watcherSet(creator int64, extra []int64) []int64 {
	seen := map[int64]struct{}{creator: {}}
	out := []int64{creator}
	for _, id := range extra {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func diffHistory(current *domain.Ticket, patch domain.TicketPatch, changedBy *int64, at time.Time) []domain.TicketHistory {
	var entries []domain.TicketHistory
	add := func(changeType domain.TicketChangeType, key string, oldValue, newValue any) {
		entries = append(entries, domain.TicketHistory{
			TicketID:   current.ID,
			ChangedBy:  changedBy,
			ChangeType: changeType,
			OldValue:   map[string]any{key: oldValue},
			NewValue:   map[string]any{key: newValue},
			CreatedAt:  at,
		})
	}

	if patch.StatusID.Set && patch.StatusID.Value != current.StatusID {
		add(domain.ChangeTypeStatus, "statusId", current.StatusID, patch.StatusID.Value)
	}
	if patch.PriorityID.Set && patch.PriorityID.Value != current.PriorityID {
		add(domain.ChangeTypePriority, "priorityId", current.PriorityID, patch.PriorityID.Value)
	}
	if patch.CategoryID.Set && patch.CategoryID.Value != current.CategoryID {
		add(domain.ChangeTypeCategory, "categoryId", current.CategoryID, patch.CategoryID.Value)
	}
	if patch.AssignedTo.Set && !sameID(current.AssignedTo, patch.AssignedTo.Value) {
		add(domain.ChangeTypeAssignee, "assignedTo", idValue(current.AssignedTo), idValue(patch.AssignedTo.Value))
	}
	return entries
}

func patchFields(p domain.TicketPatch) []string {
	var fields []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{p.Title.Set, "title"},
		{p.Description.Set, "description"},
		{p.CategoryID.Set, "categoryId"},
		{p.PriorityID.Set, "priorityId"},
		{p.StatusID.Set, "statusId"},
		{p.AssignedTo.Set, "assignedTo"},
		{p.EstimatedHours.Set, "estimatedHours"},
		{p.ActualHours.Set, "actualHours"},
		{p.CustomFields.Set, "customFields"},
	} {
		if f.set {
			fields = append(fields, f.name)
		}
	}
	return fields
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func idValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func actorID(actor domain.Actor) *int64 {
	if actor.ID == 0 {
		return nil
	}
	id := actor.ID
	return &id
}

func mapTicketError(err error, ticketID int64) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	case errors.Is(err, repository.ErrConflict):
		return versionConflict(ticketID, 0, 0)
	}
	return err
}

func versionConflict(ticketID, expected, actual int64) error {
	details := map[string]any{"id": ticketID}
	if expected > 0 {
		details["expectedVersion"] = expected
	}
	if actual > 0 {
		details["currentVersion"] = actual
	}
	return apperrors.NewConflict("ticket was modified concurrently", details)
}

func mapSLAError(err error) error {
	var invalid sla.ErrInvalidPriority
	if errors.As(err, &invalid) {
		return apperrors.NewInvalidPriority(invalid.Level)
	}
	return err
}
