package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository"
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
	"github.com/craigfelt/zerobitone-ticket-service/internal/stats"
	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string         `json:"title" validate:"required,max=255"`
	Description    string         `json:"description" validate:"required"`
	CategoryID     int64          `json:"categoryId" validate:"required,gt=0"`
	PriorityID     *int64         `json:"priorityId" validate:"omitempty,gt=0"`
	AssignedTo     *int64         `json:"assignedTo" validate:"omitempty,gt=0"`
	EstimatedHours *float64       `json:"estimatedHours" validate:"omitempty,gte=0"`
	CustomFields   map[string]any `json:"customFields"`
	Watchers       []int64        `json:"watchers" validate:"omitempty,dive,gt=0"`
}

// ToInput maps the request onto the service input.
func (r CreateTicketRequest) ToInput() service.TicketCreateInput {
	return service.TicketCreateInput{
		Title:          r.Title,
		Description:    r.Description,
		CategoryID:     r.CategoryID,
		PriorityID:     r.PriorityID,
		AssignedTo:     r.AssignedTo,
		EstimatedHours: r.EstimatedHours,
		CustomFields:   r.CustomFields,
		WatcherIDs:     r.Watchers,
	}
}

// UpdateTicketRequest is a partial update. Absent keys are left alone; an
// explicit null clears a nullable field.
type UpdateTicketRequest struct {
	Title          domain.Optional[string]         `json:"title"`
	Description    domain.Optional[string]         `json:"description"`
	CategoryID     domain.Optional[int64]          `json:"categoryId"`
	PriorityID     domain.Optional[int64]          `json:"priorityId"`
	StatusID       domain.Optional[int64]          `json:"statusId"`
	AssignedTo     domain.Optional[*int64]         `json:"assignedTo"`
	EstimatedHours domain.Optional[*float64]       `json:"estimatedHours"`
	ActualHours    domain.Optional[*float64]       `json:"actualHours"`
	CustomFields   domain.Optional[map[string]any] `json:"customFields"`
	Version        *int64                          `json:"version"`
}

// ToPatch maps the request onto a domain patch.
func (r UpdateTicketRequest) ToPatch() (domain.TicketPatch, error) {
	var invalid []string
	if r.EstimatedHours.Set && r.EstimatedHours.Value != nil && *r.EstimatedHours.Value < 0 {
		invalid = append(invalid, "estimatedHours")
	}
	if r.ActualHours.Set && r.ActualHours.Value != nil && *r.ActualHours.Value < 0 {
		invalid = append(invalid, "actualHours")
	}
	if r.Version != nil && *r.Version <= 0 {
		invalid = append(invalid, "version")
	}
	if len(invalid) > 0 {
		return domain.TicketPatch{}, apperrors.NewValidationError("request validation failed", map[string]any{"fields": invalid})
	}
	return domain.TicketPatch{
		Title:           r.Title,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		PriorityID:      r.PriorityID,
		StatusID:        r.StatusID,
		AssignedTo:      r.AssignedTo,
		EstimatedHours:  r.EstimatedHours,
		ActualHours:     r.ActualHours,
		CustomFields:    r.CustomFields,
		ExpectedVersion: r.Version,
	}, nil
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content" validate:"required"`
	IsInternal bool   `json:"isInternal"`
}

// UpdateCommentRequest payload.
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// WatcherRequest payload. UserID defaults to the caller.
type WatcherRequest struct {
	UserID int64 `json:"userId" validate:"omitempty,gt=0"`
}

// SLAResponse nests the deadline block.
type SLAResponse struct {
	ResponseDeadline   time.Time `json:"responseDeadline"`
	ResolutionDeadline time.Time `json:"resolutionDeadline"`
	Breached           bool      `json:"breached"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID         int64      `json:"id"`
	TicketID   int64      `json:"ticketId"`
	UserID     int64      `json:"userId"`
	Content    string     `json:"content"`
	IsInternal bool       `json:"isInternal"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID             int64             `json:"id"`
	TicketNumber   string            `json:"ticketNumber"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	CategoryID     int64             `json:"categoryId"`
	PriorityID     int64             `json:"priorityId"`
	StatusID       int64             `json:"statusId"`
	CreatedBy      int64             `json:"createdBy"`
	AssignedTo     *int64            `json:"assignedTo"`
	EstimatedHours *float64          `json:"estimatedHours"`
	ActualHours    *float64          `json:"actualHours"`
	CustomFields   map[string]any    `json:"customFields"`
	SLA            SLAResponse       `json:"sla"`
	Version        int64             `json:"version"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	ResolvedAt     *time.Time        `json:"resolvedAt"`
	ClosedAt       *time.Time        `json:"closedAt"`
	Comments       []CommentResponse `json:"comments"`
	Watchers       []int64           `json:"watchers"`
}

// TicketListResponse wraps a listing.
type TicketListResponse struct {
	Tickets []TicketResponse `json:"tickets"`
	Total   int              `json:"total"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID         int64          `json:"id"`
	ChangedBy  *int64         `json:"changedBy"`
	ChangeType string         `json:"changeType"`
	OldValue   map[string]any `json:"oldValue"`
	NewValue   map[string]any `json:"newValue"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// MetadataResponse lists the reference data for filters and forms.
type MetadataResponse struct {
	Categories []domain.Category `json:"categories"`
	Priorities []domain.Priority `json:"priorities"`
	Statuses   []domain.Status   `json:"statuses"`
}

// StatisticsResponse is served as computed.
type StatisticsResponse = stats.Statistics

// NewTicketResponse maps a hydrated ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:             t.ID,
		TicketNumber:   t.Number,
		Title:          t.Title,
		Description:    t.Description,
		CategoryID:     t.CategoryID,
		PriorityID:     t.PriorityID,
		StatusID:       t.StatusID,
		CreatedBy:      t.CreatedBy,
		AssignedTo:     t.AssignedTo,
		EstimatedHours: t.EstimatedHours,
		ActualHours:    t.ActualHours,
		CustomFields:   t.CustomFields,
		SLA: SLAResponse{
			ResponseDeadline:   t.SLA.ResponseDeadline,
			ResolutionDeadline: t.SLA.ResolutionDeadline,
			Breached:           t.SLA.Breached,
		},
		Version:    t.Version,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		ResolvedAt: t.ResolvedAt,
		ClosedAt:   t.ClosedAt,
		Comments:   make([]CommentResponse, 0, len(t.Comments)),
		Watchers:   t.Watchers,
	}
	if resp.CustomFields == nil {
		resp.CustomFields = map[string]any{}
	}
	if resp.Watchers == nil {
		resp.Watchers = []int64{}
	}
	for i := range t.Comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&t.Comments[i]))
	}
	return resp
}

// NewTicketListResponse maps a listing.
func NewTicketListResponse(tickets []domain.Ticket) TicketListResponse {
	out := TicketListResponse{Tickets: make([]TicketResponse, 0, len(tickets)), Total: len(tickets)}
	for i := range tickets {
		out.Tickets = append(out.Tickets, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponse maps a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		UserID:     c.UserID,
		Content:    c.Content,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// NewHistoryResponse maps audit entries.
func NewHistoryResponse(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:         e.ID,
			ChangedBy:  e.ChangedBy,
			ChangeType: string(e.ChangeType),
			OldValue:   e.OldValue,
			NewValue:   e.NewValue,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// NewMetadataResponse lists the catalog.
func NewMetadataResponse(c *reference.Catalog) MetadataResponse {
	return MetadataResponse{
		Categories: c.Categories(),
		Priorities: c.Priorities(),
		Statuses:   c.Statuses(),
	}
}

var sortFields = map[string]repository.SortField{
	"id":           repository.SortByID,
	"createdAt":    repository.SortByCreatedAt,
	"updatedAt":    repository.SortByUpdatedAt,
	"priorityId":   repository.SortByPriority,
	"statusId":     repository.SortByStatus,
	"ticketNumber": repository.SortByNumber,
	"title":        repository.SortByTitle,
}

// ParseTicketListQuery reads list filters from query parameters. query
// returns "" for absent keys.
func ParseTicketListQuery(query func(key string) string) (service.TicketListFilter, error) {
	var filter service.TicketListFilter
	var invalid []string

	ids := []struct {
		key    string
		target **int64
	}{
		{"statusId", &filter.StatusID},
		{"priorityId", &filter.PriorityID},
		{"categoryId", &filter.CategoryID},
		{"assignedTo", &filter.AssignedTo},
		{"createdBy", &filter.CreatedBy},
	}
	for _, f := range ids {
		raw := strings.TrimSpace(query(f.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			invalid = append(invalid, f.key)
			continue
		}
		*f.target = &v
	}

	filter.Search = strings.TrimSpace(query("search"))

	if raw := strings.TrimSpace(query("sortBy")); raw != "" {
		field, ok := sortFields[raw]
		if !ok {
			invalid = append(invalid, "sortBy")
		}
		filter.SortBy = field
	}
	switch strings.ToLower(strings.TrimSpace(query("sortOrder"))) {
	case "", "desc":
	case "asc":
		filter.SortAsc = true
	default:
		invalid = append(invalid, "sortOrder")
	}

	for _, p := range []struct {
		key    string
		target *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		raw := strings.TrimSpace(query(p.key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			invalid = append(invalid, p.key)
			continue
		}
		*p.target = v
	}

	if len(invalid) > 0 {
		return service.TicketListFilter{}, apperrors.NewValidationError("invalid query parameters", map[string]any{"fields": invalid})
	}
	return filter, nil
}
