package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/numbering"
)

// SortField names a sortable ticket column.
type SortField string

const (
	SortByID         SortField = "id"
	SortByCreatedAt  SortField = "created_at"
	SortByUpdatedAt  SortField = "updated_at"
	SortByPriority   SortField = "priority_id"
	SortByStatus     SortField = "status_id"
	SortByNumber     SortField = "ticket_number"
	SortByTitle      SortField = "title"
	defaultSortField           = SortByCreatedAt
)

// Valid reports whether f is a known column.
func (f SortField) Valid() bool {
	switch f {
	case SortByID, SortByCreatedAt, SortByUpdatedAt, SortByPriority, SortByStatus, SortByNumber, SortByTitle:
		return true
	}
	return false
}

// TicketFilter captures listing parameters. All set filters are combined with AND.
type TicketFilter struct {
	StatusID   *int64
	PriorityID *int64
	CategoryID *int64
	AssignedTo *int64
	CreatedBy  *int64
	Search     string
	SortBy     SortField
	SortAsc    bool
	Limit      int
	Offset     int
}

// TicketChanges is a resolved update: the patch plus the side effects the
// lifecycle derived from it. It is applied atomically together with History.
type TicketChanges struct {
	Patch           domain.TicketPatch
	ExpectedVersion int64
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	UpdatedAt       time.Time
	History         []domain.TicketHistory
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create allocates the next number of year and inserts the ticket with its
	// initial watcher set in one transaction.
	Create(ctx context.Context, ticket *domain.Ticket, year int) error
	// ResyncSequence raises the year sequence to the highest number already stored.
	ResyncSequence(ctx context.Context, year int) error
	Update(ctx context.Context, id int64, changes TicketChanges) error
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)

	Watchers(ctx context.Context, ticketID int64) ([]int64, error)
	AddWatcher(ctx context.Context, ticketID, userID int64, at time.Time) error
	RemoveWatcher(ctx context.Context, ticketID, userID int64, at time.Time) error

	Facts(ctx context.Context) ([]domain.TicketFacts, error)
	OverdueIDs(ctx context.Context, now time.Time, terminal []int64) ([]int64, error)
	// MarkBreached flags one ticket if it is still non-terminal, overdue and unflagged.
	MarkBreached(ctx context.Context, id int64, now time.Time, terminal []int64, entry *domain.TicketHistory) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, title, description, category_id, priority_id, status_id,
               created_by, assigned_to, estimated_hours, actual_hours, custom_fields,
               sla_response_deadline, sla_resolution_deadline, sla_breached, version,
               created_at, updated_at, resolved_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, year int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The upsert takes a row lock on the year that is held until commit, so
	// concurrent creators are serialized on number allocation.
	const nextSQL = `
        INSERT INTO ticket_sequences (year, last_value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = ticket_sequences.last_value + 1
        RETURNING last_value`
	var counter int64
	if err := tx.QueryRow(ctx, nextSQL, year).Scan(&counter); err != nil {
		return fmt.Errorf("allocate ticket number: %w", err)
	}
	ticket.Number = numbering.Format(year, counter)

	const insertSQL = `
        INSERT INTO tickets (ticket_number, title, description, category_id, priority_id, status_id,
            created_by, assigned_to, estimated_hours, actual_hours, custom_fields,
            sla_response_deadline, sla_resolution_deadline, sla_breached, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,FALSE,1,$14,$14)
        RETURNING id`
	err = tx.QueryRow(ctx, insertSQL,
		ticket.Number,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.PriorityID,
		ticket.StatusID,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.EstimatedHours,
		ticket.ActualHours,
		customFieldsParam(ticket.CustomFields),
		ticket.SLA.ResponseDeadline,
		ticket.SLA.ResolutionDeadline,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return ErrDuplicateNumber
		}
		return err
	}

	for _, userID := range ticket.Watchers {
		if _, err := tx.Exec(ctx, insertWatcherSQL, ticket.ID, userID, ticket.CreatedAt); err != nil {
			return fmt.Errorf("insert watcher %d: %w", userID, err)
		}
	}

	ticket.Version = 1
	ticket.UpdatedAt = ticket.CreatedAt
	return tx.Commit(ctx)
}

func (r *ticketRepository) ResyncSequence(ctx context.Context, year int) error {
	const query = `
        INSERT INTO ticket_sequences (year, last_value)
        SELECT $1, COALESCE(MAX(split_part(ticket_number, '-', 3)::bigint), 0)
        FROM tickets WHERE ticket_number LIKE $2
        ON CONFLICT (year) DO UPDATE SET last_value = GREATEST(ticket_sequences.last_value, EXCLUDED.last_value)`
	_, err := r.pool.Exec(ctx, query, year, numbering.YearPrefix(year)+"%")
	return err
}

func (r *ticketRepository) Update(ctx context.Context, id int64, changes TicketChanges) error {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	p := changes.Patch
	if p.Title.Set {
		add("title", p.Title.Value)
	}
	if p.Description.Set {
		add("description", p.Description.Value)
	}
	if p.CategoryID.Set {
		add("category_id", p.CategoryID.Value)
	}
	if p.PriorityID.Set {
		add("priority_id", p.PriorityID.Value)
	}
	if p.StatusID.Set {
		add("status_id", p.StatusID.Value)
	}
	if p.AssignedTo.Set {
		add("assigned_to", p.AssignedTo.Value)
	}
	if p.EstimatedHours.Set {
		add("estimated_hours", p.EstimatedHours.Value)
	}
	if p.ActualHours.Set {
		add("actual_hours", p.ActualHours.Value)
	}
	if p.CustomFields.Set {
		add("custom_fields", customFieldsParam(p.CustomFields.Value))
	}
	if changes.ResolvedAt != nil {
		args = append(args, *changes.ResolvedAt)
		sets = append(sets, fmt.Sprintf("resolved_at=COALESCE(resolved_at, $%d)", len(args)))
	}
	if changes.ClosedAt != nil {
		args = append(args, *changes.ClosedAt)
		sets = append(sets, fmt.Sprintf("closed_at=COALESCE(closed_at, $%d)", len(args)))
	}
	add("updated_at", changes.UpdatedAt)
	sets = append(sets, "version=version+1")

	args = append(args, id, changes.ExpectedVersion)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d AND version=$%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	for i := range changes.History {
		if err := insertHistory(ctx, tx, &changes.History[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number=$1`, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return ticket, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	eq := func(column string, value *int64) {
		if value == nil {
			return
		}
		args = append(args, *value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	eq("status_id", filter.StatusID)
	eq("priority_id", filter.PriorityID)
	eq("category_id", filter.CategoryID)
	eq("assigned_to", filter.AssignedTo)
	eq("created_by", filter.CreatedBy)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(`(LOWER(title) LIKE %[1]s ESCAPE '\' OR LOWER(description) LIKE %[1]s ESCAPE '\' OR LOWER(ticket_number) LIKE %[1]s ESCAPE '\')`, placeholder))
	}

	sortBy := filter.SortBy
	if !sortBy.Valid() {
		sortBy = defaultSortField
	}
	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s %s, id %s`,
		ticketColumns, strings.Join(clauses, " AND "), sortBy, direction, direction)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

const insertWatcherSQL = `
        INSERT INTO ticket_watchers (ticket_id, user_id, added_at) VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id, user_id) DO NOTHING`

func (r *ticketRepository) Watchers(ctx context.Context, ticketID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM ticket_watchers WHERE ticket_id=$1 ORDER BY user_id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	watchers := []int64{}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		watchers = append(watchers, userID)
	}
	return watchers, rows.Err()
}

func (r *ticketRepository) AddWatcher(ctx context.Context, ticketID, userID int64, at time.Time) error {
	return r.touchWithin(ctx, ticketID, at, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertWatcherSQL, ticketID, userID, at)
		return err
	})
}

func (r *ticketRepository) RemoveWatcher(ctx context.Context, ticketID, userID int64, at time.Time) error {
	return r.touchWithin(ctx, ticketID, at, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM ticket_watchers WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID)
		return err
	})
}

// touchWithin bumps the ticket's updated_at and runs fn in the same transaction.
func (r *ticketRepository) touchWithin(ctx context.Context, ticketID int64, at time.Time, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := touchTicket(ctx, tx, ticketID, at); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func touchTicket(ctx context.Context, tx pgx.Tx, ticketID int64, at time.Time) error {
	cmd, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=$2 WHERE id=$1`, ticketID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Facts(ctx context.Context) ([]domain.TicketFacts, error) {
	const query = `
        SELECT status_id, priority_id, category_id, sla_breached, created_at, resolved_at
        FROM tickets`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.TicketFacts
	for rows.Next() {
		var f domain.TicketFacts
		if err := rows.Scan(&f.StatusID, &f.PriorityID, &f.CategoryID, &f.Breached, &f.CreatedAt, &f.ResolvedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (r *ticketRepository) OverdueIDs(ctx context.Context, now time.Time, terminal []int64) ([]int64, error) {
	const query = `
        SELECT id FROM tickets
        WHERE NOT sla_breached AND status_id <> ALL($1) AND sla_resolution_deadline < $2
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query, terminal, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) MarkBreached(ctx context.Context, id int64, now time.Time, terminal []int64, entry *domain.TicketHistory) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE tickets SET sla_breached=TRUE
        WHERE id=$1 AND NOT sla_breached AND status_id <> ALL($2) AND sla_resolution_deadline < $3`
	cmd, err := tx.Exec(ctx, query, id, terminal, now)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if entry != nil {
		if err := insertHistory(ctx, tx, entry); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.CategoryID,
		&ticket.PriorityID,
		&ticket.StatusID,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.EstimatedHours,
		&ticket.ActualHours,
		&ticket.CustomFields,
		&ticket.SLA.ResponseDeadline,
		&ticket.SLA.ResolutionDeadline,
		&ticket.SLA.Breached,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	if ticket.CustomFields == nil {
		ticket.CustomFields = map[string]any{}
	}
	return &ticket, nil
}

func customFieldsParam(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return fields
}
