package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
)

// CommentRepository manages ticket comment threads. Every mutation bumps the
// parent ticket's updated_at in the same transaction.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	Update(ctx context.Context, ticketID, commentID int64, content string, at time.Time) (*domain.Comment, error)
	Delete(ctx context.Context, ticketID, commentID int64, at time.Time) (bool, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentColumns = `id, ticket_id, user_id, content, is_internal, created_at, updated_at`

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := touchTicket(ctx, tx, comment.TicketID, comment.CreatedAt); err != nil {
		return err
	}

	const query = `
        INSERT INTO ticket_comments (ticket_id, user_id, content, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	if err := tx.QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		comment.IsInternal,
		comment.CreatedAt,
	).Scan(&comment.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *commentRepository) Update(ctx context.Context, ticketID, commentID int64, content string, at time.Time) (*domain.Comment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE ticket_comments SET content=$1, updated_at=$2
        WHERE id=$3 AND ticket_id=$4
        RETURNING ` + commentColumns
	comment, err := scanComment(tx.QueryRow(ctx, query, content, at, commentID, ticketID))
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := touchTicket(ctx, tx, ticketID, at); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return comment, nil
}

func (r *commentRepository) Delete(ctx context.Context, ticketID, commentID int64, at time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `DELETE FROM ticket_comments WHERE id=$1 AND ticket_id=$2`, commentID, ticketID)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if err := touchTicket(ctx, tx, ticketID, at); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(
		&c.ID,
		&c.TicketID,
		&c.UserID,
		&c.Content,
		&c.IsInternal,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
