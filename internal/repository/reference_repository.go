package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
)

// LoadCatalog reads the seeded reference tables into an immutable catalog.
func LoadCatalog(ctx context.Context, pool *pgxpool.Pool) (*reference.Catalog, error) {
	var categories []domain.Category
	rows, err := pool.Query(ctx, `SELECT id, name, color FROM ticket_categories`)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			rows.Close()
			return nil, err
		}
		categories = append(categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var priorities []domain.Priority
	rows, err = pool.Query(ctx, `SELECT id, name, level, color FROM ticket_priorities`)
	if err != nil {
		return nil, fmt.Errorf("load priorities: %w", err)
	}
	for rows.Next() {
		var p domain.Priority
		if err := rows.Scan(&p.ID, &p.Name, &p.Level, &p.Color); err != nil {
			rows.Close()
			return nil, err
		}
		priorities = append(priorities, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var statuses []domain.Status
	rows, err = pool.Query(ctx, `SELECT id, name, color, is_terminal FROM ticket_statuses`)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	for rows.Next() {
		var s domain.Status
		if err := rows.Scan(&s.ID, &s.Name, &s.Color, &s.Terminal); err != nil {
			rows.Close()
			return nil, err
		}
		statuses = append(statuses, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reference.NewCatalog(categories, priorities, statuses), nil
}
