// Package professionals manages the schedule owners patients book with.
package professionals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turnosalud/booking-platform/internal/schedule"
)

// DB is the pgx surface the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists professionals in PostgreSQL.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	if db == nil {
		panic("professionals: db required")
	}
	return &Store{db: db}
}

// GetBySlug loads a professional by its public URL slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (schedule.Professional, error) {
	var p schedule.Professional
	err := s.db.QueryRow(ctx,
		`SELECT id, slug, display_name, specialty, active FROM professionals WHERE slug = $1`,
		slug).Scan(&p.ID, &p.Slug, &p.DisplayName, &p.Specialty, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Professional{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Professional{}, fmt.Errorf("professionals: get by slug: %w", err)
	}
	return p, nil
}

// GetByID loads a professional by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (schedule.Professional, error) {
	var p schedule.Professional
	err := s.db.QueryRow(ctx,
		`SELECT id, slug, display_name, specialty, active FROM professionals WHERE id = $1`,
		id).Scan(&p.ID, &p.Slug, &p.DisplayName, &p.Specialty, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Professional{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Professional{}, fmt.Errorf("professionals: get by id: %w", err)
	}
	return p, nil
}

// List returns active professionals in display order.
func (s *Store) List(ctx context.Context) ([]schedule.Professional, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, slug, display_name, specialty, active FROM professionals WHERE active ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("professionals: list: %w", err)
	}
	defer rows.Close()

	var out []schedule.Professional
	for rows.Next() {
		var p schedule.Professional
		if err := rows.Scan(&p.ID, &p.Slug, &p.DisplayName, &p.Specialty, &p.Active); err != nil {
			return nil, fmt.Errorf("professionals: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a professional. Slugs are unique; a duplicate returns
// ErrConflict.
func (s *Store) Create(ctx context.Context, p schedule.Professional) (schedule.Professional, error) {
	if p.Slug == "" || p.DisplayName == "" {
		return schedule.Professional{}, schedule.NewValidationError("slug and display_name are required")
	}
	p.ID = uuid.New()
	if !p.Active {
		p.Active = true
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO professionals (id, slug, display_name, specialty, active) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Slug, p.DisplayName, p.Specialty, p.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return schedule.Professional{}, schedule.ErrConflict
		}
		return schedule.Professional{}, fmt.Errorf("professionals: insert: %w", err)
	}
	return p, nil
}

// SetActive flips a professional's visibility without touching its schedule.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ct, err := s.db.Exec(ctx, `UPDATE professionals SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("professionals: set active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
