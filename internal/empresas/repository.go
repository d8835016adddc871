// Package empresas stores tenants and gates requests on the caller's empresa being active.
package empresas

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbp-politico/backend/internal/models"
)

// ErrNotFound is returned when no empresa matches.
var ErrNotFound = errors.New("empresa not found")

// Repository handles empresa persistence (table gbp_empresas).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an empresas repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates an active empresa.
func (r *Repository) Create(ctx context.Context, nome string) (*models.Empresa, error) {
	const q = `INSERT INTO gbp_empresas (nome, status)
		VALUES ($1, 'active')
		RETURNING id, nome, status, created_at, updated_at`
	var e models.Empresa
	err := r.pool.QueryRow(ctx, q, nome).Scan(&e.ID, &e.Nome, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID returns an empresa by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Empresa, error) {
	const q = `SELECT id, nome, status, created_at, updated_at FROM gbp_empresas WHERE id = $1`
	var e models.Empresa
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Nome, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetStatus activates or suspends an empresa.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE gbp_empresas SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
