package eleitores

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbp-politico/backend/internal/models"
)

// DeletedRepository appends to the gbp_deletados archive. Rows are never updated or removed.
type DeletedRepository struct {
	pool *pgxpool.Pool
}

// NewDeletedRepository creates an archive repository.
func NewDeletedRepository(pool *pgxpool.Pool) *DeletedRepository {
	return &DeletedRepository{pool: pool}
}

// InsertBatch copies archived records in one round trip.
func (r *DeletedRepository) InsertBatch(ctx context.Context, rows []models.DeletedEleitor) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"gbp_deletados"}, fieldColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return fieldValues(rows[i].EleitorFields), nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy deletados: %w", err)
	}
	return n, nil
}
