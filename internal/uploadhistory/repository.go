// Package uploadhistory persists import runs (table gbp_upload_history).
package uploadhistory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbp-politico/backend/internal/models"
)

var (
	// ErrNotFound is returned when no run matches the id within the empresa.
	ErrNotFound = errors.New("upload history not found")
	// ErrLocked is returned when another in_progress run already holds the (empresa, file) pair.
	ErrLocked = errors.New("upload already in progress")
	// ErrNotRunning is returned when a terminal update targets a run that is no longer in_progress.
	ErrNotRunning = errors.New("upload is not in progress")
)

const uniqueViolation = "23505"

const columns = `id, empresa_id, arquivo_nome, registros_total, registros_processados, registros_erro,
	status, erro_mensagem, object_key, created_at, updated_at`

// Repository handles upload history persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an upload history repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRun(row pgx.Row) (*models.UploadHistory, error) {
	var h models.UploadHistory
	var status string
	err := row.Scan(&h.ID, &h.EmpresaID, &h.ArquivoNome, &h.RegistrosTotal, &h.RegistrosProcessados, &h.RegistrosErro,
		&status, &h.ErroMensagem, &h.ObjectKey, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Status = models.UploadStatus(status)
	return &h, nil
}

// FindSuccess returns the successful run for the file name, or nil when there is none.
func (r *Repository) FindSuccess(ctx context.Context, empresaID uuid.UUID, fileName string) (*models.UploadHistory, error) {
	q := `SELECT ` + columns + ` FROM gbp_upload_history
		WHERE empresa_id = $1 AND arquivo_nome = $2 AND status = 'success'
		LIMIT 1`
	h, err := scanRun(r.pool.QueryRow(ctx, q, empresaID, fileName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ExpireStale relabels in_progress runs for the file that were last touched before the cutoff.
func (r *Repository) ExpireStale(ctx context.Context, empresaID uuid.UUID, fileName string, before time.Time, message string) (int64, error) {
	const q = `UPDATE gbp_upload_history
		SET status = 'error', erro_mensagem = $4, updated_at = NOW()
		WHERE empresa_id = $1 AND arquivo_nome = $2 AND status = 'in_progress' AND updated_at < $3`
	tag, err := r.pool.Exec(ctx, q, empresaID, fileName, before, message)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Create inserts an in_progress run with zero counters.
func (r *Repository) Create(ctx context.Context, empresaID uuid.UUID, fileName string) (*models.UploadHistory, error) {
	q := `INSERT INTO gbp_upload_history (empresa_id, arquivo_nome, status)
		VALUES ($1, $2, 'in_progress')
		RETURNING ` + columns
	h, err := scanRun(r.pool.QueryRow(ctx, q, empresaID, fileName))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrLocked
		}
		return nil, err
	}
	return h, nil
}

// GetByID returns a run scoped to the empresa.
func (r *Repository) GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.UploadHistory, error) {
	q := `SELECT ` + columns + ` FROM gbp_upload_history WHERE id = $1 AND empresa_id = $2`
	h, err := scanRun(r.pool.QueryRow(ctx, q, id, empresaID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ListSuccess returns the empresa's successful runs, newest first.
func (r *Repository) ListSuccess(ctx context.Context, empresaID uuid.UUID) ([]*models.UploadHistory, error) {
	q := `SELECT ` + columns + ` FROM gbp_upload_history
		WHERE empresa_id = $1 AND status = 'success'
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, empresaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.UploadHistory
	for rows.Next() {
		h, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// UpdateProgress stores the running counters of an in_progress run.
func (r *Repository) UpdateProgress(ctx context.Context, empresaID, id uuid.UUID, total, processed int) error {
	const q = `UPDATE gbp_upload_history
		SET registros_total = $3, registros_processados = $4, updated_at = NOW()
		WHERE id = $1 AND empresa_id = $2 AND status = 'in_progress'`
	_, err := r.pool.Exec(ctx, q, id, empresaID, total, processed)
	return err
}

// SetObjectKey records where the uploaded source file was stored.
func (r *Repository) SetObjectKey(ctx context.Context, empresaID, id uuid.UUID, key string) error {
	const q = `UPDATE gbp_upload_history SET object_key = $3, updated_at = NOW() WHERE id = $1 AND empresa_id = $2`
	_, err := r.pool.Exec(ctx, q, id, empresaID, key)
	return err
}

// MarkSuccess moves an in_progress run to success with its final counters.
func (r *Repository) MarkSuccess(ctx context.Context, empresaID, id uuid.UUID, total, processed, failed int) error {
	const q = `UPDATE gbp_upload_history
		SET status = 'success', registros_total = $3, registros_processados = $4, registros_erro = $5,
			erro_mensagem = NULL, updated_at = NOW()
		WHERE id = $1 AND empresa_id = $2 AND status = 'in_progress'`
	return r.finish(ctx, q, id, empresaID, total, processed, failed)
}

// MarkError moves an in_progress run to error with the captured message.
func (r *Repository) MarkError(ctx context.Context, empresaID, id uuid.UUID, message string, total, processed int) error {
	const q = `UPDATE gbp_upload_history
		SET status = 'error', erro_mensagem = $3, registros_total = $4, registros_processados = $5, updated_at = NOW()
		WHERE id = $1 AND empresa_id = $2 AND status = 'in_progress'`
	return r.finish(ctx, q, id, empresaID, message, total, processed)
}

func (r *Repository) finish(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: another run of this file already succeeded", ErrNotRunning)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRunning
	}
	return nil
}

// Relabel retires a run to error with the given message, whatever its current status.
func (r *Repository) Relabel(ctx context.Context, empresaID, id uuid.UUID, message string) error {
	const q = `UPDATE gbp_upload_history
		SET status = 'error', erro_mensagem = $3, updated_at = NOW()
		WHERE id = $1 AND empresa_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, empresaID, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
