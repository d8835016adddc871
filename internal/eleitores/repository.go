// Package eleitores persists constituent records (gbp_eleitores) and their archive (gbp_deletados).
package eleitores

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbp-politico/backend/internal/models"
)

// fieldColumns lists the business columns shared by gbp_eleitores and gbp_deletados, in copy order.
var fieldColumns = []string{
	"empresa_id", "upload_id", "nome", "cpf", "nascimento", "whatsapp", "telefone", "genero",
	"titulo", "zona", "secao", "cep", "logradouro", "cidade", "bairro", "numero", "complemento",
	"uf", "nome_mae", "indicado", "categoria", "gbp_atendimentos", "responsavel",
	"latitude", "longitude", "created_at",
}

// BatchWriter inserts one batch of records.
type BatchWriter interface {
	InsertBatch(ctx context.Context, rows []models.Eleitor) (int64, error)
}

type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Repository handles gbp_eleitores persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an eleitores repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch copies a batch of records in one round trip.
func (r *Repository) InsertBatch(ctx context.Context, rows []models.Eleitor) (int64, error) {
	return insertEleitores(ctx, r.pool, rows)
}

// InTx runs fn with a writer bound to one transaction; any error rolls every batch back.
func (r *Repository) InTx(ctx context.Context, fn func(BatchWriter) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txWriter{tx: tx})
	})
}

type txWriter struct {
	tx pgx.Tx
}

func (w txWriter) InsertBatch(ctx context.Context, rows []models.Eleitor) (int64, error) {
	return insertEleitores(ctx, w.tx, rows)
}

func insertEleitores(ctx context.Context, db copier, rows []models.Eleitor) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := db.CopyFrom(ctx, pgx.Identifier{"gbp_eleitores"}, fieldColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return fieldValues(rows[i].EleitorFields), nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy eleitores: %w", err)
	}
	return n, nil
}

// fieldValues must follow fieldColumns. Empty strings are stored as NULL, like the CSV importer always did.
func fieldValues(f models.EleitorFields) []any {
	return []any{
		f.EmpresaID, f.UploadID, f.Nome, nullable(f.CPF), f.Nascimento, nullable(f.Whatsapp), nullable(f.Telefone),
		nullable(f.Genero), nullable(f.Titulo), nullable(f.Zona), nullable(f.Secao), nullable(f.CEP),
		nullable(f.Logradouro), nullable(f.Cidade), nullable(f.Bairro), nullable(f.Numero), nullable(f.Complemento),
		nullable(f.UF), nullable(f.NomeMae), nullable(f.Indicado), nullable(f.Categoria), nullable(f.GBPAtendimentos),
		nullable(f.Responsavel), nullable(f.Latitude), nullable(f.Longitude), createdAt(f.CreatedAt),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// ListByUpload returns every live record created by the run.
func (r *Repository) ListByUpload(ctx context.Context, empresaID, uploadID uuid.UUID) ([]models.Eleitor, error) {
	const q = `SELECT id, empresa_id, upload_id, nome, COALESCE(cpf,''), nascimento, COALESCE(whatsapp,''),
		COALESCE(telefone,''), COALESCE(genero,''), COALESCE(titulo,''), COALESCE(zona,''), COALESCE(secao,''),
		COALESCE(cep,''), COALESCE(logradouro,''), COALESCE(cidade,''), COALESCE(bairro,''), COALESCE(numero,''),
		COALESCE(complemento,''), COALESCE(uf,''), COALESCE(nome_mae,''), COALESCE(indicado,''), COALESCE(categoria,''),
		COALESCE(gbp_atendimentos,''), COALESCE(responsavel,''), COALESCE(latitude,''), COALESCE(longitude,''), created_at
		FROM gbp_eleitores
		WHERE empresa_id = $1 AND upload_id = $2
		ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, empresaID, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Eleitor
	for rows.Next() {
		var e models.Eleitor
		f := &e.EleitorFields
		if err := rows.Scan(&e.ID, &f.EmpresaID, &f.UploadID, &f.Nome, &f.CPF, &f.Nascimento, &f.Whatsapp,
			&f.Telefone, &f.Genero, &f.Titulo, &f.Zona, &f.Secao, &f.CEP, &f.Logradouro, &f.Cidade, &f.Bairro,
			&f.Numero, &f.Complemento, &f.UF, &f.NomeMae, &f.Indicado, &f.Categoria, &f.GBPAtendimentos,
			&f.Responsavel, &f.Latitude, &f.Longitude, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// CountByUpload returns how many live records the run still owns.
func (r *Repository) CountByUpload(ctx context.Context, empresaID, uploadID uuid.UUID) (int64, error) {
	const q = `SELECT COUNT(*) FROM gbp_eleitores WHERE empresa_id = $1 AND upload_id = $2`
	var n int64
	err := r.pool.QueryRow(ctx, q, empresaID, uploadID).Scan(&n)
	return n, err
}

// DeleteByUpload removes every live record created by the run.
func (r *Repository) DeleteByUpload(ctx context.Context, empresaID, uploadID uuid.UUID) (int64, error) {
	const q = `DELETE FROM gbp_eleitores WHERE empresa_id = $1 AND upload_id = $2`
	tag, err := r.pool.Exec(ctx, q, empresaID, uploadID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
