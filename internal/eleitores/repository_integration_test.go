package eleitores_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/eleitores"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/uploadhistory"
	"github.com/gbp-politico/backend/pkg/database"
)

func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return pool
}

func seedRun(t *testing.T, pool *pgxpool.Pool) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	var empresaID uuid.UUID
	if err := pool.QueryRow(ctx, `INSERT INTO gbp_empresas (nome) VALUES ('teste') RETURNING id`).Scan(&empresaID); err != nil {
		t.Fatalf("insert empresa failed: %v", err)
	}
	run, err := uploadhistory.NewRepository(pool).Create(ctx, empresaID, "lote.csv")
	if err != nil {
		t.Fatalf("create run failed: %v", err)
	}
	return empresaID, run.ID
}

func records(empresaID, uploadID uuid.UUID, n int) []models.Eleitor {
	born := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Eleitor, n)
	for i := range out {
		out[i].EleitorFields = models.EleitorFields{
			EmpresaID:  empresaID,
			UploadID:   &uploadID,
			Nome:       "Eleitor",
			CPF:        "12345678900",
			Nascimento: &born,
			Cidade:     "Recife",
			CreatedAt:  time.Now().UTC(),
		}
	}
	return out
}

func TestInsertArchiveAndDeleteIntegration(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	repo := eleitores.NewRepository(pool)
	archive := eleitores.NewDeletedRepository(pool)
	empresaID, uploadID := seedRun(t, pool)

	n, err := repo.InsertBatch(ctx, records(empresaID, uploadID, 5))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 rows copied, got %d", n)
	}

	live, err := repo.ListByUpload(ctx, empresaID, uploadID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(live) != 5 || live[0].Telefone != "" || live[0].Nascimento == nil {
		t.Fatalf("unexpected live records: %+v", live)
	}

	deleted := make([]models.DeletedEleitor, len(live))
	for i, e := range live {
		deleted[i] = e.ToDeleted(time.Now().UTC())
	}
	if _, err := archive.InsertBatch(ctx, deleted); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	removed, err := repo.DeleteByUpload(ctx, empresaID, uploadID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed != 5 {
		t.Fatalf("expected 5 deleted, got %d", removed)
	}

	count, err := repo.CountByUpload(ctx, empresaID, uploadID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no live records, got %d", count)
	}

	var archived int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM gbp_deletados WHERE upload_id = $1`, uploadID).Scan(&archived); err != nil {
		t.Fatalf("count archive failed: %v", err)
	}
	if archived != 5 {
		t.Fatalf("expected 5 archived, got %d", archived)
	}
}

func TestInTxRollsBackEveryBatchIntegration(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	repo := eleitores.NewRepository(pool)
	empresaID, uploadID := seedRun(t, pool)

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(w eleitores.BatchWriter) error {
		if _, err := w.InsertBatch(ctx, records(empresaID, uploadID, 3)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	count, err := repo.CountByUpload(ctx, empresaID, uploadID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, got %d rows", count)
	}
}
