// Package imports runs constituent file imports: duplicate checks, batched writes and run bookkeeping.
package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/eleitores"
	"github.com/gbp-politico/backend/internal/ingest"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/uploadhistory"
)

const (
	statusTimeout     = 10 * time.Second
	maxMessageLength  = 1000
	statusLostWarning = "records were imported but the run status could not be updated"
)

// HistoryStore persists import runs.
type HistoryStore interface {
	FindSuccess(ctx context.Context, empresaID uuid.UUID, fileName string) (*models.UploadHistory, error)
	ExpireStale(ctx context.Context, empresaID uuid.UUID, fileName string, before time.Time, message string) (int64, error)
	Create(ctx context.Context, empresaID uuid.UUID, fileName string) (*models.UploadHistory, error)
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.UploadHistory, error)
	ListSuccess(ctx context.Context, empresaID uuid.UUID) ([]*models.UploadHistory, error)
	UpdateProgress(ctx context.Context, empresaID, id uuid.UUID, total, processed int) error
	SetObjectKey(ctx context.Context, empresaID, id uuid.UUID, key string) error
	MarkSuccess(ctx context.Context, empresaID, id uuid.UUID, total, processed, failed int) error
	MarkError(ctx context.Context, empresaID, id uuid.UUID, message string, total, processed int) error
}

// RecordStore writes constituent records, optionally inside one transaction.
type RecordStore interface {
	eleitores.BatchWriter
	InTx(ctx context.Context, fn func(eleitores.BatchWriter) error) error
}

// Notifier receives progress and status changes for live clients.
type Notifier interface {
	ImportProgress(empresaID, runID uuid.UUID, p models.Progress)
	HistoryChanged(empresaID, runID uuid.UUID, status models.UploadStatus)
}

// Config tunes the import pipeline.
type Config struct {
	BatchSize   int
	PreviewRows int
	// Atomic writes all batches of a run in one transaction.
	Atomic bool
	// Strict rejects CPF and phone values of invalid length instead of padding them.
	Strict     bool
	StaleAfter time.Duration
}

// Service orchestrates imports.
type Service struct {
	history HistoryStore
	records RecordStore
	notify  Notifier
	mapper  ingest.Mapper
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an import service. A nil notifier disables live updates.
func NewService(history HistoryStore, records RecordStore, notify Notifier, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 3
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		history: history,
		records: records,
		notify:  notify,
		mapper:  ingest.Mapper{Strict: cfg.Strict},
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Parse reads an uploaded file and rejects files without data rows.
func (s *Service) Parse(r io.Reader) (*ingest.Table, error) {
	table, err := ingest.Parse(r)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, ErrEmptyFile
	}
	return table, nil
}

// CheckFile cleans the file name and rejects names already imported by the empresa.
// It runs before the file is parsed so a re-upload is reported as a duplicate first.
func (s *Service) CheckFile(ctx context.Context, empresaID uuid.UUID, fileName string) (string, error) {
	fileName, err := cleanFileName(fileName)
	if err != nil {
		return "", err
	}
	if err := s.checkDuplicate(ctx, empresaID, fileName); err != nil {
		return "", err
	}
	return fileName, nil
}

// Preview checks the file name against earlier imports and summarizes the file. Nothing is written.
func (s *Service) Preview(ctx context.Context, empresaID uuid.UUID, fileName string, r io.Reader) (*Preview, error) {
	fileName, err := s.CheckFile(ctx, empresaID, fileName)
	if err != nil {
		return nil, err
	}
	table, err := s.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Preview{FileName: fileName, Preview: table.Preview(s.cfg.PreviewRows)}, nil
}

// Import parses the file and writes it in one call.
func (s *Service) Import(ctx context.Context, empresaID uuid.UUID, fileName string, r io.Reader) (*Result, error) {
	fileName, err := s.CheckFile(ctx, empresaID, fileName)
	if err != nil {
		return nil, err
	}
	table, err := s.Parse(r)
	if err != nil {
		return nil, err
	}
	run, err := s.Begin(ctx, empresaID, fileName)
	if err != nil {
		return nil, err
	}
	return s.Write(ctx, run, table.RawRows())
}

// Begin re-checks for duplicates and creates the in_progress run that locks the file name.
func (s *Service) Begin(ctx context.Context, empresaID uuid.UUID, fileName string) (*Run, error) {
	fileName, err := cleanFileName(fileName)
	if err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, empresaID, fileName); err != nil {
		return nil, err
	}

	expired, err := s.history.ExpireStale(ctx, empresaID, fileName, s.now().Add(-s.cfg.StaleAfter), models.MessageAbandoned)
	if err != nil {
		return nil, fmt.Errorf("expire stale runs: %w", err)
	}
	if expired > 0 {
		s.logger.Warn("stale import runs relabeled",
			zap.String("empresa_id", empresaID.String()),
			zap.String("file", fileName),
			zap.Int64("count", expired),
		)
	}

	h, err := s.history.Create(ctx, empresaID, fileName)
	if err != nil {
		if errors.Is(err, uploadhistory.ErrLocked) {
			return nil, ErrImportInProgress
		}
		return nil, fmt.Errorf("create run: %w", err)
	}
	s.notify.HistoryChanged(empresaID, h.ID, models.UploadInProgress)
	s.logger.Info("import started",
		zap.String("run_id", h.ID.String()),
		zap.String("empresa_id", empresaID.String()),
		zap.String("file", fileName),
	)
	return &Run{ID: h.ID, EmpresaID: empresaID, FileName: fileName, StartedAt: h.CreatedAt}, nil
}

// Resume loads a run created by Begin so a worker can write it.
func (s *Service) Resume(ctx context.Context, empresaID, runID uuid.UUID) (*Run, error) {
	h, err := s.Get(ctx, empresaID, runID)
	if err != nil {
		return nil, err
	}
	if h.Status != models.UploadInProgress {
		return nil, fmt.Errorf("%w: %s", ErrRunNotActive, h.Status)
	}
	return &Run{ID: h.ID, EmpresaID: h.EmpresaID, FileName: h.ArquivoNome, StartedAt: h.CreatedAt}, nil
}

// AttachSource records where the run's uploaded file was stored.
func (s *Service) AttachSource(ctx context.Context, run *Run, key string) error {
	if err := s.history.SetObjectKey(ctx, run.EmpresaID, run.ID, key); err != nil {
		return fmt.Errorf("attach source: %w", err)
	}
	return nil
}

// Write maps rows to records and inserts them batch by batch, then closes the run.
// On failure the run is marked error with the cause and the error is returned.
func (s *Service) Write(ctx context.Context, run *Run, rows []ingest.RawRow) (*Result, error) {
	mc := ingest.MapContext{EmpresaID: run.EmpresaID, UploadID: run.ID, Now: s.now()}
	records := make([]models.Eleitor, 0, len(rows))
	for i, raw := range rows {
		rec, issues := s.mapper.Map(ingest.Resolve(raw), mc)
		if len(issues) > 0 {
			run.RowsWithIssues++
			s.logger.Debug("row normalized with issues",
				zap.String("run_id", run.ID.String()),
				zap.Int("row", i+1),
				zap.Any("issues", issues),
			)
		}
		records = append(records, rec)
	}
	run.Progress = models.NewProgress(len(records), 0)

	write := func(w eleitores.BatchWriter) error {
		return s.writeBatches(ctx, run, w, records)
	}
	var err error
	if s.cfg.Atomic {
		err = s.records.InTx(ctx, write)
	} else {
		err = write(s.records)
	}
	if err != nil {
		return nil, s.Abort(ctx, run, err)
	}

	res := &Result{Run: run}
	if err := s.history.MarkSuccess(ctx, run.EmpresaID, run.ID, run.Progress.Total, run.Progress.Processed, run.RowsWithIssues); err != nil {
		s.logger.Warn("import written but status not updated",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
		res.Warning = statusLostWarning
		return res, nil
	}
	s.notify.HistoryChanged(run.EmpresaID, run.ID, models.UploadSuccess)
	s.logger.Info("import finished",
		zap.String("run_id", run.ID.String()),
		zap.Int("records", run.Progress.Processed),
		zap.Int("batches", run.Batches),
		zap.Int("rows_with_issues", run.RowsWithIssues),
	)
	return res, nil
}

func (s *Service) writeBatches(ctx context.Context, run *Run, w eleitores.BatchWriter, records []models.Eleitor) error {
	size := s.cfg.BatchSize
	for start := 0; start < len(records); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(records))
		if _, err := w.InsertBatch(ctx, records[start:end]); err != nil {
			return fmt.Errorf("insert batch %d: %w", run.Batches+1, err)
		}
		run.Batches++
		run.Progress = models.NewProgress(len(records), end)
		s.notify.ImportProgress(run.EmpresaID, run.ID, run.Progress)
		if err := s.history.UpdateProgress(ctx, run.EmpresaID, run.ID, run.Progress.Total, run.Progress.Processed); err != nil {
			s.logger.Warn("progress not persisted",
				zap.String("run_id", run.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Abort marks the run error with the cause and returns the cause wrapped with the run id.
// The status update outlives a cancelled ctx.
func (s *Service) Abort(ctx context.Context, run *Run, cause error) error {
	msg := cause.Error()
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		msg = models.MessageCancelled
	}
	processed := run.Progress.Processed
	if s.cfg.Atomic {
		processed = 0
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
	defer cancel()
	if err := s.history.MarkError(bg, run.EmpresaID, run.ID, truncateMessage(msg), run.Progress.Total, processed); err != nil {
		s.logger.Error("failed to mark import as error",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	} else {
		s.notify.HistoryChanged(run.EmpresaID, run.ID, models.UploadError)
	}
	s.logger.Error("import failed",
		zap.String("run_id", run.ID.String()),
		zap.Int("processed", processed),
		zap.Error(cause),
	)
	return fmt.Errorf("import %s: %w", run.ID, cause)
}

// List returns the empresa's successful runs, newest first.
func (s *Service) List(ctx context.Context, empresaID uuid.UUID) ([]*models.UploadHistory, error) {
	list, err := s.history.ListSuccess(ctx, empresaID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if list == nil {
		list = []*models.UploadHistory{}
	}
	return list, nil
}

// Get returns one run of the empresa.
func (s *Service) Get(ctx context.Context, empresaID, runID uuid.UUID) (*models.UploadHistory, error) {
	h, err := s.history.GetByID(ctx, empresaID, runID)
	if err != nil {
		if errors.Is(err, uploadhistory.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return h, nil
}

func (s *Service) checkDuplicate(ctx context.Context, empresaID uuid.UUID, fileName string) error {
	prev, err := s.history.FindSuccess(ctx, empresaID, fileName)
	if err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if prev != nil {
		return ErrDuplicateFile
	}
	return nil
}

func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "", ErrInvalidFileName
	}
	return name, nil
}

func truncateMessage(msg string) string {
	if len(msg) <= maxMessageLength {
		return msg
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

type nopNotifier struct{}

func (nopNotifier) ImportProgress(uuid.UUID, uuid.UUID, models.Progress)     {}
func (nopNotifier) HistoryChanged(uuid.UUID, uuid.UUID, models.UploadStatus) {}
