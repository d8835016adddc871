// Package archive retires import runs: their records are copied to gbp_deletados before being
// removed from gbp_eleitores, and the run is relabeled so it leaves the history list.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/uploadhistory"
)

var (
	// ErrRunNotFound is returned when the run does not exist for the empresa.
	ErrRunNotFound = errors.New("import run not found")
	// ErrRunInProgress is returned for runs that are still being written.
	ErrRunInProgress = errors.New("import run is still in progress")
	// ErrArchive is returned when copying to the archive failed. Nothing was deleted.
	ErrArchive = errors.New("failed to archive records")
	// ErrPurgeAfterArchive is returned when records were archived but could not be removed.
	ErrPurgeAfterArchive = errors.New("records archived but not removed")
)

// Outcome tells the caller which path a request took.
type Outcome string

const (
	OutcomeArchived         Outcome = "archived"
	OutcomeNothingToArchive Outcome = "nothing_to_archive"
	OutcomeHidden           Outcome = "hidden"
)

// RecordStore reads and removes the live records of a run.
type RecordStore interface {
	ListByUpload(ctx context.Context, empresaID, uploadID uuid.UUID) ([]models.Eleitor, error)
	CountByUpload(ctx context.Context, empresaID, uploadID uuid.UUID) (int64, error)
	DeleteByUpload(ctx context.Context, empresaID, uploadID uuid.UUID) (int64, error)
}

// ArchiveStore appends archived records.
type ArchiveStore interface {
	InsertBatch(ctx context.Context, rows []models.DeletedEleitor) (int64, error)
}

// HistoryStore reads and relabels runs.
type HistoryStore interface {
	GetByID(ctx context.Context, empresaID, id uuid.UUID) (*models.UploadHistory, error)
	Relabel(ctx context.Context, empresaID, id uuid.UUID, message string) error
}

// Notifier receives delete progress and status changes for live clients.
type Notifier interface {
	DeleteProgress(empresaID, runID uuid.UUID, p models.Progress)
	HistoryChanged(empresaID, runID uuid.UUID, status models.UploadStatus)
}

// Result describes what happened to a run.
type Result struct {
	RunID    uuid.UUID       `json:"run_id"`
	Outcome  Outcome         `json:"outcome"`
	Archived int64           `json:"archived"`
	Deleted  int64           `json:"deleted"`
	Progress models.Progress `json:"progress"`
	// RequiresConfirmation is set when the run has no records left and can only be hidden.
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	Warning              string `json:"warning,omitempty"`
}

// Service archives and hides runs.
type Service struct {
	history HistoryStore
	records RecordStore
	archive ArchiveStore
	notify  Notifier
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an archive service. A nil notifier disables live updates.
func NewService(history HistoryStore, records RecordStore, archive ArchiveStore, notify Notifier, logger *zap.Logger) *Service {
	if notify == nil {
		notify = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		history: history,
		records: records,
		archive: archive,
		notify:  notify,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Delete archives every record of the run, removes them from the live table and relabels the run.
// A run without records is left untouched and reported as OutcomeNothingToArchive so the caller
// can offer Hide instead.
func (s *Service) Delete(ctx context.Context, empresaID, runID uuid.UUID) (*Result, error) {
	run, err := s.lookup(ctx, empresaID, runID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByUpload(ctx, empresaID, runID)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	if len(records) == 0 {
		return &Result{RunID: runID, Outcome: OutcomeNothingToArchive, RequiresConfirmation: true}, nil
	}

	res := &Result{RunID: runID, Outcome: OutcomeArchived}
	if err := s.purge(ctx, run, records, res); err != nil {
		return nil, err
	}
	if err := s.history.Relabel(ctx, empresaID, runID, models.MessageDeletedByUser); err != nil {
		s.logger.Warn("records archived but run not relabeled",
			zap.String("run_id", runID.String()),
			zap.Error(err),
		)
		res.Warning = "records were archived but the run is still listed; hide it to remove it"
		return res, nil
	}
	s.notify.HistoryChanged(empresaID, runID, models.UploadError)
	s.logger.Info("import run deleted",
		zap.String("run_id", runID.String()),
		zap.String("file", run.ArquivoNome),
		zap.Int64("archived", res.Archived),
	)
	return res, nil
}

// Hide relabels the run so it leaves the history list. Records that are still attached are
// archived first.
func (s *Service) Hide(ctx context.Context, empresaID, runID uuid.UUID) (*Result, error) {
	run, err := s.lookup(ctx, empresaID, runID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByUpload(ctx, empresaID, runID)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	res := &Result{RunID: runID, Outcome: OutcomeHidden}
	if len(records) > 0 {
		if err := s.purge(ctx, run, records, res); err != nil {
			return nil, err
		}
	}
	if err := s.history.Relabel(ctx, empresaID, runID, models.MessageHiddenByUser); err != nil {
		return nil, fmt.Errorf("hide run: %w", err)
	}
	s.notify.HistoryChanged(empresaID, runID, models.UploadError)
	s.logger.Info("import run hidden",
		zap.String("run_id", runID.String()),
		zap.String("file", run.ArquivoNome),
		zap.Int64("archived", res.Archived),
	)
	return res, nil
}

func (s *Service) lookup(ctx context.Context, empresaID, runID uuid.UUID) (*models.UploadHistory, error) {
	run, err := s.history.GetByID(ctx, empresaID, runID)
	if err != nil {
		if errors.Is(err, uploadhistory.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run.Status == models.UploadInProgress {
		return nil, ErrRunInProgress
	}
	return run, nil
}

// purge copies records to the archive and only then removes them from the live table.
func (s *Service) purge(ctx context.Context, run *models.UploadHistory, records []models.Eleitor, res *Result) error {
	total := len(records)
	s.phase(run, res, total, 33)

	now := s.now()
	rows := make([]models.DeletedEleitor, len(records))
	for i, rec := range records {
		rows[i] = rec.ToDeleted(now)
	}
	archived, err := s.archive.InsertBatch(ctx, rows)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	res.Archived = archived
	s.phase(run, res, total, 66)

	live, err := s.records.CountByUpload(ctx, run.EmpresaID, run.ID)
	switch {
	case err != nil:
		s.logger.Warn("live record count unavailable",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	case live != archived:
		s.logger.Warn("archived and live record counts differ",
			zap.String("run_id", run.ID.String()),
			zap.Int64("archived", archived),
			zap.Int64("live", live),
		)
		res.Warning = fmt.Sprintf("%d records were archived but the run had %d when they were removed", archived, live)
	}

	deleted, err := s.records.DeleteByUpload(ctx, run.EmpresaID, run.ID)
	if err != nil {
		s.logger.Error("records archived but not removed",
			zap.String("run_id", run.ID.String()),
			zap.Int64("archived", archived),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrPurgeAfterArchive, err)
	}
	res.Deleted = deleted
	s.phase(run, res, total, 100)
	return nil
}

func (s *Service) phase(run *models.UploadHistory, res *Result, total, percent int) {
	res.Progress = models.PhaseProgress(total, percent)
	s.notify.DeleteProgress(run.EmpresaID, run.ID, res.Progress)
}

type nopNotifier struct{}

func (nopNotifier) DeleteProgress(uuid.UUID, uuid.UUID, models.Progress)     {}
func (nopNotifier) HistoryChanged(uuid.UUID, uuid.UUID, models.UploadStatus) {}
