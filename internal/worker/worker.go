package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/imports"
	"github.com/gbp-politico/backend/internal/ingest"
	"github.com/gbp-politico/backend/pkg/queue"
)

const requeueTimeout = 5 * time.Second

// Importer is the part of the import service the worker drives.
type Importer interface {
	Resume(ctx context.Context, empresaID, runID uuid.UUID) (*imports.Run, error)
	Parse(r io.Reader) (*ingest.Table, error)
	Write(ctx context.Context, run *imports.Run, rows []ingest.RawRow) (*imports.Result, error)
	Abort(ctx context.Context, run *imports.Run, cause error) error
}

// Sources opens uploaded import files.
type Sources interface {
	OpenImport(ctx context.Context, key string) (io.ReadCloser, error)
}

// Jobs is the queue the worker consumes.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
	DeadLetter(ctx context.Context, job *queue.Job, reason string) error
}

// ImportProcessor writes queued imports: open the stored file, parse it, insert the records.
type ImportProcessor struct {
	importer Importer
	sources  Sources
	jobs     Jobs
	backoff  time.Duration
	logger   *zap.Logger
}

// NewImportProcessor creates an import job processor.
func NewImportProcessor(importer Importer, sources Sources, jobs Jobs, logger *zap.Logger) *ImportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportProcessor{importer: importer, sources: sources, jobs: jobs, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one import job. Errors wrapped with queue.Permanent must not be retried.
func (p *ImportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeImportFile {
		return queue.Permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}
	var payload queue.ImportFilePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("unmarshal payload: %w", err))
	}
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("run_id", payload.RunID.String()))

	run, err := p.importer.Resume(ctx, payload.EmpresaID, payload.RunID)
	switch {
	case errors.Is(err, imports.ErrRunNotActive):
		log.Info("import run already closed, skipping", zap.Error(err))
		return nil
	case errors.Is(err, imports.ErrRunNotFound):
		return queue.Permanent(err)
	case err != nil:
		return fmt.Errorf("resume run: %w", err)
	}

	body, err := p.sources.OpenImport(ctx, payload.ObjectKey)
	if err != nil {
		if job.Attempt+1 >= queue.MaxRetries {
			return queue.Permanent(p.importer.Abort(ctx, run, fmt.Errorf("source file unavailable: %w", err)))
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer body.Close()

	table, err := p.importer.Parse(body)
	if err != nil {
		return queue.Permanent(p.importer.Abort(ctx, run, err))
	}

	// Write closes the run itself, so a failure here is final.
	res, err := p.importer.Write(ctx, run, table.RawRows())
	if err != nil {
		return queue.Permanent(err)
	}
	if res.Warning != "" {
		log.Warn("import written with warning", zap.String("warning", res.Warning))
	}
	log.Info("import job completed",
		zap.Int("records", res.Run.Progress.Processed),
		zap.Int("batches", res.Run.Batches),
	)
	return nil
}

// Run consumes jobs until ctx is done.
func (p *ImportProcessor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			p.logger.Info("import worker stopping")
			return nil
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		p.handle(ctx, job)
	}
}

func (p *ImportProcessor) handle(ctx context.Context, job *queue.Job) {
	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	// the job has to survive shutdown
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	if errors.Is(err, queue.ErrPermanent) {
		p.logger.Error("job failed permanently", zap.String("job_id", job.ID), zap.Error(err))
		if dlqErr := p.jobs.DeadLetter(qctx, job, err.Error()); dlqErr != nil {
			p.logger.Error("dead letter failed", zap.String("job_id", job.ID), zap.Error(dlqErr))
		}
		return
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := p.jobs.Retry(qctx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
	}
	p.sleep(ctx)
}

func (p *ImportProcessor) sleep(ctx context.Context) {
	if p.backoff <= 0 {
		return
	}
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
