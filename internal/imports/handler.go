package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/archive"
	"github.com/gbp-politico/backend/internal/ingest"
	"github.com/gbp-politico/backend/internal/middleware"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/template"
	"github.com/gbp-politico/backend/pkg/queue"
	"github.com/gbp-politico/backend/pkg/response"
	"github.com/gbp-politico/backend/pkg/storage"
)

// multipart framing on top of the file itself
const multipartSlack = 64 * 1024

var errSourceUnavailable = errors.New("file storage unavailable")

// Archiver retires runs.
type Archiver interface {
	Delete(ctx context.Context, empresaID, runID uuid.UUID) (*archive.Result, error)
	Hide(ctx context.Context, empresaID, runID uuid.UUID) (*archive.Result, error)
}

// SourceStore keeps uploaded files for the worker and for download.
type SourceStore interface {
	UploadImport(ctx context.Context, key string, body io.Reader, size int64) error
	PresignImportDownload(ctx context.Context, key string) (string, error)
}

// JobQueue hands imports to the background worker.
type JobQueue interface {
	EnqueueImportFile(ctx context.Context, payload queue.ImportFilePayload) error
}

// HandlerConfig tunes the HTTP surface.
type HandlerConfig struct {
	MaxUploadBytes int64
	// Async enqueues imports when both a SourceStore and a JobQueue are configured.
	Async bool
}

// Handler handles import HTTP endpoints.
type Handler struct {
	svc      *Service
	archiver Archiver
	sources  SourceStore
	jobs     JobQueue
	cfg      HandlerConfig
	logger   *zap.Logger
}

// NewHandler creates an import handler. sources and jobs may be nil.
func NewHandler(svc *Service, archiver Archiver, sources SourceStore, jobs JobQueue, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, archiver: archiver, sources: sources, jobs: jobs, cfg: cfg, logger: logger}
}

func (h *Handler) async() bool {
	return h.cfg.Async && h.sources != nil && h.jobs != nil
}

// Preview handles POST /imports/preview (multipart field "file").
func (h *Handler) Preview(c *gin.Context) {
	empresaID, ok := h.empresa(c)
	if !ok {
		return
	}
	name, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	p, err := h.svc.Preview(c.Request.Context(), empresaID, name, bytes.NewReader(data))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, p)
}

// Create handles POST /imports. Small deployments write synchronously and answer 201 with the
// result; with storage and a queue configured the run is handed to the worker and answered 202.
func (h *Handler) Create(c *gin.Context) {
	empresaID, ok := h.empresa(c)
	if !ok {
		return
	}
	name, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.svc.CheckFile(ctx, empresaID, name); err != nil {
		h.fail(c, err)
		return
	}
	table, err := h.svc.Parse(bytes.NewReader(data))
	if err != nil {
		h.fail(c, err)
		return
	}
	run, err := h.svc.Begin(ctx, empresaID, name)
	if err != nil {
		h.fail(c, err)
		return
	}

	key, stored := h.storeSource(ctx, run, data)
	if h.async() {
		if !stored {
			_ = h.svc.Abort(ctx, run, errSourceUnavailable)
			response.ServiceUnavailable(c, errSourceUnavailable.Error())
			return
		}
		err := h.jobs.EnqueueImportFile(ctx, queue.ImportFilePayload{
			RunID:     run.ID,
			EmpresaID: empresaID,
			FileName:  run.FileName,
			ObjectKey: key,
		})
		if err != nil {
			_ = h.svc.Abort(ctx, run, fmt.Errorf("enqueue import: %w", err))
			response.ServiceUnavailable(c, "job queue unavailable")
			return
		}
		run.Progress = models.NewProgress(table.Len(), 0)
		response.Accepted(c, run)
		return
	}

	res, err := h.svc.Write(ctx, run, table.RawRows())
	if err != nil {
		cause := err
		if inner := errors.Unwrap(err); inner != nil {
			cause = inner
		}
		response.Internal(c, "import failed: "+cause.Error())
		return
	}
	response.Created(c, res)
}

func (h *Handler) storeSource(ctx context.Context, run *Run, data []byte) (string, bool) {
	if h.sources == nil {
		return "", false
	}
	key := storage.ImportKey(run.EmpresaID, run.ID, run.FileName)
	if err := h.sources.UploadImport(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		h.logger.Warn("import source not stored", zap.String("run_id", run.ID.String()), zap.Error(err))
		return "", false
	}
	if err := h.svc.AttachSource(ctx, run, key); err != nil {
		h.logger.Warn("import source not attached", zap.String("run_id", run.ID.String()), zap.Error(err))
		return "", false
	}
	return key, true
}

// List handles GET /imports.
func (h *Handler) List(c *gin.Context) {
	empresaID, ok := h.empresa(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), empresaID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /imports/:id.
func (h *Handler) Get(c *gin.Context) {
	empresaID, runID, ok := h.runParams(c)
	if !ok {
		return
	}
	run, err := h.svc.Get(c.Request.Context(), empresaID, runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, run)
}

// Download handles GET /imports/:id/file with a short-lived link to the uploaded file.
func (h *Handler) Download(c *gin.Context) {
	empresaID, runID, ok := h.runParams(c)
	if !ok {
		return
	}
	run, err := h.svc.Get(c.Request.Context(), empresaID, runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.sources == nil || run.ObjectKey == nil {
		response.NotFound(c, "source file not stored for this import")
		return
	}
	url, err := h.sources.PresignImportDownload(c.Request.Context(), *run.ObjectKey)
	if err != nil {
		h.logger.Error("presign import download failed", zap.String("run_id", runID.String()), zap.Error(err))
		response.Internal(c, "failed to generate download link")
		return
	}
	response.OK(c, gin.H{"url": url})
}

// Delete handles DELETE /imports/:id. A run with no records answers 409 with
// requires_confirmation; the client then calls Hide.
func (h *Handler) Delete(c *gin.Context) {
	empresaID, runID, ok := h.runParams(c)
	if !ok {
		return
	}
	res, err := h.archiver.Delete(c.Request.Context(), empresaID, runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Outcome == archive.OutcomeNothingToArchive {
		c.JSON(http.StatusConflict, response.Body{
			Success: false,
			Data:    res,
			Error:   "import has no records left; confirm to hide it from the history",
		})
		return
	}
	response.OK(c, res)
}

// Hide handles POST /imports/:id/hide.
func (h *Handler) Hide(c *gin.Context) {
	empresaID, runID, ok := h.runParams(c)
	if !ok {
		return
	}
	res, err := h.archiver.Hide(c.Request.Context(), empresaID, runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// Template handles GET /imports/template.
func (h *Handler) Template(c *gin.Context) {
	var buf bytes.Buffer
	if err := template.Write(&buf); err != nil {
		h.logger.Error("build import template failed", zap.Error(err))
		response.Internal(c, "failed to build template")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+template.FileName+`"`)
	c.Data(http.StatusOK, template.ContentType, buf.Bytes())
}

func (h *Handler) empresa(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.EmpresaID(c)
	if !ok {
		response.Forbidden(c, "no active empresa")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) runParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	empresaID, ok := h.empresa(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid import id")
		return uuid.Nil, uuid.Nil, false
	}
	return empresaID, runID, true
}

// readUpload returns the multipart "file" field after size and type checks.
func (h *Handler) readUpload(c *gin.Context) (string, []byte, bool) {
	limit := h.cfg.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, tooLargeMessage(limit))
			return "", nil, false
		}
		response.BadRequest(c, "file is required")
		return "", nil, false
	}
	if fh.Size > limit {
		response.PayloadTooLarge(c, tooLargeMessage(limit))
		return "", nil, false
	}
	if !storage.ValidateImportFile(fh.Header.Get("Content-Type"), fh.Filename) {
		response.BadRequest(c, "only CSV files are accepted")
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return "", nil, false
	}
	return fh.Filename, data, true
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("file exceeds the %d MB limit", limit/(1024*1024))
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDuplicateFile):
		response.Conflict(c, "this file has already been imported; delete the previous import first")
	case errors.Is(err, ErrImportInProgress), errors.Is(err, archive.ErrRunInProgress):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrRunNotFound), errors.Is(err, archive.ErrRunNotFound):
		response.NotFound(c, "import not found")
	case errors.Is(err, ErrInvalidFileName):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ingest.ErrParse):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, archive.ErrArchive):
		h.logger.Error("archive failed", zap.Error(err))
		response.Internal(c, "failed to archive records; nothing was deleted")
	case errors.Is(err, archive.ErrPurgeAfterArchive):
		h.logger.Error("purge after archive failed", zap.Error(err))
		response.Internal(c, "records were archived but could not be removed; contact support")
	default:
		h.logger.Error("import request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
