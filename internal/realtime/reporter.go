package realtime

import (
	"github.com/google/uuid"

	"github.com/gbp-politico/backend/internal/models"
)

// Events pushed to empresa rooms.
const (
	EventImportProgress       = "import_progress"
	EventDeleteProgress       = "delete_progress"
	EventUploadHistoryChanged = "upload_history_changed"
)

// ProgressEvent is the payload of import_progress and delete_progress.
type ProgressEvent struct {
	RunID uuid.UUID `json:"run_id"`
	models.Progress
}

// HistoryEvent is the payload of upload_history_changed.
type HistoryEvent struct {
	RunID  uuid.UUID           `json:"run_id"`
	Status models.UploadStatus `json:"status"`
}

// Reporter turns import and archive notifications into hub events.
type Reporter struct {
	hub *Hub
}

// NewReporter creates a reporter publishing through hub.
func NewReporter(hub *Hub) *Reporter {
	return &Reporter{hub: hub}
}

func (r *Reporter) ImportProgress(empresaID, runID uuid.UUID, p models.Progress) {
	r.hub.Publish(empresaID, EventImportProgress, ProgressEvent{RunID: runID, Progress: p})
}

func (r *Reporter) DeleteProgress(empresaID, runID uuid.UUID, p models.Progress) {
	r.hub.Publish(empresaID, EventDeleteProgress, ProgressEvent{RunID: runID, Progress: p})
}

func (r *Reporter) HistoryChanged(empresaID, runID uuid.UUID, status models.UploadStatus) {
	r.hub.Publish(empresaID, EventUploadHistoryChanged, HistoryEvent{RunID: runID, Status: status})
}
