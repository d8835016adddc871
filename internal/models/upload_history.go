package models

import (
	"time"

	"github.com/google/uuid"
)

// UploadStatus is the lifecycle state of an import run.
type UploadStatus string

const (
	UploadInProgress UploadStatus = "in_progress"
	UploadSuccess    UploadStatus = "success"
	UploadError      UploadStatus = "error"
)

// Messages stored in erro_mensagem when a run is retired by an operator or by the pipeline.
const (
	MessageDeletedByUser = "deleted by user"
	MessageHiddenByUser  = "hidden by user"
	MessageAbandoned     = "import abandoned before completion"
	MessageCancelled     = "import cancelled"
)

// UploadHistory is one import run of a file for an empresa (table gbp_upload_history).
// Runs are never physically deleted; retired runs are relabeled to error.
type UploadHistory struct {
	ID                   uuid.UUID    `json:"id"`
	EmpresaID            uuid.UUID    `json:"empresa_id"`
	ArquivoNome          string       `json:"arquivo_nome"`
	RegistrosTotal       int          `json:"registros_total"`
	RegistrosProcessados int          `json:"registros_processados"`
	RegistrosErro        int          `json:"registros_erro"`
	Status               UploadStatus `json:"status"`
	ErroMensagem         *string      `json:"erro_mensagem,omitempty"`
	ObjectKey            *string      `json:"-"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// Progress reports how far a long-running operation has advanced.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Percent   int `json:"percent"`
}

// NewProgress builds a Progress with Percent derived as round(processed/total*100).
func NewProgress(total, processed int) Progress {
	p := Progress{Total: total, Processed: processed}
	if total > 0 {
		p.Percent = int((float64(processed)/float64(total))*100 + 0.5)
	}
	return p
}

// PhaseProgress builds a Progress for operations that advance in fixed phases (33/66/100).
func PhaseProgress(total, percent int) Progress {
	return Progress{Total: total, Processed: total * percent / 100, Percent: percent}
}

// Done reports whether the operation has processed every item.
func (p Progress) Done() bool {
	return p.Processed >= p.Total
}
