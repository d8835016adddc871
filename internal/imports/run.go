package imports

import (
	"time"

	"github.com/google/uuid"

	"github.com/gbp-politico/backend/internal/ingest"
	"github.com/gbp-politico/backend/internal/models"
)

// Run is the in-memory state of one import while its batches are written.
type Run struct {
	ID        uuid.UUID       `json:"id"`
	EmpresaID uuid.UUID       `json:"empresa_id"`
	FileName  string          `json:"arquivo_nome"`
	StartedAt time.Time       `json:"started_at"`
	Progress  models.Progress `json:"progress"`
	Batches   int             `json:"batches"`
	// RowsWithIssues counts rows where at least one value was padded, truncated or rejected.
	RowsWithIssues int `json:"rows_with_issues"`
}

// Result is what a finished import reports back to the caller.
type Result struct {
	Run *Run `json:"run"`
	// Warning is set when the records were written but the run status could not be updated.
	Warning string `json:"warning,omitempty"`
}

// Preview is returned before an import is confirmed.
type Preview struct {
	FileName string `json:"arquivo_nome"`
	ingest.Preview
}
