package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/gbp-politico/backend/internal/models"
)

// progressPrinter reports import and delete progress on a terminal.
type progressPrinter struct {
	w io.Writer
}

func (p progressPrinter) ImportProgress(_, runID uuid.UUID, pr models.Progress) {
	fmt.Fprintf(p.w, "import %s: %d/%d (%d%%)\n", shortID(runID), pr.Processed, pr.Total, pr.Percent)
}

func (p progressPrinter) DeleteProgress(_, runID uuid.UUID, pr models.Progress) {
	fmt.Fprintf(p.w, "delete %s: %d%%\n", shortID(runID), pr.Percent)
}

func (p progressPrinter) HistoryChanged(_, runID uuid.UUID, status models.UploadStatus) {
	fmt.Fprintf(p.w, "run %s is now %s\n", shortID(runID), status)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
