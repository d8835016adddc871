package imports

import "errors"

var (
	// ErrDuplicateFile is returned when the empresa already has a successful run of the same file name.
	ErrDuplicateFile = errors.New("file already imported")
	// ErrImportInProgress is returned when another import of the same file is still running.
	ErrImportInProgress = errors.New("import of this file is already in progress")
	// ErrRunNotFound is returned when the run does not exist for the empresa.
	ErrRunNotFound = errors.New("import run not found")
	// ErrRunNotActive is returned when a worker resumes a run that already finished.
	ErrRunNotActive = errors.New("import run is not in progress")
	// ErrEmptyFile is returned when the file has a header row but no data rows.
	ErrEmptyFile = errors.New("file has no data rows")
	// ErrInvalidFileName is returned when the upload carries no usable file name.
	ErrInvalidFileName = errors.New("file name is required")
)
