package model

import "fmt"

// ConsolidationKind classifies a consolidation failure
type ConsolidationKind string

const (
	// ConsolidationCorrupt means an archive or one of its entries could not be read
	ConsolidationCorrupt ConsolidationKind = "corrupt"
	// ConsolidationExtract means an entry could not be written into the scratch directory
	ConsolidationExtract ConsolidationKind = "extract"
	// ConsolidationInUse means a processed archive could not be deleted
	ConsolidationInUse ConsolidationKind = "in_use"
	// ConsolidationPackaging means the consolidated archive could not be written
	ConsolidationPackaging ConsolidationKind = "packaging"
	// ConsolidationCleanup means the scratch directory could not be removed
	ConsolidationCleanup ConsolidationKind = "cleanup"
)

// ConsolidationError is returned by the consolidator. Path is the archive (or directory)
// that caused the failure.
type ConsolidationError struct {
	Kind ConsolidationKind
	Path string
	Err  error
}

func (e *ConsolidationError) Error() string {
	var msg string
	switch e.Kind {
	case ConsolidationCorrupt:
		msg = "archive is corrupt or uses an unsupported compression method"
	case ConsolidationExtract:
		msg = "failed to extract archive into scratch directory"
	case ConsolidationInUse:
		msg = "failed to delete archive after extracting, it may be in use"
	case ConsolidationPackaging:
		msg = "failed to create consolidated archive"
	case ConsolidationCleanup:
		msg = "failed to remove scratch directory"
	default:
		msg = "consolidation failed"
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: path=%s: %v", msg, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: path=%s", msg, e.Path)
}

func (e *ConsolidationError) Unwrap() error {
	return e.Err
}
