package model

// ExtractionResult is the outcome of scanning the export status page.
// Success with no Links means no export is available yet.
type ExtractionResult struct {
	Success bool
	Links   []string // In document order, entity-decoded
}

// HasLinks reports whether at least one export link was found
func (r *ExtractionResult) HasLinks() bool {
	return r != nil && len(r.Links) > 0
}
