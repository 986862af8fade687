package model

// DownloadResult is the outcome of downloading every export link.
// On success Paths[i] holds the file downloaded from the i-th URL.
type DownloadResult struct {
	Success bool
	Paths   []string // Local paths, in input URL order
}

// Count returns the number of downloaded files
func (r *DownloadResult) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Paths)
}
