package types

import "github.com/google/uuid"

// RunID identifies one pipeline execution
type RunID string

// NewRunID generates a new random RunID
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

func (id RunID) String() string {
	return string(id)
}
