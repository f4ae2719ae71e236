package event

import "github.com/google/uuid"

// NewSession returns a fresh identifier for one traced run.
func NewSession() string {
	return uuid.NewString()
}
