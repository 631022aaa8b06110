package models

import "github.com/google/uuid"

// NewID returns a time-ordered (v7) UUID so that ordering rows by id
// follows creation order.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
