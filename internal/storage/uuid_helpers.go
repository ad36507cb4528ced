package storage

import (
	"github.com/google/uuid"
)

// NewCorrelationID mints a fresh identifier for tagging one admin-style
// operation (create/drop/rename/truncate/checkpoint/dump) end to end across
// logs and the response returned to the caller.
func NewCorrelationID() string {
	return uuid.New().String()
}
