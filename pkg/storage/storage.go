// Package storage archives the original statement documents behind each
// import job, so a disputed booking can always be traced back to its source.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotArchived is returned when no document exists for a job.
var ErrNotArchived = errors.New("statement not archived")

// StatementFile describes one archived source document.
type StatementFile struct {
	JobID     uuid.UUID `json:"job_id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	Path      string    `json:"path"`
	StoredAt  time.Time `json:"stored_at"`
}

// Archive stores and retrieves statement documents, keyed by import job.
type Archive interface {
	// Store files the document away and returns the completed metadata.
	Store(ctx context.Context, file StatementFile, r io.Reader) (*StatementFile, error)

	// Open returns the archived document for a job.
	Open(ctx context.Context, accountID, jobID uuid.UUID) (io.ReadCloser, *StatementFile, error)

	// List returns every archived document for an account.
	List(ctx context.Context, accountID uuid.UUID) ([]StatementFile, error)

	// Delete removes a job's document and metadata.
	Delete(ctx context.Context, accountID, jobID uuid.UUID) error
}
