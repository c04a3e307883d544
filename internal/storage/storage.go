// Package storage defines the persistence boundary of the analysis engine
// and an in-memory implementation of it. Analysis runs follow a
// clear-and-recompute model: derived collections (threads, priorities) are
// wiped at the start of a run and fully rewritten.
package storage

import (
	"context"
	"errors"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store is the persistence collaborator of the analysis engine.
type Store interface {
	// InsertMessage stores a message, assigning an id when missing.
	InsertMessage(ctx context.Context, m *email.Message) (string, error)

	// Messages returns all stored messages.
	Messages(ctx context.Context) ([]*email.Message, error)

	// InsertThread stores a thread, assigning an id when missing.
	InsertThread(ctx context.Context, t *thread.Thread) (string, error)

	// Thread returns one thread by id, or ErrNotFound.
	Thread(ctx context.Context, id string) (*thread.Thread, error)

	// Threads returns all stored threads.
	Threads(ctx context.Context) ([]*thread.Thread, error)

	// InsertPriority stores a priority assessment, assigning an id when
	// missing.
	InsertPriority(ctx context.Context, p *priority.Priority) (string, error)

	// Priorities returns all stored priority assessments.
	Priorities(ctx context.Context) ([]*priority.Priority, error)

	// ClearAnalysis deletes all derived data (threads and priorities),
	// leaving messages intact.
	ClearAnalysis(ctx context.Context) error
}
