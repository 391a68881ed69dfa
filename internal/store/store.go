package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/shiki-proxy/internal/catalog"
)

// PersistenceError wraps a store write/read failure. It is not retried here;
// the backfill orchestrator decides whether to retry the whole partition.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Store defines all persistence operations of the ingestion proxy.
// Upserts are keyed by the upstream id and replace every field of an
// existing row; repeated ingestion of the same id never duplicates it.
type Store interface {
	// Writes
	UpsertEntries(ctx context.Context, entries []catalog.Entry) error
	UpdateScore(ctx context.Context, id int, mean *float64, status string) error
	UpdatePopularity(ctx context.Context, id, popularity int) error

	// Reads
	AiringIDs(ctx context.Context, limit int) ([]int, error)
	MissingPopularityIDs(ctx context.Context) ([]int, error)
	KeepAlive(ctx context.Context) error
}
