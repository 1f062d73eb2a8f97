// Package store defines the narrow document-store contract the sync
// engine depends on.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is the minimal contract against a document store holding one
// document per active catalog identifier. Implementations must provide
// per-document atomic writes; no cross-document transaction is assumed.
type Store interface {
	// IDs returns the identifiers of all persisted catalog documents.
	IDs(ctx context.Context) ([]string, error)
	// Upsert inserts or replaces the document for the given identifier.
	Upsert(ctx context.Context, id string, doc json.RawMessage) error
	// Delete removes the document for the given identifier. Deleting an
	// absent document is not an error.
	Delete(ctx context.Context, id string) error
	// Close releases the store's resources. The store must not be used
	// afterwards.
	Close() error
}

// ConnError reports that the store was unreachable, as opposed to a
// single document operation failing.
type ConnError struct {
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("store unreachable: %s", e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
