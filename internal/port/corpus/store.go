// Package corpus defines the port interface for read-only document storage.
package corpus

import (
	"context"

	"github.com/Strob0t/docmesh/internal/domain/corpus"
)

// Store is read-only access to one document corpus.
//
// Read returns an error wrapping domain.ErrNotFound for unknown names and
// Search one wrapping domain.ErrInvalidQuery for blank queries.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) (*corpus.Document, error)
	Search(ctx context.Context, query string) ([]corpus.Hit, error)
}
