// internal/storage/archive/interface.go
package archive

import "context"

// Storage is a flat byte store keyed by slash-separated paths. The
// Archiver lays decision records out on top of it; backends only move
// bytes and never parse them.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every path under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
