// Package database defines the interface for persisting album records to
// PostgreSQL. The file outputs remain the source of truth; the database is
// an optional queryable mirror.
package database

import (
	"context"

	"github.com/musicdata/aoty-crawler/internal/crawler"
)

// Provider is the persistence interface for extracted albums.
type Provider interface {
	// SaveAlbum upserts one album keyed by its aoty_id.
	SaveAlbum(ctx context.Context, album crawler.AlbumRecord) error

	// Close releases the underlying connections.
	Close()
}

// NoOpProvider discards every write. Used when no DSN is configured.
type NoOpProvider struct{}

// SaveAlbum does nothing.
func (NoOpProvider) SaveAlbum(_ context.Context, _ crawler.AlbumRecord) error { return nil }

// Close does nothing.
func (NoOpProvider) Close() {}
