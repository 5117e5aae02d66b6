package database

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/musicdata/aoty-crawler/internal/crawler"
)

// MockProvider is a testify mock of the Provider interface.
type MockProvider struct {
	mock.Mock
}

// SaveAlbum is the mock implementation of SaveAlbum.
func (m *MockProvider) SaveAlbum(ctx context.Context, album crawler.AlbumRecord) error {
	args := m.Called(ctx, album)
	return args.Error(0)
}

// Close is the mock implementation of Close.
func (m *MockProvider) Close() {
	m.Called()
}
