package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/crawler"
)

const albumsSchema = `
CREATE TABLE IF NOT EXISTS albums (
	aoty_id             TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	artist_name         TEXT NOT NULL,
	url                 TEXT NOT NULL,
	release_date        TEXT,
	critic_score        DOUBLE PRECISION,
	user_score          DOUBLE PRECISION,
	critic_review_count INTEGER,
	user_review_count   INTEGER,
	genres              JSONB,
	scrape_genre        TEXT,
	scrape_year         INTEGER,
	scraped_at          TIMESTAMPTZ NOT NULL
)`

const upsertAlbum = `
INSERT INTO albums (
	aoty_id, title, artist_name, url, release_date,
	critic_score, user_score, critic_review_count, user_review_count,
	genres, scrape_genre, scrape_year, scraped_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (aoty_id) DO UPDATE SET
	title = EXCLUDED.title,
	artist_name = EXCLUDED.artist_name,
	url = EXCLUDED.url,
	release_date = EXCLUDED.release_date,
	critic_score = EXCLUDED.critic_score,
	user_score = EXCLUDED.user_score,
	critic_review_count = EXCLUDED.critic_review_count,
	user_review_count = EXCLUDED.user_review_count,
	genres = EXCLUDED.genres,
	scrape_genre = EXCLUDED.scrape_genre,
	scrape_year = EXCLUDED.scrape_year,
	scraped_at = EXCLUDED.scraped_at`

// pgxPool is the slice of pgxpool.Pool this provider needs, narrowed so
// tests can substitute a pgxmock pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresProvider implements Provider on a pgx connection pool.
type PostgresProvider struct {
	pool   pgxPool
	logger *zap.Logger
}

// NewPostgresProvider connects to dsn, verifies the connection, and ensures
// the albums table exists.
func NewPostgresProvider(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	provider := &PostgresProvider{pool: pool, logger: logger}
	if err := provider.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := provider.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return provider, nil
}

// NewPostgresProviderWithPool wraps an existing pool, for tests.
func NewPostgresProviderWithPool(pool pgxPool, logger *zap.Logger) *PostgresProvider {
	return &PostgresProvider{pool: pool, logger: logger}
}

// EnsureSchema creates the albums table when missing.
func (p *PostgresProvider) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, albumsSchema); err != nil {
		return fmt.Errorf("ensure albums schema: %w", err)
	}
	return nil
}

// SaveAlbum upserts one album record keyed by aoty_id.
func (p *PostgresProvider) SaveAlbum(ctx context.Context, album crawler.AlbumRecord) error {
	genres, err := json.Marshal(album.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres for %s: %w", album.AotyID, err)
	}
	_, err = p.pool.Exec(ctx, upsertAlbum,
		album.AotyID,
		album.Title,
		album.ArtistName,
		album.URL,
		album.ReleaseDate,
		album.CriticScore,
		album.UserScore,
		album.CriticReviewCount,
		album.UserReviewCount,
		genres,
		album.ScrapeGenre,
		album.ScrapeYear,
		album.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert album %s: %w", album.AotyID, err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresProvider) Close() {
	p.pool.Close()
	p.logger.Debug("Postgres pool closed")
}
