package records

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/musicdata/aoty-crawler/internal/crawler"
)

// ExportJSON writes albums to path as an indented JSON array.
func ExportJSON(path string, albums []crawler.AlbumRecord) error {
	data, err := json.MarshalIndent(albums, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}
	return nil
}

// ExportCSV writes albums to path with a fixed flat column set. Genre lists
// collapse to semicolon-joined cells.
func ExportCSV(path string, albums []crawler.AlbumRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"aoty_id", "title", "artist_name", "url", "release_date",
		"critic_score", "user_score", "critic_review_count", "user_review_count",
		"genres", "scrape_genre", "scrape_year", "scraped_at",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, album := range albums {
		row := []string{
			album.AotyID,
			album.Title,
			album.ArtistName,
			album.URL,
			album.ReleaseDate,
			floatCell(album.CriticScore),
			floatCell(album.UserScore),
			intCell(album.CriticReviewCount),
			intCell(album.UserReviewCount),
			strings.Join(album.Genres, "; "),
			album.ScrapeGenre,
			strconv.Itoa(album.ScrapeYear),
			album.ScrapedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export %s: %w", path, err)
	}
	return nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
