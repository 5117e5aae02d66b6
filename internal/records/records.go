// Package records loads and queries previously persisted album output.
package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/crawler"
)

var trailingYearPattern = regexp.MustCompile(`(\d{4})\s*$`)

// Load reads every albums_*.json in dir and merges them, keeping the most
// recently scraped copy of each album. Unreadable files are logged and
// skipped.
func Load(dir string, logger *zap.Logger) ([]crawler.AlbumRecord, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "albums_*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan output dir %s: %w", dir, err)
	}

	byID := make(map[string]crawler.AlbumRecord)
	var order []string
	for _, file := range matches {
		data, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("Skipping unreadable output file",
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}
		var albums []crawler.AlbumRecord
		if err := json.Unmarshal(data, &albums); err != nil {
			logger.Warn("Skipping malformed output file",
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}
		for _, album := range albums {
			existing, ok := byID[album.AotyID]
			if !ok {
				order = append(order, album.AotyID)
				byID[album.AotyID] = album
				continue
			}
			if album.ScrapedAt.After(existing.ScrapedAt) {
				byID[album.AotyID] = album
			}
		}
	}

	out := make([]crawler.AlbumRecord, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// Filter selects albums from a loaded set. Zero values mean "no constraint".
type Filter struct {
	Genres         []string
	MatchAllGenres bool
	MinUserScore   float64
	MaxUserScore   float64
	MinUserReviews int
	Year           int
	Artist         string
	Limit          int
}

// Apply returns the albums passing every set constraint, in input order.
func (f Filter) Apply(albums []crawler.AlbumRecord) []crawler.AlbumRecord {
	var out []crawler.AlbumRecord
	for _, album := range albums {
		if !f.matches(album) {
			continue
		}
		out = append(out, album)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func (f Filter) matches(album crawler.AlbumRecord) bool {
	if len(f.Genres) > 0 && !f.matchGenres(album) {
		return false
	}
	if f.MinUserScore > 0 && (album.UserScore == nil || *album.UserScore < f.MinUserScore) {
		return false
	}
	if f.MaxUserScore > 0 && (album.UserScore == nil || *album.UserScore > f.MaxUserScore) {
		return false
	}
	if f.MinUserReviews > 0 && (album.UserReviewCount == nil || *album.UserReviewCount < f.MinUserReviews) {
		return false
	}
	if f.Year > 0 && releaseYear(album.ReleaseDate) != f.Year {
		return false
	}
	if f.Artist != "" && !strings.Contains(strings.ToLower(album.ArtistName), strings.ToLower(f.Artist)) {
		return false
	}
	return true
}

func (f Filter) matchGenres(album crawler.AlbumRecord) bool {
	have := make(map[string]struct{}, len(album.Genres))
	for _, genre := range album.Genres {
		have[strings.ToLower(genre)] = struct{}{}
	}
	hits := 0
	for _, want := range f.Genres {
		if _, ok := have[strings.ToLower(want)]; ok {
			hits++
		}
	}
	if f.MatchAllGenres {
		return hits == len(f.Genres)
	}
	return hits > 0
}

// releaseYear pulls the trailing four-digit year out of a display date like
// "June 14, 2024". Zero when absent.
func releaseYear(date string) int {
	m := trailingYearPattern.FindStringSubmatch(date)
	if m == nil {
		return 0
	}
	year := 0
	for _, c := range m[1] {
		year = year*10 + int(c-'0')
	}
	return year
}
