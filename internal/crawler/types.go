// Package crawler implements the album crawling pipeline: traversal control,
// page fetching, field extraction, resume tracking, and output buffering.
package crawler

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// aotyIDPattern captures the {numeric-id}-{slug} portion of an album URL.
var aotyIDPattern = regexp.MustCompile(`/album/(\d+-[^/]+)\.php`)

// AlbumRecord is the structured result of extracting one album page.
// Nullable numeric fields are pointers so "missing" and "zero" stay distinct
// in the persisted output.
type AlbumRecord struct {
	AotyID            string    `json:"aoty_id"`
	Title             string    `json:"title"`
	ArtistName        string    `json:"artist_name"`
	URL               string    `json:"url"`
	ReleaseDate       string    `json:"release_date,omitempty"`
	CriticScore       *float64  `json:"critic_score"`
	UserScore         *float64  `json:"user_score"`
	CriticReviewCount *int      `json:"critic_review_count"`
	UserReviewCount   *int      `json:"user_review_count"`
	Genres            []string  `json:"genres"`
	GenreTags         []string  `json:"genre_tags,omitempty"`
	CoverImageURL     string    `json:"cover_image_url,omitempty"`
	Description       string    `json:"description,omitempty"`
	ScrapeGenre       string    `json:"scrape_genre"`
	ScrapeYear        int       `json:"scrape_year"`
	ScrapedAt         time.Time `json:"scraped_at"`
}

// placeholderValues are link texts the site serves where a real title or
// artist should be; they are treated as absent.
var placeholderValues = map[string]struct{}{
	"discography":       {},
	"submit correction": {},
	"unknown":           {},
}

func isPlaceholder(s string) bool {
	_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(s))]
	return ok || strings.TrimSpace(s) == ""
}

// Valid reports whether the record carries enough signal to persist:
// a real title and artist, at least one score or review count, and at
// least one genre.
func (r AlbumRecord) Valid() bool {
	if isPlaceholder(r.Title) || isPlaceholder(r.ArtistName) {
		return false
	}
	hasSignal := r.CriticScore != nil || r.UserScore != nil ||
		r.CriticReviewCount != nil || r.UserReviewCount != nil
	return hasSignal && len(r.Genres) > 0
}

// ExtractAotyID pulls the {digits}-{slug} identity out of an album URL.
// It returns "" when the URL does not look like an album page.
func ExtractAotyID(rawURL string) string {
	m := aotyIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// GenreDescriptor identifies one genre discovered on the site.
type GenreDescriptor struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent string `json:"parent,omitempty"`
}

// Page is one fetched document, rendered or not.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	UsedJS     bool
}

// Document parses the page body into a goquery document.
func (p Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", p.URL, err)
	}
	return doc, nil
}

// Summary is reported at the end of a crawl run.
type Summary struct {
	RunID           string        `json:"run_id"`
	AlbumsScraped   int           `json:"albums_scraped"`
	AlbumsSkipped   int           `json:"albums_skipped"`
	GenresProcessed int           `json:"genres_processed"`
	PagesFetched    int           `json:"pages_fetched"`
	TaskFailures    int           `json:"task_failures"`
	Duration        time.Duration `json:"duration"`
}
