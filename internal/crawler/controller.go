package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/metrics"
)

// ErrChallengeDetected indicates a plain fetch returned the anti-bot
// interstitial and no renderer is available to wait it out.
var ErrChallengeDetected = errors.New("challenge interstitial received")

// GenreCatalog records genres discovered during the run.
type GenreCatalog interface {
	AddParent(name string)
	AddChild(name, parent string)
}

// Controller drives the three-level crawl: genre index, per-(genre, year)
// ratings lists, and album detail pages. Tasks run one at a time; the
// target host's access policy caps concurrency at one in-flight request.
type Controller struct {
	cfg       CrawlConfig
	fetcher   Fetcher
	renderer  Renderer
	detector  ChallengeDetector
	extractor *FieldExtractor
	sink      RecordSink
	ledger    Ledger
	catalog   GenreCatalog
	logger    *zap.Logger

	summary Summary
}

// NewController wires the crawl pipeline. renderer and catalog may be nil.
func NewController(
	cfg CrawlConfig,
	fetcher Fetcher,
	renderer Renderer,
	detector ChallengeDetector,
	sink RecordSink,
	ledger Ledger,
	catalog GenreCatalog,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		cfg:       cfg,
		fetcher:   fetcher,
		renderer:  renderer,
		detector:  detector,
		extractor: NewFieldExtractor(),
		sink:      sink,
		ledger:    ledger,
		catalog:   catalog,
		logger:    logger,
	}
}

// Run executes the crawl to completion or cancellation. Per-task failures
// are logged and counted but never abort the run; only an unreachable genre
// index (the run's entry point) is fatal.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	c.summary = Summary{RunID: uuid.NewString()}

	c.logger.Info("Starting crawl",
		zap.String("run_id", c.summary.RunID),
		zap.String("genre_filter", c.cfg.TargetGenre),
		zap.Int("start_year", c.cfg.StartYear),
		zap.Int("years_back", c.cfg.YearsBack),
		zap.Int("albums_per_year", c.cfg.AlbumsPerYear),
		zap.Bool("test_mode", c.cfg.TestMode),
	)

	genres, err := c.discoverGenres(ctx)
	if err != nil {
		c.summary.Duration = time.Since(start)
		return c.summary, err
	}

	matched := MatchGenres(genres, c.cfg.TargetGenre)
	if len(matched) == 0 {
		c.logger.Warn("No genres matched filter",
			zap.String("filter", c.cfg.TargetGenre),
			zap.Int("candidates", len(genres)),
		)
	}

	endYear := c.cfg.StartYear - c.cfg.YearsBack + 1
	for _, genre := range matched {
		if err := ctx.Err(); err != nil {
			c.summary.Duration = time.Since(start)
			return c.summary, err
		}
		c.recordGenre(genre)

		for year := c.cfg.StartYear; year >= endYear; year-- {
			if err := c.crawlYear(ctx, genre, year); err != nil {
				c.summary.Duration = time.Since(start)
				return c.summary, err
			}
			if c.cfg.TestMode {
				break
			}
		}
		c.summary.GenresProcessed++
		if c.cfg.TestMode {
			break
		}
	}

	c.summary.Duration = time.Since(start)
	c.logSummary()
	return c.summary, nil
}

// discoverGenres fetches the genre index once and parses its genre links.
func (c *Controller) discoverGenres(ctx context.Context) ([]GenreDescriptor, error) {
	indexURL := c.cfg.BaseURL + "/genre.php"
	page, err := c.fetchPage(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch genre index: %w", err)
	}
	doc, err := page.Document()
	if err != nil {
		return nil, fmt.Errorf("parse genre index: %w", err)
	}
	genres := ParseGenreLinks(doc)
	c.logger.Info("Discovered genres", zap.Int("count", len(genres)))
	return genres, nil
}

// crawlYear walks the paginated ratings list for one (genre, year) pair.
// List order is the site's own ranking and is preserved. Returns an error
// only on cancellation; a failed or malformed page terminates the branch.
func (c *Controller) crawlYear(ctx context.Context, genre GenreDescriptor, year int) error {
	pageURL := fmt.Sprintf("%s/ratings/user-highest-rated/%d/%s/", c.cfg.BaseURL, year, genre.Slug)
	taken := 0

	for pageURL != "" && taken < c.cfg.AlbumsPerYear {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.taskFailed("ratings page", pageURL, err)
			return nil
		}
		doc, err := page.Document()
		if err != nil {
			c.taskFailed("ratings page", pageURL, err)
			return nil
		}

		links := parseAlbumLinks(doc, firstNonEmpty(page.FinalURL, pageURL))
		c.logger.Info("Parsed ratings page",
			zap.String("genre", genre.Slug),
			zap.Int("year", year),
			zap.Int("links", len(links)),
			zap.Int("taken", taken),
		)

		newOnPage := 0
		for _, albumURL := range links {
			if taken >= c.cfg.AlbumsPerYear {
				break
			}
			// Already-captured albums skip the fetch but still consume
			// quota, so totals stay consistent across resumed runs.
			if c.ledger.Seen(albumURL) {
				taken++
				c.summary.AlbumsSkipped++
				metrics.ObserveAlbumSkipped()
				c.logger.Debug("Skipping already scraped album", zap.String("url", albumURL))
				continue
			}
			newOnPage++
			taken++
			if err := c.processAlbum(ctx, albumURL, genre, year); err != nil {
				return err
			}
		}

		// Pagination stops on quota, missing next link, or a page that
		// contributed nothing new; the last guards against malformed
		// pagination looping forever.
		if taken >= c.cfg.AlbumsPerYear || newOnPage == 0 {
			break
		}
		pageURL = parseNextPage(doc, firstNonEmpty(page.FinalURL, pageURL))
	}
	return nil
}

// processAlbum fetches one album page, extracts its record, and appends it
// with provenance attached. Returns an error only on cancellation.
func (c *Controller) processAlbum(ctx context.Context, albumURL string, genre GenreDescriptor, year int) error {
	page, err := c.fetchPage(ctx, albumURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.taskFailed("album page", albumURL, err)
		return nil
	}
	doc, err := page.Document()
	if err != nil {
		c.taskFailed("album page", albumURL, err)
		return nil
	}

	record := c.extractor.Extract(doc, albumURL)
	record.ScrapeGenre = genre.Slug
	record.ScrapeYear = year

	c.sink.Append(record)
	c.ledger.Add(albumURL)
	c.summary.AlbumsScraped++
	metrics.ObserveAlbumScraped()

	if c.catalog != nil {
		for _, name := range record.Genres {
			if name != genre.Name {
				c.catalog.AddChild(name, genre.Name)
			}
		}
	}

	c.logger.Info("Extracted album",
		zap.String("title", record.Title),
		zap.String("artist", record.ArtistName),
		zap.String("aoty_id", record.AotyID),
		zap.Int("total_scraped", c.summary.AlbumsScraped),
	)
	return nil
}

// fetchPage resolves one URL to a page, through the renderer when one is
// configured. Without a renderer, a body that looks like the challenge
// interstitial is a failed fetch: its markup would only poison extraction.
func (c *Controller) fetchPage(ctx context.Context, rawURL string) (Page, error) {
	if c.renderer != nil {
		page, err := c.renderer.Render(ctx, rawURL)
		if err != nil {
			return Page{}, err
		}
		c.summary.PagesFetched++
		return page, nil
	}

	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	if c.detector != nil && c.detector.IsChallenge("", string(page.Body)) {
		return Page{}, fmt.Errorf("fetch %s: %w", rawURL, ErrChallengeDetected)
	}
	c.summary.PagesFetched++
	return page, nil
}

func (c *Controller) recordGenre(genre GenreDescriptor) {
	c.sink.AppendGenre(genre)
	if c.catalog != nil {
		c.catalog.AddParent(genre.Name)
	}
	c.logger.Info("Crawling genre",
		zap.String("name", genre.Name),
		zap.String("slug", genre.Slug),
	)
}

func (c *Controller) taskFailed(kind, url string, err error) {
	c.summary.TaskFailures++
	c.logger.Warn("Task failed, continuing run",
		zap.String("kind", kind),
		zap.String("url", url),
		zap.Error(err),
	)
}

func (c *Controller) logSummary() {
	c.logger.Info("Crawl complete",
		zap.String("run_id", c.summary.RunID),
		zap.Int("albums_scraped", c.summary.AlbumsScraped),
		zap.Int("albums_skipped", c.summary.AlbumsSkipped),
		zap.Int("genres_processed", c.summary.GenresProcessed),
		zap.Int("pages_fetched", c.summary.PagesFetched),
		zap.Int("task_failures", c.summary.TaskFailures),
		zap.Duration("duration", c.summary.Duration),
	)
}

// parseAlbumLinks extracts album URLs from a ratings page in list order.
func parseAlbumLinks(doc *goquery.Document, baseURL string) []string {
	var links []string
	doc.Find(".albumListRow .albumListTitle a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		if resolved := resolveURL(baseURL, href); resolved != "" {
			links = append(links, resolved)
		}
	})
	return links
}

// parseNextPage returns the resolved next-page URL, or "" when pagination
// ends.
func parseNextPage(doc *goquery.Document, baseURL string) string {
	href, ok := doc.Find("a.next").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return resolveURL(baseURL, href)
}

func resolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
