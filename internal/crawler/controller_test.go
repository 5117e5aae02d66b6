package crawler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(Page), args.Error(1)
}

// MockRenderer is a mock implementation of the Renderer interface.
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, rawURL string) (Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(Page), args.Error(1)
}

func (m *MockRenderer) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// captureSink buffers appended records in memory for assertions.
type captureSink struct {
	albums []AlbumRecord
	genres []GenreDescriptor
}

func (s *captureSink) Append(record AlbumRecord) { s.albums = append(s.albums, record) }

func (s *captureSink) AppendGenre(g GenreDescriptor) { s.genres = append(s.genres, g) }

const testBase = "https://aoty.test"

func htmlPage(url, body string) Page {
	return Page{
		URL:        url,
		FinalURL:   url,
		StatusCode: http.StatusOK,
		Body:       []byte("<html><body>" + body + "</body></html>"),
	}
}

func genreIndexHTML() string {
	return `
		<a href="/genre/7-rock/">Rock</a>
		<a href="/genre/15-pop/">Pop</a>
		<a href="/genre/123-dream-pop/">Dream Pop</a>`
}

func ratingsHTML(albumIDs []string, next string) string {
	body := ""
	for _, id := range albumIDs {
		body += fmt.Sprintf(
			`<div class="albumListRow"><div class="albumListTitle"><a href="/album/%s.php">x</a></div></div>`,
			id,
		)
	}
	if next != "" {
		body += fmt.Sprintf(`<a class="next" href="%s">Next</a>`, next)
	}
	return body
}

func albumHTML(title, artist string) string {
	return fmt.Sprintf(`
		<h1 class="albumTitle"><span itemprop="name">%s</span></h1>
		<div itemprop="byArtist"><span itemprop="name"><a>%s</a></span></div>
		<div class="albumUserScore"><a>85</a></div>
		<div class="detailRow"><a href="/genre/15-pop/">Pop</a></div>`,
		title, artist)
}

func testCrawlConfig() CrawlConfig {
	return CrawlConfig{
		BaseURL:       testBase,
		UserAgent:     "test-agent",
		StartYear:     2024,
		YearsBack:     1,
		AlbumsPerYear: 250,
	}
}

func expectIndex(fetcher *MockFetcher) {
	fetcher.On("Fetch", mock.Anything, testBase+"/genre.php").
		Return(htmlPage(testBase+"/genre.php", genreIndexHTML()), nil)
}

func expectRatings(fetcher *MockFetcher, slug string, year int, html string) string {
	url := fmt.Sprintf("%s/ratings/user-highest-rated/%d/%s/", testBase, year, slug)
	fetcher.On("Fetch", mock.Anything, url).Return(htmlPage(url, html), nil)
	return url
}

func expectAlbum(fetcher *MockFetcher, id, title, artist string) string {
	url := fmt.Sprintf("%s/album/%s.php", testBase, id)
	fetcher.On("Fetch", mock.Anything, url).Return(htmlPage(url, albumHTML(title, artist)), nil)
	return url
}

func TestController_Run(t *testing.T) {
	logger := zap.NewNop()
	detector := NewChallengeDetector(nil)

	t.Run("crawls exact genre match in list order", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TargetGenre = "pop"

		fetcher := new(MockFetcher)
		expectIndex(fetcher)
		expectRatings(fetcher, "pop", 2024, ratingsHTML([]string{"1111-artist-a-first", "2222-artist-b-second"}, ""))
		expectAlbum(fetcher, "1111-artist-a-first", "First", "Artist A")
		expectAlbum(fetcher, "2222-artist-b-second", "Second", "Artist B")

		sink := &captureSink{}
		ctrl := NewController(cfg, fetcher, nil, detector, sink, NewResumeLedger(), nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, summary.RunID)
		require.Equal(t, 2, summary.AlbumsScraped)
		require.Equal(t, 1, summary.GenresProcessed)
		require.Equal(t, 0, summary.TaskFailures)

		require.Len(t, sink.albums, 2)
		require.Equal(t, "First", sink.albums[0].Title)
		require.Equal(t, "Second", sink.albums[1].Title)
		require.Equal(t, "1111-artist-a-first", sink.albums[0].AotyID)
		require.Equal(t, "pop", sink.albums[0].ScrapeGenre)
		require.Equal(t, 2024, sink.albums[0].ScrapeYear)
		require.Len(t, sink.genres, 1)
		require.Equal(t, "pop", sink.genres[0].Slug)

		fetcher.AssertExpectations(t)
	})

	t.Run("quota caps album fetches and stops pagination", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TargetGenre = "rock"
		cfg.AlbumsPerYear = 2

		fetcher := new(MockFetcher)
		expectIndex(fetcher)
		expectRatings(fetcher, "rock", 2024,
			ratingsHTML([]string{"1-a", "2-b", "3-c"}, "/ratings/user-highest-rated/2024/rock/2/"))
		expectAlbum(fetcher, "1-a", "One", "A")
		expectAlbum(fetcher, "2-b", "Two", "B")

		sink := &captureSink{}
		ctrl := NewController(cfg, fetcher, nil, detector, sink, NewResumeLedger(), nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, summary.AlbumsScraped)

		fetcher.AssertExpectations(t)
		fetcher.AssertNotCalled(t, "Fetch", mock.Anything, testBase+"/album/3-c.php")
	})

	t.Run("resume counts seen links toward quota without refetching", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TargetGenre = "rock"
		cfg.AlbumsPerYear = 2

		fetcher := new(MockFetcher)
		expectIndex(fetcher)
		expectRatings(fetcher, "rock", 2024, ratingsHTML([]string{"1-a", "2-b", "3-c"}, ""))
		expectAlbum(fetcher, "2-b", "Two", "B")

		ledger := NewResumeLedger()
		ledger.Add(testBase + "/album/1-a.php")

		sink := &captureSink{}
		ctrl := NewController(cfg, fetcher, nil, detector, sink, ledger, nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, summary.AlbumsScraped)
		require.Equal(t, 1, summary.AlbumsSkipped)

		fetcher.AssertExpectations(t)
		fetcher.AssertNotCalled(t, "Fetch", mock.Anything, testBase+"/album/1-a.php")
		fetcher.AssertNotCalled(t, "Fetch", mock.Anything, testBase+"/album/3-c.php")
	})

	t.Run("follows pagination until next link runs out", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TargetGenre = "rock"

		fetcher := new(MockFetcher)
		expectIndex(fetcher)
		expectRatings(fetcher, "rock", 2024,
			ratingsHTML([]string{"1-a"}, "/ratings/user-highest-rated/2024/rock/2/"))
		page2URL := testBase + "/ratings/user-highest-rated/2024/rock/2/"
		fetcher.On("Fetch", mock.Anything, page2URL).
			Return(htmlPage(page2URL, ratingsHTML([]string{"2-b"}, "")), nil)
		expectAlbum(fetcher, "1-a", "One", "A")
		expectAlbum(fetcher, "2-b", "Two", "B")

		sink := &captureSink{}
		ctrl := NewController(cfg, fetcher, nil, detector, sink, NewResumeLedger(), nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, summary.AlbumsScraped)
		fetcher.AssertExpectations(t)
	})

	t.Run("challenge body is a task failure, not a fatal error", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TargetGenre = "rock"

		fetcher := new(MockFetcher)
		expectIndex(fetcher)
		ratingsURL := fmt.Sprintf("%s/ratings/user-highest-rated/%d/rock/", testBase, 2024)
		fetcher.On("Fetch", mock.Anything, ratingsURL).
			Return(htmlPage(ratingsURL, "Checking your browser before accessing"), nil)

		sink := &captureSink{}
		ctrl := NewController(cfg, fetcher, nil, detector, sink, NewResumeLedger(), nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, summary.TaskFailures)
		require.Equal(t, 0, summary.AlbumsScraped)
	})

	t.Run("test mode stops after first genre and year", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TestMode = true
		cfg.YearsBack = 3
		cfg.AlbumsPerYear = 1

		fetcher := new(MockFetcher)
		expectIndex(fetcher)
		expectRatings(fetcher, "rock", 2024, ratingsHTML([]string{"1-a"}, ""))
		expectAlbum(fetcher, "1-a", "One", "A")

		sink := &captureSink{}
		ctrl := NewController(cfg, fetcher, nil, detector, sink, NewResumeLedger(), nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, summary.GenresProcessed)
		require.Equal(t, 1, summary.AlbumsScraped)
		fetcher.AssertExpectations(t)
	})

	t.Run("renderer handles all fetches when configured", func(t *testing.T) {
		cfg := testCrawlConfig()
		cfg.TargetGenre = "pop"

		renderer := new(MockRenderer)
		renderer.On("Render", mock.Anything, testBase+"/genre.php").
			Return(htmlPage(testBase+"/genre.php", genreIndexHTML()), nil)
		ratingsURL := fmt.Sprintf("%s/ratings/user-highest-rated/%d/pop/", testBase, 2024)
		renderer.On("Render", mock.Anything, ratingsURL).
			Return(htmlPage(ratingsURL, ratingsHTML([]string{"9-z"}, "")), nil)
		albumURL := testBase + "/album/9-z.php"
		renderer.On("Render", mock.Anything, albumURL).
			Return(htmlPage(albumURL, albumHTML("Zed", "Z")), nil)

		sink := &captureSink{}
		ctrl := NewController(cfg, new(MockFetcher), renderer, detector, sink, NewResumeLedger(), nil, logger)

		summary, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, summary.AlbumsScraped)
		renderer.AssertExpectations(t)
	})

	t.Run("unreachable genre index is fatal", func(t *testing.T) {
		cfg := testCrawlConfig()

		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, testBase+"/genre.php").
			Return(Page{}, &HTTPStatusError{URL: testBase + "/genre.php", StatusCode: 503})

		ctrl := NewController(cfg, fetcher, nil, detector, &captureSink{}, NewResumeLedger(), nil, logger)

		_, err := ctrl.Run(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "genre index")
	})

	t.Run("cancellation stops the run", func(t *testing.T) {
		cfg := testCrawlConfig()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(Page{}, ctx.Err()).Maybe()

		ctrl := NewController(cfg, fetcher, nil, detector, &captureSink{}, NewResumeLedger(), nil, logger)

		_, err := ctrl.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}
