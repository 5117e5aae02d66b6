package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/metrics"
)

// CollyFetcher implements the Fetcher interface using the Colly collector,
// wrapped in the retry policy and the single-slot politeness gate.
type CollyFetcher struct {
	baseCollector *colly.Collector
	gate          *requestGate
	policy        *RetryPolicy
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg CrawlConfig, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          8,
		MaxIdleConnsPerHost:   2,
		MaxConnsPerHost:       2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyFetcher{
		baseCollector: base,
		gate:          newRequestGate(cfg.DownloadDelay),
		policy:        NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryJitter),
		logger:        logger,
	}, nil
}

// Fetch retrieves a page, retrying transient failures with backoff. A page
// that exhausts its retries surfaces the last error; the caller decides
// whether to abandon the task or escalate to the renderer.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		page, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			metrics.ObserveFetch(page.StatusCode)
			return page, nil
		}
		lastErr = err
		if !f.policy.ShouldRetry(err, attempt) {
			break
		}
		metrics.ObserveFetchRetry()
		wait := f.policy.Backoff(attempt)
		f.logger.Warn("Retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if perr := pause(ctx, wait); perr != nil {
			return Page{}, perr
		}
	}
	metrics.ObserveFetchFailure()
	return Page{}, lastErr
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, rawURL string) (Page, error) {
	release, err := f.gate.acquire(ctx)
	if err != nil {
		return Page{}, err
	}
	defer release()

	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		page := Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}
		send(fetchResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			send(fetchResult{err: &HTTPStatusError{URL: rawURL, StatusCode: r.StatusCode}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("colly fetch produced no result")
	}
}

type fetchResult struct {
	page Page
	err  error
}
