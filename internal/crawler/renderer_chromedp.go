package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/metrics"
)

// ErrRendererDisabled indicates rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// ErrChallengeNotCleared indicates the anti-bot interstitial never resolved
// within the configured number of waits.
var ErrChallengeNotCleared = errors.New("challenge interstitial did not clear")

// ChromedpRenderer renders pages with headless Chrome via chromedp. At most
// one renderer exists per run and a single-slot semaphore keeps one tab
// active at a time.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	detector        ChallengeDetector
	sem             chan struct{}
	timeout         time.Duration
	maxWaits        int
	waitDelay       time.Duration
	userAgent       string
	closeOnce       sync.Once
}

// NewChromedpRenderer creates a renderer using the provided configuration.
func NewChromedpRenderer(cfg CrawlConfig, detector ChallengeDetector, logger *zap.Logger) (*ChromedpRenderer, error) {
	if !cfg.RenderEnabled {
		return nil, ErrRendererDisabled
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	waitDelay := cfg.ChallengeWaitDelay
	if waitDelay <= 0 {
		waitDelay = 3 * time.Second
	}
	maxWaits := cfg.ChallengeMaxWaits
	if maxWaits <= 0 {
		maxWaits = 5
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		detector:        detector,
		sem:             make(chan struct{}, 1),
		timeout:         cfg.RenderTimeout,
		maxWaits:        maxWaits,
		waitDelay:       waitDelay,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the browser and allocator contexts. Safe to call more
// than once.
func (r *ChromedpRenderer) Close(_ context.Context) error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		r.browserCancel()
		r.allocatorCancel()
	})
	return nil
}

// Render executes the page with JavaScript enabled, waits out any challenge
// interstitial, and returns the final DOM snapshot.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (Page, error) {
	if r == nil {
		return Page{}, ErrRendererDisabled
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return Page{}, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	r.recordResponse(tabCtx, meta)

	var html, title, finalURL string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		metrics.ObserveRender("error")
		return Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	html, err := r.awaitChallenge(taskCtx, rawURL, title, html)
	if err != nil {
		if errors.Is(err, ErrChallengeNotCleared) {
			metrics.ObserveRender("challenge")
		} else {
			metrics.ObserveRender("error")
		}
		return Page{}, err
	}

	metrics.ObserveRender("ok")
	return Page{
		URL:        rawURL,
		FinalURL:   meta.finalURL(firstNonEmpty(finalURL, rawURL)),
		StatusCode: meta.status(),
		Body:       []byte(html),
		UsedJS:     true,
	}, nil
}

// awaitChallenge polls the DOM until the interstitial clears or the wait
// limit is reached.
func (r *ChromedpRenderer) awaitChallenge(ctx context.Context, rawURL, title, html string) (string, error) {
	if r.detector == nil || !r.detector.IsChallenge(title, html) {
		return html, nil
	}
	for attempt := 0; attempt < r.maxWaits; attempt++ {
		r.logger.Info("Challenge interstitial detected, waiting",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.maxWaits),
		)
		if err := pause(ctx, r.waitDelay); err != nil {
			return "", err
		}
		tasks := chromedp.Tasks{
			chromedp.Title(&title),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		}
		if err := chromedp.Run(ctx, tasks); err != nil {
			return "", fmt.Errorf("re-read dom: %w", err)
		}
		if !r.detector.IsChallenge(title, html) {
			return html, nil
		}
	}
	return "", fmt.Errorf("render %s: %w", rawURL, ErrChallengeNotCleared)
}

type responseMeta struct {
	once       sync.Once
	mu         sync.Mutex
	statusCode int
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusCode == 0 {
		return 200
	}
	return m.statusCode
}

func (m *responseMeta) finalURL(fallback string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.url == "" {
		return fallback
	}
	return m.url
}

func (r *ChromedpRenderer) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
			return
		}
		meta.once.Do(func() {
			meta.mu.Lock()
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
			meta.mu.Unlock()
		})
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
