package crawler

import (
	"context"
)

// Fetcher fetches a URL over plain HTTP and returns the page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer fetches a URL through a JS-executing browser, waiting out any
// anti-bot interstitial before returning the final DOM.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// RecordSink collects extracted records for a later flush.
type RecordSink interface {
	Append(record AlbumRecord)
	AppendGenre(genre GenreDescriptor)
}

// Ledger tracks album URLs captured by this or prior runs.
type Ledger interface {
	Seen(url string) bool
	Add(url string)
}

// ChallengeDetector recognizes anti-bot interstitial pages.
type ChallengeDetector interface {
	IsChallenge(title, body string) bool
}
