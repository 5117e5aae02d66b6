package crawler

import (
	"strings"
)

// defaultChallengeKeywords mark the anti-bot interstitial the target host
// serves in place of real content.
var defaultChallengeKeywords = []string{
	"cloudflare",
	"checking your browser",
	"ray id",
	"performance & security",
	"verify you are a human",
	"access denied",
}

// KeywordChallengeDetector implements ChallengeDetector by lowercase
// containment over the page title and body.
type KeywordChallengeDetector struct {
	keywords []string
}

// NewChallengeDetector builds a detector. An empty keyword list falls back
// to the default interstitial markers.
func NewChallengeDetector(keywords []string) *KeywordChallengeDetector {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		cleaned = defaultChallengeKeywords
	}
	return &KeywordChallengeDetector{keywords: cleaned}
}

// IsChallenge reports whether the title or body looks like a challenge page.
func (d *KeywordChallengeDetector) IsChallenge(title, body string) bool {
	title = strings.ToLower(title)
	body = strings.ToLower(body)
	for _, kw := range d.keywords {
		if strings.Contains(title, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	return false
}
