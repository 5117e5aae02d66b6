package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var genreHrefPattern = regexp.MustCompile(`/genre/(\d+)-([^/]+)/`)

// excludedGenreTexts are navigation links that share the /genre/ path but
// are not genres.
var excludedGenreTexts = map[string]struct{}{
	"view more":        {},
	"similar artists":  {},
	"follow":           {},
	"on this day":      {},
	"newsworthy":       {},
	"user updates":     {},
	"site updates":     {},
	"privacy policy":   {},
	"contact us":       {},
	"ad-free":          {},
	"highest rated":    {},
	"must hear albums": {},
	"year end lists":   {},
	"new releases":     {},
	"random":           {},
}

// ParseGenreLinks extracts genre descriptors from the genre index document,
// de-duplicating by slug in page order.
func ParseGenreLinks(doc *goquery.Document) []GenreDescriptor {
	var genres []GenreDescriptor
	seen := make(map[string]struct{})

	doc.Find(`a[href*="/genre/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if strings.Contains(href, "/genre/list") || strings.Contains(href, "/genre.php") {
			return
		}
		m := genreHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		slug := m[2]
		if _, dup := seen[slug]; dup {
			return
		}

		name := strings.TrimSpace(sel.Text())
		if _, excluded := excludedGenreTexts[strings.ToLower(name)]; excluded {
			return
		}
		if name == "" {
			name = titleFromSlug(slug)
		}

		seen[slug] = struct{}{}
		genres = append(genres, GenreDescriptor{Name: name, Slug: slug})
	})
	return genres
}

// MatchGenres applies the user-supplied genre filter. Exact matches (slug or
// display name, case/hyphen-normalized) always win; substring containment is
// accepted only when no exact match exists anywhere in the candidate set, so
// a filter of "pop" never drifts to "dream-pop" past the real "pop" entry.
func MatchGenres(candidates []GenreDescriptor, filter string) []GenreDescriptor {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return candidates
	}
	target := normalizeGenre(filter)

	var exact, partial []GenreDescriptor
	for _, genre := range candidates {
		slug := normalizeGenre(genre.Slug)
		name := normalizeGenre(genre.Name)
		switch {
		case slug == target || name == target:
			exact = append(exact, genre)
		case strings.Contains(slug, target) || strings.Contains(name, target):
			partial = append(partial, genre)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

// normalizeGenre lowercases and folds hyphen/space variants so "hip-hop",
// "Hip Hop", and "hip hop" compare equal.
func normalizeGenre(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

func titleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
