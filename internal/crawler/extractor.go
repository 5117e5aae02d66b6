package crawler

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	releaseDatePattern = regexp.MustCompile(`([A-Za-z]+)\s+(\d+),\s+(\d{4})`)
	dayPattern         = regexp.MustCompile(`(\d+),`)
	digitsPattern      = regexp.MustCompile(`(\d+)`)
	groupedIntPattern  = regexp.MustCompile(`([\d,]+)`)
)

// FieldExtractor maps one album document to an AlbumRecord. Every field is
// backed by an ordered list of strategies; the first non-empty result wins
// and total failure leaves the field null. The site relocates markup often
// enough that none of these chains can be trusted individually.
type FieldExtractor struct {
	now func() time.Time
}

// NewFieldExtractor returns an extractor stamping records with time.Now.
func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{now: time.Now}
}

// Extract builds a record from the document of one album page. It never
// fails: missing markup produces null fields, and validity is judged later
// at the sink.
func (e *FieldExtractor) Extract(doc *goquery.Document, pageURL string) AlbumRecord {
	return AlbumRecord{
		AotyID:            ExtractAotyID(pageURL),
		Title:             e.extractTitle(doc),
		ArtistName:        e.extractArtist(doc),
		URL:               pageURL,
		ReleaseDate:       e.extractReleaseDate(doc),
		CriticScore:       e.extractCriticScore(doc),
		UserScore:         e.extractUserScore(doc),
		CriticReviewCount: e.extractCriticReviewCount(doc),
		UserReviewCount:   e.extractUserReviewCount(doc),
		Genres:            e.extractGenres(doc),
		GenreTags:         e.extractGenreTags(doc),
		CoverImageURL:     e.extractCoverImage(doc),
		Description:       e.extractDescription(doc),
		ScrapedAt:         e.now().UTC(),
	}
}

func (e *FieldExtractor) extractTitle(doc *goquery.Document) string {
	strategies := []func() string{
		func() string { return text(doc, `h1.albumTitle span[itemprop="name"]`) },
		func() string { return attr(doc, `meta[property="og:title"]`, "content") },
		func() string { return text(doc, "h1") },
	}
	for _, strategy := range strategies {
		title := strategy()
		if title == "" {
			continue
		}
		// Combined "Artist - Title" strings split on the first separator.
		if _, rest, found := strings.Cut(title, " - "); found {
			title = rest
		}
		return strings.TrimSpace(title)
	}
	return ""
}

func (e *FieldExtractor) extractArtist(doc *goquery.Document) string {
	strategies := []func() string{
		func() string { return text(doc, `[itemprop="byArtist"] span[itemprop="name"] a`) },
		func() string { return text(doc, ".artist a") },
		func() string { return attr(doc, `meta[property="og:title"]`, "content") },
	}
	for _, strategy := range strategies {
		artist := strategy()
		if artist == "" {
			continue
		}
		if left, _, found := strings.Cut(artist, " - "); found {
			artist = left
		}
		artist = strings.TrimSpace(artist)
		if isPlaceholder(artist) {
			continue
		}
		return artist
	}
	return ""
}

func (e *FieldExtractor) extractReleaseDate(doc *goquery.Document) string {
	var date string
	doc.Find(".detailRow").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if !strings.Contains(row.Text(), "Release Date") {
			return true
		}
		if m := releaseDatePattern.FindStringSubmatch(row.Text()); m != nil {
			date = m[1] + " " + m[2] + ", " + m[3]
			return false
		}
		return true
	})
	if date != "" {
		return date
	}

	// Fallback: assemble from the month/year release links plus any day
	// digit in the detail rows.
	var parts []string
	doc.Find(`.detailRow a[href*="/releases/"]`).Each(func(_ int, link *goquery.Selection) {
		if t := strings.TrimSpace(link.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) >= 2 {
		day := "1"
		if m := dayPattern.FindStringSubmatch(doc.Find(".detailRow").Text()); m != nil {
			day = m[1]
		}
		return parts[0] + " " + day + ", " + parts[1]
	}
	return ""
}

func (e *FieldExtractor) extractCriticScore(doc *goquery.Document) *float64 {
	return parseFloat(text(doc, `[itemprop="ratingValue"] a`))
}

func (e *FieldExtractor) extractUserScore(doc *goquery.Document) *float64 {
	if score := parseFloat(text(doc, ".albumUserScore a")); score != nil {
		return score
	}
	var score *float64
	doc.Find(".rating").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		t := strings.TrimSpace(sel.Text())
		if t == "" || t == "NR" {
			return true
		}
		if parsed := parseFloat(t); parsed != nil {
			score = parsed
			return false
		}
		return true
	})
	return score
}

func (e *FieldExtractor) extractCriticReviewCount(doc *goquery.Document) *int {
	if count := parseInt(attr(doc, `meta[itemprop="reviewCount"]`, "content")); count != nil {
		return count
	}
	if count := parseInt(text(doc, `span[itemprop="ratingCount"]`)); count != nil {
		return count
	}
	if m := digitsPattern.FindStringSubmatch(text(doc, ".albumCriticScoreBox .numReviews")); m != nil {
		return parseInt(m[1])
	}
	return nil
}

func (e *FieldExtractor) extractUserReviewCount(doc *goquery.Document) *int {
	if count := parseInt(text(doc, ".albumUserScoreBox .numReviews strong")); count != nil {
		return count
	}
	if m := groupedIntPattern.FindStringSubmatch(text(doc, ".albumUserScoreBox .numReviews a")); m != nil {
		return parseInt(m[1])
	}
	return nil
}

// extractGenres unions the embedded metadata genres with the visible genre
// links, preserving first-seen order.
func (e *FieldExtractor) extractGenres(doc *goquery.Document) []string {
	var genres []string
	seen := make(map[string]struct{})
	add := func(genre string) {
		genre = strings.TrimSpace(genre)
		if genre == "" {
			return
		}
		if _, ok := seen[genre]; ok {
			return
		}
		seen[genre] = struct{}{}
		genres = append(genres, genre)
	}

	doc.Find(`meta[itemprop="genre"]`).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			add(content)
		}
	})
	doc.Find(`.detailRow a[href*="/genre/"]`).Each(func(_ int, sel *goquery.Selection) {
		add(sel.Text())
	})
	return genres
}

func (e *FieldExtractor) extractGenreTags(doc *goquery.Document) []string {
	var tags []string
	doc.Find(".detailRow .secondary").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			tags = append(tags, t)
		}
	})
	return tags
}

func (e *FieldExtractor) extractCoverImage(doc *goquery.Document) string {
	strategies := []func() string{
		func() string { return attr(doc, ".albumTopBox.cover img", "src") },
		func() string { return attr(doc, `meta[property="og:image"]`, "content") },
		func() string { return attr(doc, `img[alt*=" - "]`, "src") },
	}
	for _, strategy := range strategies {
		if image := strategy(); image != "" {
			return image
		}
	}
	return ""
}

func (e *FieldExtractor) extractDescription(doc *goquery.Document) string {
	if desc := attr(doc, `meta[name="Description"]`, "content"); desc != "" {
		return desc
	}
	return attr(doc, `meta[property="og:description"]`, "content")
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func attr(doc *goquery.Document, selector, name string) string {
	value, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(value)
}

// parseFloat parses a score, tolerating thousands separators. Failures are
// null, never errors.
func parseFloat(raw string) *float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(raw string) *int {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
