package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenreLinks(t *testing.T) {
	t.Run("extracts and dedupes genres", func(t *testing.T) {
		doc := docFromHTML(t, `
			<a href="/genre/7-rock/">Rock</a>
			<a href="/genre/7-rock/">Rock</a>
			<a href="/genre/34-hip-hop/">Hip Hop</a>
			<a href="/genre/list/">All Genres</a>
			<a href="/genre/99-indie-rock/"></a>
			<a href="/genre/50-pop/">View More</a>`)

		genres := ParseGenreLinks(doc)
		require.Len(t, genres, 3)
		assert.Equal(t, GenreDescriptor{Name: "Rock", Slug: "rock"}, genres[0])
		assert.Equal(t, GenreDescriptor{Name: "Hip Hop", Slug: "hip-hop"}, genres[1])
		assert.Equal(t, GenreDescriptor{Name: "Indie Rock", Slug: "indie-rock"}, genres[2])
	})

	t.Run("ignores non genre hrefs", func(t *testing.T) {
		doc := docFromHTML(t, `
			<a href="/genre.php">Genres</a>
			<a href="/album/1-x.php">Album</a>`)
		assert.Empty(t, ParseGenreLinks(doc))
	})
}

func TestMatchGenres(t *testing.T) {
	candidates := []GenreDescriptor{
		{Name: "Pop", Slug: "pop"},
		{Name: "Dream Pop", Slug: "dream-pop"},
		{Name: "Toy Pop", Slug: "toy-pop"},
		{Name: "Hip Hop", Slug: "hip-hop"},
		{Name: "Trip Hop", Slug: "trip-hop"},
	}

	t.Run("exact match beats substring matches", func(t *testing.T) {
		matched := MatchGenres(candidates, "pop")
		require.Len(t, matched, 1)
		assert.Equal(t, "pop", matched[0].Slug)
	})

	t.Run("hyphen and case variants compare equal", func(t *testing.T) {
		matched := MatchGenres(candidates, "Hip-Hop")
		require.Len(t, matched, 1)
		assert.Equal(t, "hip-hop", matched[0].Slug)
	})

	t.Run("substring match applies when no exact exists", func(t *testing.T) {
		matched := MatchGenres(candidates, "hop")
		require.Len(t, matched, 2)
		assert.Equal(t, "hip-hop", matched[0].Slug)
		assert.Equal(t, "trip-hop", matched[1].Slug)
	})

	t.Run("empty filter returns everything", func(t *testing.T) {
		assert.Len(t, MatchGenres(candidates, ""), len(candidates))
	})

	t.Run("no match returns empty", func(t *testing.T) {
		assert.Empty(t, MatchGenres(candidates, "polka"))
	})
}
