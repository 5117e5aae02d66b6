package crawler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func score(v float64) *float64 { return &v }

func validRecord(id, title, artist string) AlbumRecord {
	return AlbumRecord{
		AotyID:     id,
		Title:      title,
		ArtistName: artist,
		URL:        "https://aoty.test/album/" + id + ".php",
		UserScore:  score(85),
		Genres:     []string{"Rock"},
		ScrapedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestSink(t *testing.T) *FileSink {
	t.Helper()
	sink, err := NewFileSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	sink.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return sink
}

func TestFileSink_Flush(t *testing.T) {
	t.Run("writes albums and genres in both formats", func(t *testing.T) {
		sink := newTestSink(t)
		sink.Append(validRecord("1-a", "One", "A"))
		sink.AppendGenre(GenreDescriptor{Name: "Rock", Slug: "rock"})

		report, err := sink.Flush(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Written, 4)
		assert.Equal(t, 0, report.Dropped)

		data, err := os.ReadFile(filepath.Join(sink.dir, "albums_20240601_120000.json"))
		require.NoError(t, err)
		var albums []AlbumRecord
		require.NoError(t, json.Unmarshal(data, &albums))
		require.Len(t, albums, 1)
		assert.Equal(t, "One", albums[0].Title)

		_, err = os.Stat(filepath.Join(sink.dir, "albums_20240601_120000.csv"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(sink.dir, "genres_20240601_120000.json"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(sink.dir, "genres_20240601_120000.csv"))
		require.NoError(t, err)
	})

	t.Run("dedupes by aoty id keeping last write at first position", func(t *testing.T) {
		sink := newTestSink(t)
		sink.Append(validRecord("1-a", "Old Title", "A"))
		sink.Append(validRecord("2-b", "Other", "B"))
		sink.Append(validRecord("1-a", "New Title", "A"))

		albums := sink.Albums()
		require.Len(t, albums, 2)
		assert.Equal(t, "New Title", albums[0].Title)
		assert.Equal(t, "Other", albums[1].Title)
	})

	t.Run("drops invalid records and counts them", func(t *testing.T) {
		sink := newTestSink(t)
		sink.Append(validRecord("1-a", "Good", "A"))

		placeholder := validRecord("2-b", "Two", "Submit Correction")
		sink.Append(placeholder)

		noScores := validRecord("3-c", "Three", "C")
		noScores.UserScore = nil
		sink.Append(noScores)

		noGenres := validRecord("4-d", "Four", "D")
		noGenres.Genres = nil
		sink.Append(noGenres)

		report, err := sink.Flush(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, report.Dropped)

		data, err := os.ReadFile(filepath.Join(sink.dir, "albums_20240601_120000.json"))
		require.NoError(t, err)
		var albums []AlbumRecord
		require.NoError(t, json.Unmarshal(data, &albums))
		require.Len(t, albums, 1)
		assert.Equal(t, "Good", albums[0].Title)
	})

	t.Run("csv embeds list fields as json", func(t *testing.T) {
		sink := newTestSink(t)
		record := validRecord("1-a", "One", "A")
		record.Genres = []string{"Rock", "Indie Rock"}
		sink.Append(record)

		_, err := sink.Flush(context.Background())
		require.NoError(t, err)

		f, err := os.Open(filepath.Join(sink.dir, "albums_20240601_120000.csv"))
		require.NoError(t, err)
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)

		genresCol := -1
		for i, name := range rows[0] {
			if name == "genres" {
				genresCol = i
			}
		}
		require.NotEqual(t, -1, genresCol)
		assert.JSONEq(t, `["Rock","Indie Rock"]`, rows[1][genresCol])
	})

	t.Run("empty sink writes nothing", func(t *testing.T) {
		sink := newTestSink(t)
		report, err := sink.Flush(context.Background())
		require.NoError(t, err)
		assert.Empty(t, report.Written)
	})

	t.Run("canceled context aborts the flush", func(t *testing.T) {
		sink := newTestSink(t)
		sink.Append(validRecord("1-a", "One", "A"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := sink.Flush(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileSink_AppendGenre(t *testing.T) {
	sink := newTestSink(t)
	sink.AppendGenre(GenreDescriptor{Name: "Rock", Slug: "rock"})
	sink.AppendGenre(GenreDescriptor{Name: "Rock", Slug: "rock"})
	sink.AppendGenre(GenreDescriptor{Name: "Pop", Slug: "pop"})
	assert.Len(t, sink.genres, 2)
}
