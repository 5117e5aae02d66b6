package records

import (
	"sort"

	"github.com/musicdata/aoty-crawler/internal/crawler"
)

// Stats aggregates a loaded album set.
type Stats struct {
	TotalAlbums      int
	WithUserScore    int
	WithCriticScore  int
	AvgUserScore     float64
	AvgCriticScore   float64
	TotalUserReviews int
	GenreCounts      map[string]int
	TopRated         []crawler.AlbumRecord
}

const topRatedSize = 5

// Compute builds summary statistics over albums. Averages cover only the
// records that carry the relevant score.
func Compute(albums []crawler.AlbumRecord) Stats {
	stats := Stats{
		TotalAlbums: len(albums),
		GenreCounts: make(map[string]int),
	}

	var userSum, criticSum float64
	for _, album := range albums {
		if album.UserScore != nil {
			stats.WithUserScore++
			userSum += *album.UserScore
		}
		if album.CriticScore != nil {
			stats.WithCriticScore++
			criticSum += *album.CriticScore
		}
		if album.UserReviewCount != nil {
			stats.TotalUserReviews += *album.UserReviewCount
		}
		for _, genre := range album.Genres {
			stats.GenreCounts[genre]++
		}
	}
	if stats.WithUserScore > 0 {
		stats.AvgUserScore = userSum / float64(stats.WithUserScore)
	}
	if stats.WithCriticScore > 0 {
		stats.AvgCriticScore = criticSum / float64(stats.WithCriticScore)
	}

	rated := make([]crawler.AlbumRecord, 0, len(albums))
	for _, album := range albums {
		if album.UserScore != nil {
			rated = append(rated, album)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		return *rated[i].UserScore > *rated[j].UserScore
	})
	if len(rated) > topRatedSize {
		rated = rated[:topRatedSize]
	}
	stats.TopRated = rated
	return stats
}

// TopGenres returns the n most frequent genres, most common first. Ties
// break alphabetically so output is stable.
func (s Stats) TopGenres(n int) []string {
	names := make([]string, 0, len(s.GenreCounts))
	for name := range s.GenreCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.GenreCounts[names[i]] != s.GenreCounts[names[j]] {
			return s.GenreCounts[names[i]] > s.GenreCounts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
