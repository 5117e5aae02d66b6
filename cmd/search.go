package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/musicdata/aoty-crawler/internal/records"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search previously scraped albums",
		Long: `Loads every albums_*.json in the output directory, merges duplicates
keeping the newest copy, and prints the albums matching the given
filters. Runs entirely offline.`,
		RunE: runSearchCommand,
	}

	flags := cmd.Flags()
	flags.StringSlice("genres", nil, "genres to match (repeatable)")
	flags.Bool("all-genres", false, "require all listed genres instead of any")
	flags.Float64("min-score", 0, "minimum user score")
	flags.Float64("max-score", 0, "maximum user score")
	flags.Int("min-reviews", 0, "minimum user review count")
	flags.Int("year", 0, "release year")
	flags.String("artist", "", "artist name substring")
	flags.Int("limit", 20, "maximum results to print")
	return cmd
}

func runSearchCommand(cmd *cobra.Command, _ []string) error {
	outputDir := viper.GetString("output.dir")
	albums, err := records.Load(outputDir, logger)
	if err != nil {
		return fmt.Errorf("load albums: %w", err)
	}
	if len(albums) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No albums found in %s\n", outputDir)
		return nil
	}

	flags := cmd.Flags()
	filter := records.Filter{}
	filter.Genres, _ = flags.GetStringSlice("genres")
	filter.MatchAllGenres, _ = flags.GetBool("all-genres")
	filter.MinUserScore, _ = flags.GetFloat64("min-score")
	filter.MaxUserScore, _ = flags.GetFloat64("max-score")
	filter.MinUserReviews, _ = flags.GetInt("min-reviews")
	filter.Year, _ = flags.GetInt("year")
	filter.Artist, _ = flags.GetString("artist")
	filter.Limit, _ = flags.GetInt("limit")

	matched := filter.Apply(albums)
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d albums match:\n", len(matched), len(albums))
	for _, album := range matched {
		score := "NR"
		if album.UserScore != nil {
			score = fmt.Sprintf("%.0f", *album.UserScore)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s - %s (%s) [%s]\n",
			score, album.ArtistName, album.Title, album.ReleaseDate,
			strings.Join(album.Genres, ", "))
	}
	return nil
}
