package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/musicdata/aoty-crawler/internal/records"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize previously scraped albums",
		Long: `Loads the merged album set from the output directory and prints
aggregate statistics: counts, average scores, the most common genres,
and the top rated albums.`,
		RunE: runStatsCommand,
	}
}

func runStatsCommand(cmd *cobra.Command, _ []string) error {
	outputDir := viper.GetString("output.dir")
	albums, err := records.Load(outputDir, logger)
	if err != nil {
		return fmt.Errorf("load albums: %w", err)
	}
	if len(albums) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No albums found in %s\n", outputDir)
		return nil
	}

	stats := records.Compute(albums)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Albums:             %d\n", stats.TotalAlbums)
	fmt.Fprintf(out, "With user score:    %d (avg %.1f)\n", stats.WithUserScore, stats.AvgUserScore)
	fmt.Fprintf(out, "With critic score:  %d (avg %.1f)\n", stats.WithCriticScore, stats.AvgCriticScore)
	fmt.Fprintf(out, "Total user reviews: %d\n", stats.TotalUserReviews)

	fmt.Fprintln(out, "\nTop genres:")
	for _, genre := range stats.TopGenres(10) {
		fmt.Fprintf(out, "  %-25s %d\n", genre, stats.GenreCounts[genre])
	}

	fmt.Fprintln(out, "\nTop rated:")
	for _, album := range stats.TopRated {
		fmt.Fprintf(out, "  %.0f  %s - %s\n", *album.UserScore, album.ArtistName, album.Title)
	}
	return nil
}
