package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/musicdata/aoty-crawler/internal/crawler"
	"github.com/musicdata/aoty-crawler/internal/genres"
)

func newListGenresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-genres",
		Short: "List the genres available on the site",
		Long: `Fetches the genre index and prints every discovered genre with its
URL slug. With --catalog, prints the locally persisted genre catalog
instead of touching the network.`,
		RunE: runListGenresCommand,
	}
	cmd.Flags().Bool("catalog", false, "print the local genre catalog instead of fetching")
	return cmd
}

func runListGenresCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := crawler.LoadCrawlConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load crawl config: %w", err)
	}

	if fromCatalog, _ := cmd.Flags().GetBool("catalog"); fromCatalog {
		catalog := genres.Load(cfg.GenreCatalogPath, logger)
		for _, name := range catalog.Names() {
			entry, _ := catalog.Entry(name)
			if entry.Parent != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, under %s)\n", name, entry.Type, entry.Parent)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", name, entry.Type)
		}
		return nil
	}

	fetcher, err := crawler.NewCollyFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	page, err := fetcher.Fetch(cmd.Context(), cfg.BaseURL+"/genre.php")
	if err != nil {
		return fmt.Errorf("fetch genre index: %w", err)
	}
	doc, err := page.Document()
	if err != nil {
		return fmt.Errorf("parse genre index: %w", err)
	}

	discovered := crawler.ParseGenreLinks(doc)
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d genres:\n", len(discovered))
	for _, genre := range discovered {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-30s %s\n", genre.Name, genre.Slug)
	}
	return nil
}
