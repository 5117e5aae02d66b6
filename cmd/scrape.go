package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/crawler"
	"github.com/musicdata/aoty-crawler/internal/database"
	"github.com/musicdata/aoty-crawler/internal/genres"
	"github.com/musicdata/aoty-crawler/internal/metrics"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl genre ratings lists and extract album records",
		Long: `Fetches the genre index, walks each matched genre's yearly
highest-user-rated lists, extracts every album page, and flushes the
results to timestamped JSON and CSV files. An interrupted run still
flushes whatever it collected.`,
		RunE: runScrapeCommand,
	}

	flags := cmd.Flags()
	flags.String("genre", "", "only crawl genres matching this name or slug")
	flags.Int("start-year", 0, "most recent year to crawl (default: current year)")
	flags.Int("years-back", 0, "number of years to crawl, counting down from start-year")
	flags.Int("albums-per-year", 0, "album quota per genre and year")
	flags.Bool("test", false, "test mode: first genre, first year, small quota")
	flags.Int("test-limit", 0, "album quota in test mode")
	flags.Bool("resume", false, "skip albums already present in prior output")
	flags.String("resume-file", "", "explicit prior output file to resume from")
	flags.Bool("no-render", false, "disable the headless browser and fetch plain HTTP")
	flags.String("output-dir", "", "directory for output files")
	flags.String("metrics-addr", "", "listen address for the /metrics endpoint (empty disables)")
	flags.String("postgres-dsn", "", "Postgres DSN to mirror flushed albums into (empty disables)")

	bind := func(key, flag string) {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}
	bind("crawler.genre", "genre")
	bind("crawler.years_back", "years-back")
	bind("crawler.albums_per_year", "albums-per-year")
	bind("crawler.test_mode", "test")
	bind("crawler.test_limit", "test-limit")
	bind("crawler.resume", "resume")
	bind("crawler.resume_file", "resume-file")
	bind("output.dir", "output-dir")
	bind("metrics.addr", "metrics-addr")

	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	// start-year and no-render invert or default against viper state, so
	// they are applied manually instead of bound.
	if year, err := cmd.Flags().GetInt("start-year"); err == nil && year > 0 {
		viper.Set("crawler.start_year", year)
	}
	if noRender, err := cmd.Flags().GetBool("no-render"); err == nil && noRender {
		viper.Set("renderer.enabled", false)
	}
	if dsn, err := cmd.Flags().GetString("postgres-dsn"); err == nil && dsn != "" {
		viper.Set("database.dsn", dsn)
	}

	cfg, err := crawler.LoadCrawlConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load crawl config: %w", err)
	}

	sink, err := crawler.NewFileSink(cfg.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}

	var ledger crawler.Ledger
	if cfg.Resume {
		ledger = crawler.LoadResumeLedger(cfg.OutputDir, cfg.ResumeFile, logger)
	} else {
		ledger = crawler.NewResumeLedger()
	}

	fetcher, err := crawler.NewCollyFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	detector := crawler.NewChallengeDetector(nil)

	renderer, err := buildRenderer(cfg, detector, logger)
	if err != nil {
		return err
	}
	if renderer != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if cerr := renderer.Close(closeCtx); cerr != nil {
				logger.Warn("Failed to close renderer", zap.Error(cerr))
			}
		}()
	}

	catalog := genres.Load(cfg.GenreCatalogPath, logger)

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, logger)
		server.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutCtx)
		}()
	}

	controller := crawler.NewController(cfg, fetcher, renderer, detector, sink, ledger, catalog, logger)
	summary, runErr := controller.Run(cmd.Context())

	// Flush and catalog save run unconditionally: an interrupted crawl
	// still persists everything it collected.
	if _, ferr := sink.Flush(context.Background()); ferr != nil {
		logger.Error("Flush failed", zap.Error(ferr))
		if runErr == nil {
			runErr = ferr
		}
	}
	if cerr := catalog.Save(); cerr != nil {
		logger.Warn("Genre catalog save failed", zap.Error(cerr))
	}

	if cfg.PostgresDSN != "" {
		if derr := mirrorToDatabase(context.Background(), cfg.PostgresDSN, sink.Albums()); derr != nil {
			logger.Warn("Database mirror failed", zap.Error(derr))
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return fmt.Errorf("run crawl: %w", runErr)
	}
	logger.Info("Scrape finished",
		zap.String("run_id", summary.RunID),
		zap.Int("albums", summary.AlbumsScraped),
	)
	return nil
}

func buildRenderer(cfg crawler.CrawlConfig, detector crawler.ChallengeDetector, logger *zap.Logger) (crawler.Renderer, error) {
	if !cfg.RenderEnabled {
		return nil, nil
	}
	renderer, err := crawler.NewChromedpRenderer(cfg, detector, logger)
	switch {
	case err == nil:
		return renderer, nil
	case errors.Is(err, crawler.ErrRendererDisabled):
		logger.Warn("Renderer unavailable; falling back to plain fetching")
		return nil, nil
	default:
		return nil, fmt.Errorf("init renderer: %w", err)
	}
}

func mirrorToDatabase(ctx context.Context, dsn string, albums []crawler.AlbumRecord) error {
	provider, err := database.NewPostgresProvider(ctx, dsn, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	saved := 0
	for _, album := range albums {
		if err := provider.SaveAlbum(ctx, album); err != nil {
			logger.Warn("Album upsert failed",
				zap.String("aoty_id", album.AotyID),
				zap.Error(err),
			)
			continue
		}
		saved++
	}
	logger.Info("Albums mirrored to database", zap.Int("saved", saved))
	return nil
}
