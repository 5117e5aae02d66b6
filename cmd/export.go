package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/crawler"
	"github.com/musicdata/aoty-crawler/internal/database"
	"github.com/musicdata/aoty-crawler/internal/records"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export the merged album set",
		Long: `Merges every albums_*.json in the output directory and writes one
consolidated copy. Formats csv and json write to the given path (the
format defaults to the path extension); format postgres upserts into
the configured database and needs no path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExportCommand,
	}
	cmd.Flags().String("format", "", "export format: csv, json, or postgres")
	cmd.Flags().StringSlice("genres", nil, "restrict the export to these genres")
	cmd.Flags().String("postgres-dsn", "", "Postgres DSN for --format postgres")
	return cmd
}

func runExportCommand(cmd *cobra.Command, args []string) error {
	outputDir := viper.GetString("output.dir")

	albums, err := records.Load(outputDir, logger)
	if err != nil {
		return fmt.Errorf("load albums: %w", err)
	}
	if genreFilter, _ := cmd.Flags().GetStringSlice("genres"); len(genreFilter) > 0 {
		albums = records.Filter{Genres: genreFilter}.Apply(albums)
	}
	if len(albums) == 0 {
		return fmt.Errorf("no albums to export from %s", outputDir)
	}

	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	if format == "" && path != "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	switch format {
	case "json":
		if path == "" {
			return fmt.Errorf("format json needs a destination path")
		}
		err = records.ExportJSON(path, albums)
	case "csv":
		if path == "" {
			return fmt.Errorf("format csv needs a destination path")
		}
		err = records.ExportCSV(path, albums)
	case "postgres":
		return exportToPostgres(cmd, albums)
	default:
		return fmt.Errorf("unsupported export format %q (want csv, json, or postgres)", format)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d albums to %s\n", len(albums), path)
	return nil
}

func exportToPostgres(cmd *cobra.Command, albums []crawler.AlbumRecord) error {
	dsn, _ := cmd.Flags().GetString("postgres-dsn")
	if dsn == "" {
		dsn = viper.GetString("database.dsn")
	}
	if dsn == "" {
		return fmt.Errorf("format postgres needs --postgres-dsn or database.dsn")
	}

	provider, err := database.NewPostgresProvider(cmd.Context(), dsn, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer provider.Close()

	saved := 0
	for _, album := range albums {
		if err := provider.SaveAlbum(cmd.Context(), album); err != nil {
			logger.Warn("Album upsert failed",
				zap.String("aoty_id", album.AotyID),
				zap.Error(err),
			)
			continue
		}
		saved++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d of %d albums to postgres\n", saved, len(albums))
	return nil
}
