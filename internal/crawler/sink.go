package crawler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/metrics"
)

// FileSink buffers extracted records in memory and flushes them to
// timestamped JSON and CSV files at the end of the run. Output is
// append-by-new-file; prior files are never mutated.
type FileSink struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	albums []AlbumRecord
	genres []GenreDescriptor
}

// WriteResult is the outcome of one output file.
type WriteResult struct {
	Path    string
	Records int
	Err     error
}

// FlushReport summarizes a flush. Each format's outcome is independent: a
// failed CSV never blocks the JSON write.
type FlushReport struct {
	Written []WriteResult
	Dropped int
}

// NewFileSink creates the output directory and returns a sink rooted there.
func NewFileSink(dir string, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &FileSink{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Append buffers one album record. Records are appended whole or not at
// all; a canceled fetch never reaches this point.
func (s *FileSink) Append(record AlbumRecord) {
	s.albums = append(s.albums, record)
}

// AppendGenre buffers one discovered genre.
func (s *FileSink) AppendGenre(genre GenreDescriptor) {
	for _, existing := range s.genres {
		if existing.Slug == genre.Slug {
			return
		}
	}
	s.genres = append(s.genres, genre)
}

// Albums returns the deduplicated, validated album set that a flush would
// persist.
func (s *FileSink) Albums() []AlbumRecord {
	return filterValid(dedupeAlbums(s.albums))
}

// Flush deduplicates by aoty_id (last write wins), drops invalid records,
// and writes each category in both formats. An error is returned only when
// there was data to write and not a single file succeeded.
func (s *FileSink) Flush(ctx context.Context) (FlushReport, error) {
	if err := ctx.Err(); err != nil {
		return FlushReport{}, err
	}

	deduped := dedupeAlbums(s.albums)
	valid := filterValid(deduped)
	report := FlushReport{Dropped: len(deduped) - len(valid)}
	if report.Dropped > 0 {
		s.logger.Warn("Dropping invalid records", zap.Int("count", report.Dropped))
		metrics.ObserveRecordsDropped(report.Dropped)
	}

	timestamp := s.now().UTC().Format("20060102_150405")

	if len(valid) > 0 {
		report.add(s.writeJSON(fmt.Sprintf("albums_%s.json", timestamp), valid, len(valid)))
		report.add(s.writeCSV(fmt.Sprintf("albums_%s.csv", timestamp), toRows(valid)))
	}
	if len(s.genres) > 0 {
		report.add(s.writeJSON(fmt.Sprintf("genres_%s.json", timestamp), s.genres, len(s.genres)))
		report.add(s.writeCSV(fmt.Sprintf("genres_%s.csv", timestamp), toRows(s.genres)))
	}

	failures := 0
	for _, res := range report.Written {
		if res.Err != nil {
			failures++
			s.logger.Error("Output write failed",
				zap.String("path", res.Path),
				zap.Error(res.Err),
			)
			continue
		}
		s.logger.Info("Output written",
			zap.String("path", res.Path),
			zap.Int("records", res.Records),
		)
	}
	if len(report.Written) > 0 && failures == len(report.Written) {
		return report, fmt.Errorf("all %d output writes failed", failures)
	}
	return report, nil
}

func dedupeAlbums(albums []AlbumRecord) []AlbumRecord {
	index := make(map[string]int, len(albums))
	var out []AlbumRecord
	for _, album := range albums {
		if pos, ok := index[album.AotyID]; ok {
			out[pos] = album
			continue
		}
		index[album.AotyID] = len(out)
		out = append(out, album)
	}
	return out
}

func filterValid(albums []AlbumRecord) []AlbumRecord {
	out := make([]AlbumRecord, 0, len(albums))
	for _, album := range albums {
		if album.Valid() {
			out = append(out, album)
		}
	}
	return out
}

func (s *FileSink) writeJSON(name string, payload any, count int) WriteResult {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return WriteResult{Path: path, Err: fmt.Errorf("marshal %s: %w", name, err)}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return WriteResult{Path: path, Err: fmt.Errorf("write %s: %w", path, err)}
	}
	return WriteResult{Path: path, Records: count}
}

// writeCSV persists rows with a header that is the sorted union of all field
// names. List- and map-valued cells hold embedded JSON text so no structure
// is lost in the flat format.
func (s *FileSink) writeCSV(name string, rows []map[string]any) WriteResult {
	path := filepath.Join(s.dir, name)
	if len(rows) == 0 {
		return WriteResult{Path: path, Err: fmt.Errorf("no rows for %s", name)}
	}

	fieldSet := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			fieldSet[key] = struct{}{}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for key := range fieldSet {
		fields = append(fields, key)
	}
	sort.Strings(fields)

	f, err := os.Create(path)
	if err != nil {
		return WriteResult{Path: path, Err: fmt.Errorf("create %s: %w", path, err)}
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(fields); err != nil {
		return WriteResult{Path: path, Err: fmt.Errorf("write header %s: %w", path, err)}
	}
	for _, row := range rows {
		cells := make([]string, len(fields))
		for i, field := range fields {
			cells[i] = csvCell(row[field])
		}
		if err := writer.Write(cells); err != nil {
			return WriteResult{Path: path, Err: fmt.Errorf("write row %s: %w", path, err)}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return WriteResult{Path: path, Err: fmt.Errorf("flush %s: %w", path, err)}
	}
	return WriteResult{Path: path, Records: len(rows)}
}

// toRows converts a slice of records into generic rows via their JSON form,
// so the CSV header tracks the JSON field names exactly.
func toRows[T any](items []T) []map[string]any {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(data, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func csvCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatJSONNumber(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func formatJSONNumber(v float64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func (r *FlushReport) add(res WriteResult) {
	r.Written = append(r.Written, res)
}
