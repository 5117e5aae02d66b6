package crawler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ResumeLedger is the in-memory set of album URLs already captured, loaded
// once per run from prior persisted output. Only album detail fetches are
// skippable; list pages may reveal new albums on repeat visits and are
// always refetched.
type ResumeLedger struct {
	seen map[string]struct{}
}

// NewResumeLedger returns an empty ledger.
func NewResumeLedger() *ResumeLedger {
	return &ResumeLedger{seen: make(map[string]struct{})}
}

// LoadResumeLedger scans prior output for album URLs. With explicitFile set,
// only that file is read; otherwise every albums_*.json in dir contributes.
// Unreadable files are logged and skipped, never fatal: resume data is a
// best-effort optimization.
func LoadResumeLedger(dir, explicitFile string, logger *zap.Logger) *ResumeLedger {
	ledger := NewResumeLedger()

	var files []string
	if explicitFile != "" {
		files = []string{explicitFile}
	} else {
		matches, err := filepath.Glob(filepath.Join(dir, "albums_*.json"))
		if err == nil {
			files = matches
		}
	}

	for _, file := range files {
		n, err := ledger.loadFile(file)
		if err != nil {
			logger.Warn("Skipping unreadable resume file",
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}
		logger.Info("Loaded resume data",
			zap.String("file", file),
			zap.Int("urls", n),
		)
	}
	return ledger
}

// Seen reports whether url was captured before.
func (l *ResumeLedger) Seen(url string) bool {
	_, ok := l.seen[url]
	return ok
}

// Add marks url as captured.
func (l *ResumeLedger) Add(url string) {
	if url == "" {
		return
	}
	l.seen[url] = struct{}{}
}

// Len returns the number of tracked URLs.
func (l *ResumeLedger) Len() int {
	return len(l.seen)
}

func (l *ResumeLedger) loadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return l.loadCSV(f, path)
	}
	return l.loadJSON(f, path)
}

func (l *ResumeLedger) loadJSON(r io.Reader, path string) (int, error) {
	var albums []map[string]any
	if err := json.NewDecoder(r).Decode(&albums); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	count := 0
	for _, album := range albums {
		if url, ok := album["url"].(string); ok && url != "" {
			l.Add(url)
			count++
		}
	}
	return count, nil
}

func (l *ResumeLedger) loadCSV(r io.Reader, path string) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header %s: %w", path, err)
	}
	urlCol := -1
	for i, name := range header {
		if name == "url" {
			urlCol = i
			break
		}
	}
	if urlCol == -1 {
		return 0, fmt.Errorf("csv %s has no url column", path)
	}

	count := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read csv row %s: %w", path, err)
		}
		if urlCol < len(row) && row[urlCol] != "" {
			l.Add(row[urlCol])
			count++
		}
	}
	return count, nil
}
