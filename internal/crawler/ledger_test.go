package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadResumeLedger(t *testing.T) {
	logger := zap.NewNop()

	t.Run("scans all albums json files in dir", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "albums_20240101_000000.json",
			`[{"url": "https://aoty.test/album/1-a.php", "title": "A"}]`)
		writeTestFile(t, dir, "albums_20240201_000000.json",
			`[{"url": "https://aoty.test/album/2-b.php"}, {"url": "https://aoty.test/album/1-a.php"}]`)
		writeTestFile(t, dir, "genres_20240101_000000.json", `[{"name": "Rock"}]`)

		ledger := LoadResumeLedger(dir, "", logger)
		assert.Equal(t, 2, ledger.Len())
		assert.True(t, ledger.Seen("https://aoty.test/album/1-a.php"))
		assert.True(t, ledger.Seen("https://aoty.test/album/2-b.php"))
		assert.False(t, ledger.Seen("https://aoty.test/album/3-c.php"))
	})

	t.Run("explicit file overrides the scan", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "albums_20240101_000000.json",
			`[{"url": "https://aoty.test/album/1-a.php"}]`)
		explicit := writeTestFile(t, dir, "mine.json",
			`[{"url": "https://aoty.test/album/9-z.php"}]`)

		ledger := LoadResumeLedger(dir, explicit, logger)
		assert.Equal(t, 1, ledger.Len())
		assert.True(t, ledger.Seen("https://aoty.test/album/9-z.php"))
	})

	t.Run("reads csv resume files", func(t *testing.T) {
		dir := t.TempDir()
		explicit := writeTestFile(t, dir, "albums_20240101_000000.csv",
			"title,url\nA,https://aoty.test/album/1-a.php\nB,https://aoty.test/album/2-b.php\n")

		ledger := LoadResumeLedger(dir, explicit, logger)
		assert.Equal(t, 2, ledger.Len())
	})

	t.Run("unreadable files are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "albums_20240101_000000.json", "{not json")
		writeTestFile(t, dir, "albums_20240201_000000.json",
			`[{"url": "https://aoty.test/album/1-a.php"}]`)

		ledger := LoadResumeLedger(dir, "", logger)
		assert.Equal(t, 1, ledger.Len())
	})

	t.Run("missing dir yields empty ledger", func(t *testing.T) {
		ledger := LoadResumeLedger(filepath.Join(t.TempDir(), "nope"), "", logger)
		assert.Equal(t, 0, ledger.Len())
	})
}

func TestResumeLedger_AddSeen(t *testing.T) {
	ledger := NewResumeLedger()
	assert.False(t, ledger.Seen("https://aoty.test/album/1-a.php"))

	ledger.Add("https://aoty.test/album/1-a.php")
	assert.True(t, ledger.Seen("https://aoty.test/album/1-a.php"))

	ledger.Add("")
	assert.Equal(t, 1, ledger.Len())
}
