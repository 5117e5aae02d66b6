// Package genres maintains the persistent genre catalog built up across
// crawl runs.
package genres

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Entry is one catalog genre. Parents come from the genre index; children
// are subgenres observed on album pages under that parent.
type Entry struct {
	Type         string    `json:"type"`
	Parent       string    `json:"parent,omitempty"`
	Children     []string  `json:"children,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Source       string    `json:"source"`
}

// staticParents seeds a fresh catalog so downstream consumers always see
// the top-level taxonomy, even before the first successful index fetch.
var staticParents = []string{
	"Rock", "Pop", "Hip Hop", "Electronic", "Metal", "Jazz",
	"Folk", "R&B", "Country", "Punk", "Classical", "Experimental",
}

// Catalog is additive: entries are only ever inserted or extended, never
// removed, so repeated runs converge on a superset.
type Catalog struct {
	path    string
	logger  *zap.Logger
	entries map[string]*Entry
	dirty   bool
}

// Load reads the catalog at path, seeding the static parent set when the
// file does not exist yet. A corrupt file is replaced, not fatal.
func Load(path string, logger *zap.Logger) *Catalog {
	c := &Catalog{
		path:    path,
		logger:  logger,
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c.entries); err != nil {
			logger.Warn("Genre catalog unreadable, starting fresh",
				zap.String("path", path),
				zap.Error(err),
			)
			c.entries = make(map[string]*Entry)
		}
	case !os.IsNotExist(err):
		logger.Warn("Genre catalog unreadable, starting fresh",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	if len(c.entries) == 0 {
		now := time.Now().UTC()
		for _, name := range staticParents {
			c.entries[name] = &Entry{
				Type:         "parent",
				DiscoveredAt: now,
				Source:       "static",
			}
		}
		c.dirty = true
	}
	return c
}

// AddParent records a top-level genre discovered on the genre index.
func (c *Catalog) AddParent(name string) {
	if name == "" {
		return
	}
	entry, ok := c.entries[name]
	if !ok {
		c.entries[name] = &Entry{
			Type:         "parent",
			DiscoveredAt: time.Now().UTC(),
			Source:       "crawl",
		}
		c.dirty = true
		return
	}
	// A statically seeded parent seen live upgrades its provenance.
	if entry.Source == "static" {
		entry.Source = "crawl"
		c.dirty = true
	}
}

// AddChild records a subgenre observed on an album page under parent.
func (c *Catalog) AddChild(name, parent string) {
	if name == "" || parent == "" || name == parent {
		return
	}
	if _, ok := c.entries[name]; !ok {
		c.entries[name] = &Entry{
			Type:         "subgenre",
			Parent:       parent,
			DiscoveredAt: time.Now().UTC(),
			Source:       "crawl",
		}
		c.dirty = true
	}

	parentEntry, ok := c.entries[parent]
	if !ok {
		c.AddParent(parent)
		parentEntry = c.entries[parent]
	}
	for _, child := range parentEntry.Children {
		if child == name {
			return
		}
	}
	parentEntry.Children = append(parentEntry.Children, name)
	sort.Strings(parentEntry.Children)
	c.dirty = true
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Names returns all catalog genre names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry returns the catalog entry for name, if present.
func (c *Catalog) Entry(name string) (Entry, bool) {
	entry, ok := c.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Save persists the catalog when it changed this run.
func (c *Catalog) Save() error {
	if !c.dirty {
		return nil
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create catalog dir %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genre catalog: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write genre catalog %s: %w", c.path, err)
	}
	c.dirty = false
	c.logger.Info("Genre catalog saved",
		zap.String("path", c.path),
		zap.Int("entries", len(c.entries)),
	)
	return nil
}
