// Package text provides the message templates plugins reply with.
package text

import (
	"embed"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-json-experiment/json"
	zlog "github.com/rs/zerolog/log"
)

//go:embed defaults/*.json
var defaultFS embed.FS

// Table maps a message key to its ordered templates.
type Table map[string][]string

// Store holds the template tables of every plugin.
// Tables come from the embedded defaults, overridden key by key by
// <dir>/<plugin>.json when present.
type Store struct {
	mu     sync.RWMutex
	dir    string
	tables map[string]Table
}

// NewStore loads every embedded table and its overrides from dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, tables: make(map[string]Table)}

	entries, err := defaultFS.ReadDir("defaults")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list default templates")
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if err := s.Reload(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Reload re-reads the tables for one plugin.
func (s *Store) Reload(plugin string) error {
	table := make(Table)

	data, err := defaultFS.ReadFile(path.Join("defaults", plugin+".json"))
	if err == nil {
		if err := json.Unmarshal(data, &table); err != nil {
			return errors.Wrapf(err, "failed to parse default templates for %s", plugin)
		}
	}

	if s.dir != "" {
		override, err := readTable(filepath.Join(s.dir, plugin+".json"))
		if err != nil {
			return err
		}
		for k, v := range override {
			table[k] = v
		}
	}

	s.mu.Lock()
	s.tables[plugin] = table
	s.mu.Unlock()

	zlog.Debug().Msgf("text: loaded templates: plugin=%s keys=%d", plugin, len(table))
	return nil
}

func readTable(file string) (Table, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", file)
	}
	return table, nil
}

// Get returns one template. Missing templates render as their key.
func (s *Store) Get(plugin, key string, index int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := s.tables[plugin][key]
	if index < 0 || index >= len(values) {
		zlog.Warn().Msgf("text: missing template: %s.%s[%d]", plugin, key, index)
		return key
	}
	return values[index]
}

// Format renders one template with args.
func (s *Store) Format(plugin, key string, index int, args ...any) string {
	return Format(s.Get(plugin, key, index), args...)
}

// For returns a view of the store bound to one plugin.
func (s *Store) For(plugin string) *Messages {
	return &Messages{store: s, plugin: plugin}
}

// Messages is a Store view bound to one plugin.
type Messages struct {
	store  *Store
	plugin string
}

// Get returns one template of the bound plugin.
func (m *Messages) Get(key string, index int) string {
	return m.store.Get(m.plugin, key, index)
}

// Format renders one template of the bound plugin.
func (m *Messages) Format(key string, index int, args ...any) string {
	return m.store.Format(m.plugin, key, index, args...)
}
