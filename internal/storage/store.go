// Package storage persists generation history and user settings under two
// fixed keys of a KV backend.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/internal/logger"
	"github.com/saeedalam/stackforge/pkg/types"
)

const (
	HistoryKey  = "stackforge.history"
	SettingsKey = "stackforge.settings"
)

// DefaultHistoryLimit caps stored history when no limit is configured
const DefaultHistoryLimit = 50

// Store holds history and settings. History is kept newest-first.
type Store struct {
	kv    KV
	limit int
	log   *logger.Logger
	now   func() time.Time
	mu    sync.RWMutex
}

// NewStore wraps kv. A limit <= 0 keeps every history item.
func NewStore(kv KV, limit int, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		kv:    kv,
		limit: limit,
		log:   log,
		now:   time.Now,
	}
}

// Open creates the backend selected by cfg.Backend and wraps it in a Store
func Open(cfg config.StorageConfig, log *logger.Logger) (*Store, error) {
	var kv KV
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "json":
		kv = NewFileKV(cfg.Dir)
	case "sqlite":
		s, err := NewSQLiteKV(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		kv = s
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	return NewStore(kv, cfg.HistoryLimit, log), nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.kv.Close()
}

// --- History ---

// History returns all items, newest first. Missing or unreadable data reads
// as an empty history.
func (s *Store) History() ([]types.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadHistory()
}

func (s *Store) loadHistory() ([]types.HistoryItem, error) {
	items, err := readJSON[[]types.HistoryItem](s.kv, HistoryKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []types.HistoryItem{}, nil
		}
		if isDecodeError(err) {
			s.log.Warn("discarding unreadable history", "error", err)
			return []types.HistoryItem{}, nil
		}
		return nil, err
	}
	if items == nil || *items == nil {
		return []types.HistoryItem{}, nil
	}
	return *items, nil
}

// HistoryItem returns the item with the given id
func (s *Store) HistoryItem(id string) (*types.HistoryItem, error) {
	items, err := s.History()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, apperr.Newf(apperr.KindNotFound, "history item %q not found", id)
}

// AddHistory records a finished blueprint at the head of the history and
// evicts the oldest items beyond the configured limit.
func (s *Store) AddHistory(projectName string, bp *types.Blueprint) (*types.HistoryItem, error) {
	if bp == nil {
		return nil, apperr.New(apperr.KindInvalidInput, "blueprint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadHistory()
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := types.HistoryItem{
		ID:          generateID("hist", now),
		Timestamp:   now.UnixMilli(),
		ProjectName: projectName,
		Blueprint:   *bp,
	}

	items = append([]types.HistoryItem{item}, items...)
	if s.limit > 0 && len(items) > s.limit {
		s.log.Debug("evicting history items", "count", len(items)-s.limit)
		items = items[:s.limit]
	}

	if err := writeJSON(s.kv, HistoryKey, items); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteHistory removes one item by id
func (s *Store) DeleteHistory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadHistory()
	if err != nil {
		return err
	}

	kept := items[:0]
	found := false
	for _, item := range items {
		if item.ID == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return apperr.Newf(apperr.KindNotFound, "history item %q not found", id)
	}
	return writeJSON(s.kv, HistoryKey, kept)
}

// ClearHistory removes every item
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(s.kv, HistoryKey, []types.HistoryItem{})
}

// SearchHistory returns items whose project name, description or file paths
// contain query, case-insensitively. An empty query matches everything.
func (s *Store) SearchHistory(query string) ([]types.HistoryItem, error) {
	items, err := s.History()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items, nil
	}

	var results []types.HistoryItem
	for _, item := range items {
		if matchesQuery(item, q) {
			results = append(results, item)
		}
	}
	return results, nil
}

func matchesQuery(item types.HistoryItem, q string) bool {
	if strings.Contains(strings.ToLower(item.ProjectName), q) ||
		strings.Contains(strings.ToLower(item.Blueprint.Description), q) {
		return true
	}
	for _, f := range item.Blueprint.Files {
		if strings.Contains(strings.ToLower(f.Path), q) {
			return true
		}
	}
	return false
}

// --- Settings ---

// Settings returns the stored settings, or DefaultSettings when nothing
// readable is stored.
func (s *Store) Settings() (types.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, err := readJSON[types.Settings](s.kv, SettingsKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.DefaultSettings(), nil
		}
		if isDecodeError(err) {
			s.log.Warn("discarding unreadable settings", "error", err)
			return types.DefaultSettings(), nil
		}
		return types.Settings{}, err
	}
	if settings.ActiveProvider == "" {
		settings.ActiveProvider = types.ProviderGoogle
	}
	return *settings, nil
}

// SaveSettings replaces the stored settings
func (s *Store) SaveSettings(settings types.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(s.kv, SettingsKey, settings)
}
