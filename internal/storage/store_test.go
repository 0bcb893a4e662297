package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/pkg/types"
)

func setupTestStore(t *testing.T, limit int) (*Store, string, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "stackforge-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store := NewStore(NewFileKV(tmpDir), limit, nil)
	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, tmpDir, cleanup
}

func sampleBlueprint(name string) *types.Blueprint {
	return &types.Blueprint{
		ProjectName: name,
		Description: "A " + name + " project",
		Structure:   ".\n└── index.html",
		Files: []types.FileRecord{
			{Path: "index.html", Content: "<html></html>", Language: "markup"},
		},
	}
}

// =============================================================================
// FILE KV TESTS
// =============================================================================

func TestFileKVGetMissing(t *testing.T) {
	kv := NewFileKV(t.TempDir())

	if _, err := kv.Get("nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileKVPutGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	kv := NewFileKV(dir)

	if err := kv.Put("a.key", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := kv.Get("a.key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Errorf("Expected stored value, got %q", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.key.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("Temp file should be renamed away")
	}
}

func TestFileKVRejectsPathKeys(t *testing.T) {
	kv := NewFileKV(t.TempDir())

	for _, key := range []string{"../escape", "a/b", "", ".."} {
		if err := kv.Put(key, []byte("x")); err == nil {
			t.Errorf("Expected error for key %q", key)
		}
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistoryAddAndList(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	first, err := store.AddHistory("First", sampleBlueprint("First"))
	if err != nil {
		t.Fatalf("AddHistory failed: %v", err)
	}
	second, err := store.AddHistory("Second", sampleBlueprint("Second"))
	if err != nil {
		t.Fatalf("AddHistory failed: %v", err)
	}

	if !strings.HasPrefix(first.ID, "hist-") {
		t.Errorf("Expected hist- prefix, got %q", first.ID)
	}
	if first.ID == second.ID {
		t.Errorf("Expected unique ids")
	}

	items, err := store.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != second.ID {
		t.Errorf("Expected newest first")
	}
	if items[1].Blueprint.Files[0].Path != "index.html" {
		t.Errorf("Blueprint not persisted: %+v", items[1].Blueprint)
	}
}

func TestHistoryEmptyWhenMissing(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	items, err := store.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("Expected empty non-nil history, got %v", items)
	}
}

func TestHistoryCorruptReadsAsEmpty(t *testing.T) {
	store, dir, cleanup := setupTestStore(t, 0)
	defer cleanup()

	if err := os.WriteFile(filepath.Join(dir, HistoryKey+".json"), []byte("{broken"), 0600); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	items, err := store.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty history, got %d items", len(items))
	}

	// Adding after corruption starts a fresh list
	if _, err := store.AddHistory("P", sampleBlueprint("P")); err != nil {
		t.Fatalf("AddHistory failed: %v", err)
	}
	items, _ = store.History()
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestHistoryRetention(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 3)
	defer cleanup()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		if _, err := store.AddHistory(name, sampleBlueprint(name)); err != nil {
			t.Fatalf("AddHistory failed: %v", err)
		}
	}

	items, _ := store.History()
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	got := []string{items[0].ProjectName, items[1].ProjectName, items[2].ProjectName}
	if strings.Join(got, ",") != "e,d,c" {
		t.Errorf("Expected newest three e,d,c, got %v", got)
	}
	if items[0].Timestamp <= items[1].Timestamp {
		t.Errorf("Expected descending timestamps")
	}
}

func TestHistoryItemAndDelete(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	item, _ := store.AddHistory("Keep", sampleBlueprint("Keep"))
	gone, _ := store.AddHistory("Gone", sampleBlueprint("Gone"))

	loaded, err := store.HistoryItem(item.ID)
	if err != nil {
		t.Fatalf("HistoryItem failed: %v", err)
	}
	if loaded.ProjectName != "Keep" {
		t.Errorf("Expected 'Keep', got %q", loaded.ProjectName)
	}

	if err := store.DeleteHistory(gone.ID); err != nil {
		t.Fatalf("DeleteHistory failed: %v", err)
	}
	if _, err := store.HistoryItem(gone.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NotFound after delete, got %v", err)
	}
	if err := store.DeleteHistory(gone.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NotFound deleting twice, got %v", err)
	}

	items, _ := store.History()
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("Expected only 'Keep' left, got %+v", items)
	}
}

func TestClearHistory(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	store.AddHistory("A", sampleBlueprint("A"))
	if err := store.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	items, _ := store.History()
	if len(items) != 0 {
		t.Errorf("Expected empty history, got %d", len(items))
	}
}

func TestSearchHistory(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	store.AddHistory("Todo App", sampleBlueprint("Todo App"))
	bp := sampleBlueprint("Weather")
	bp.Files = append(bp.Files, types.FileRecord{Path: "src/ForecastCard.tsx", Content: "x"})
	store.AddHistory("Weather", bp)

	tests := []struct {
		query string
		want  int
	}{
		{"todo", 1},
		{"FORECAST", 1},
		{"project", 2},
		{"", 2},
		{"missing", 0},
	}
	for _, tt := range tests {
		results, err := store.SearchHistory(tt.query)
		if err != nil {
			t.Fatalf("SearchHistory failed: %v", err)
		}
		if len(results) != tt.want {
			t.Errorf("SearchHistory(%q): expected %d results, got %d", tt.query, tt.want, len(results))
		}
	}
}

func TestAddHistoryNilBlueprint(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	if _, err := store.AddHistory("x", nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestSettingsDefault(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	settings, err := store.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.ActiveProvider != types.ProviderGoogle {
		t.Errorf("Expected default provider google, got %q", settings.ActiveProvider)
	}
}

func TestSettingsSaveAndLoad(t *testing.T) {
	store, _, cleanup := setupTestStore(t, 0)
	defer cleanup()

	settings := types.Settings{
		ActiveProvider: types.ProviderOpenRouter,
		OpenRouter:     types.ProviderCredentials{APIKey: "sk-or-123", Model: "meta/llama"},
		DefaultStack:   "react",
	}
	if err := store.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	loaded, err := store.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if loaded != settings {
		t.Errorf("Expected %+v, got %+v", settings, loaded)
	}
}

func TestSettingsCorruptReadsAsDefault(t *testing.T) {
	store, dir, cleanup := setupTestStore(t, 0)
	defer cleanup()

	os.WriteFile(filepath.Join(dir, SettingsKey+".json"), []byte(`["not","an","object"]`), 0600)

	settings, err := store.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings != types.DefaultSettings() {
		t.Errorf("Expected default settings, got %+v", settings)
	}
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestOpenBackends(t *testing.T) {
	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			store, err := Open(config.StorageConfig{Dir: t.TempDir(), Backend: backend, HistoryLimit: 2}, nil)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer store.Close()

			for _, name := range []string{"a", "b", "c"} {
				if _, err := store.AddHistory(name, sampleBlueprint(name)); err != nil {
					t.Fatalf("AddHistory failed: %v", err)
				}
			}
			items, err := store.History()
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			if len(items) != 2 || items[0].ProjectName != "c" {
				t.Errorf("Unexpected history: %+v", items)
			}

			if err := store.SaveSettings(types.Settings{ActiveProvider: "openrouter"}); err != nil {
				t.Fatalf("SaveSettings failed: %v", err)
			}
			s, _ := store.Settings()
			if s.ActiveProvider != "openrouter" {
				t.Errorf("Expected openrouter, got %q", s.ActiveProvider)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(config.StorageConfig{Dir: t.TempDir(), Backend: "redis"}, nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestSQLiteKVUpsert(t *testing.T) {
	kv, err := NewSQLiteKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	defer kv.Close()

	if _, err := kv.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	kv.Put("k", []byte("one"))
	kv.Put("k", []byte("two"))

	got, err := kv.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("Expected 'two', got %q", got)
	}
}
