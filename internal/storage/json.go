package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by KV.Get for absent keys
var ErrNotFound = errors.New("storage: key not found")

// KV is a string-keyed byte store
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Close() error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}

// FileKV stores each key as a JSON document under basePath
type FileKV struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileKV creates a file-backed KV rooted at basePath
func NewFileKV(basePath string) *FileKV {
	return &FileKV{
		basePath: basePath,
	}
}

// BasePath returns the directory the documents live in
func (s *FileKV) BasePath() string {
	return s.basePath
}

func (s *FileKV) path(key string) string {
	return filepath.Join(s.basePath, key+".json")
}

func (s *FileKV) Get(key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *FileKV) Put(key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeFile(s.path(key), value)
}

// Close is a no-op
func (s *FileKV) Close() error {
	return nil
}

// --- Helpers ---

func readJSON[T any](kv KV, key string) (*T, error) {
	data, err := kv.Get(key)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func writeJSON(kv KV, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// Trailing newline for clean diffs
	data = append(data, '\n')
	return kv.Put(key, data)
}

func writeFile(path string, data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Atomic write: write to temp file then rename to prevent corruption
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// generateID returns a time-derived unique id: prefix-<epoch ms>-<uuid8>
func generateID(prefix string, now time.Time) string {
	short := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), short)
}
