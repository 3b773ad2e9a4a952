package bucket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONBackend stores one JSON file per bucket under a root directory.
// Writes go through a temp file and rename so readers only ever observe a
// previous-or-current full bucket.
type JSONBackend struct {
	root string
	mu   sync.RWMutex
}

// NewJSONBackend creates the root directory and returns the backend.
func NewJSONBackend(root string) (*JSONBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &JSONBackend{root: root}, nil
}

func (j *JSONBackend) path(name string) (string, error) {
	normalized, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(j.root, normalized+".json"), nil
}

// ReadBucket returns the bucket contents, or an empty map when absent.
func (j *JSONBackend) ReadBucket(name string) (map[string]json.RawMessage, error) {
	path, err := j.path(name)
	if err != nil {
		return nil, err
	}
	j.mu.RLock()
	raw, err := os.ReadFile(path)
	j.mu.RUnlock()
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bucket %s: %w", name, err)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("bucket %s contains invalid JSON: %w", name, err)
	}
	return payload, nil
}

// WriteBucket atomically replaces the bucket contents.
func (j *JSONBackend) WriteBucket(name string, payload map[string]json.RawMessage) error {
	path, err := j.path(name)
	if err != nil {
		return err
	}
	if payload == nil {
		payload = map[string]json.RawMessage{}
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bucket %s: %w", name, err)
	}
	encoded = append(encoded, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("write bucket %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit bucket %s: %w", name, err)
	}
	return nil
}

// Close is a no-op; JSON buckets hold no open handles between calls.
func (j *JSONBackend) Close() error { return nil }
