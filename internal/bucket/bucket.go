// Package bucket provides pluggable whole-payload persistence backends.
//
// A bucket is an opaque named JSON object read and written as a whole. The
// store serializes its entire state into one bucket key after every mutating
// request, so backends only need atomic whole-bucket writes to be
// crash-consistent.
package bucket

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Backend reads and writes named JSON buckets.
type Backend interface {
	ReadBucket(name string) (map[string]json.RawMessage, error)
	WriteBucket(name string, payload map[string]json.RawMessage) error
	Close() error
}

// Get unmarshals one key of a bucket into out. It returns false when the
// bucket or key does not exist.
func Get(b Backend, bucket, key string, out any) (bool, error) {
	data, err := b.ReadBucket(bucket)
	if err != nil {
		return false, err
	}
	raw, ok := data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode bucket %s key %s: %w", bucket, key, err)
	}
	return true, nil
}

// Set marshals value and stores it under one key of a bucket, rewriting the
// whole bucket.
func Set(b Backend, bucket, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode bucket %s key %s: %w", bucket, key, err)
	}
	data, err := b.ReadBucket(bucket)
	if err != nil {
		return err
	}
	if data == nil {
		data = make(map[string]json.RawMessage)
	}
	data[key] = raw
	return b.WriteBucket(bucket, data)
}

// Open resolves a backend name ("json" or "sqlite") rooted at baseDir.
// An empty name disables persistence and returns nil.
func Open(backend, baseDir string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "":
		return nil, nil
	case "json":
		return NewJSONBackend(filepath.Join(baseDir, ".devplane_db"))
	case "sqlite":
		return NewSQLiteBackend(filepath.Join(baseDir, "devplane.sqlite3"))
	default:
		return nil, fmt.Errorf("unknown database backend: %q", backend)
	}
}

// normalizeName maps a bucket name onto a filesystem- and SQL-safe token.
func normalizeName(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("bucket name cannot be empty")
	}
	return b.String(), nil
}
