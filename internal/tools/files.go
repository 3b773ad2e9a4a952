package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgestack/devplane/internal/diffpatch"
)

// resolve maps a workspace-relative path under root, rejecting anything
// that would escape it.
func (r *Runtime) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimSpace(path))
	if cleaned == "/" {
		return r.root, nil
	}
	abs := filepath.Join(r.root, cleaned)
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace root: %s", path)
	}
	return abs, nil
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func registerFileTools(r *Runtime) {
	r.register("list_dir", r.listDir)
	r.register("read_file", r.readFile)
	r.register("write_file", r.writeFile)
	r.register("delete_file", r.deleteFile)
	r.register("apply_patch", r.applyPatch)
}

type dirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (r *Runtime) listDir(ctx context.Context, args map[string]any) Result {
	path := argString(args, "path")
	if path == "" {
		path = "."
	}
	abs, err := r.resolve(path)
	if err != nil {
		return failf("list_dir error: %v", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return failf("Path not found: %s", path)
		}
		return failf("list_dir error: %v", err)
	}
	items := make([]dirEntry, 0, len(entries))
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		items = append(items, dirEntry{Name: e.Name(), Type: kind})
	}
	// Directories first, then case-insensitive by name.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type == "dir"
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	pretty, _ := json.MarshalIndent(items, "", "  ")
	return Result{OK: true, Output: string(pretty), Data: items}
}

func (r *Runtime) readFile(ctx context.Context, args map[string]any) Result {
	path := argString(args, "path")
	abs, err := r.resolve(path)
	if err != nil {
		return failf("read_file error: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return failf("File not found: %s", path)
	}
	if info.IsDir() {
		return failf("Not a file: %s", path)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return failf("read_file error: %v", err)
	}
	text := string(raw)
	return Result{OK: true, Output: text, Data: text}
}

func (r *Runtime) writeFile(ctx context.Context, args map[string]any) Result {
	path := argString(args, "path")
	content := argString(args, "content")
	overwrite := true
	if v, ok := args["overwrite"].(bool); ok {
		overwrite = v
	}
	abs, err := r.resolve(path)
	if err != nil {
		return failf("write_file error: %v", err)
	}
	if !overwrite {
		if _, err := os.Stat(abs); err == nil {
			return failf("Refused overwrite: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return failf("write_file error: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return failf("write_file error: %v", err)
	}
	return Result{OK: true, Output: fmt.Sprintf("Wrote %s (%d chars)", path, len(content))}
}

func (r *Runtime) deleteFile(ctx context.Context, args map[string]any) Result {
	path := argString(args, "path")
	abs, err := r.resolve(path)
	if err != nil {
		return failf("delete_file error: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return failf("Not found: %s", path)
	}
	if info.IsDir() {
		return failf("Refusing to delete directory via delete_file: %s", path)
	}
	if err := os.Remove(abs); err != nil {
		return failf("delete_file error: %v", err)
	}
	return Result{OK: true, Output: fmt.Sprintf("Deleted %s", path)}
}

func (r *Runtime) applyPatch(ctx context.Context, args map[string]any) Result {
	path := argString(args, "path")
	diff := argString(args, "diff")
	abs, err := r.resolve(path)
	if err != nil {
		return failf("apply_patch error: %v", err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return failf("File not found for patch: %s", path)
	}
	patched, ok := diffpatch.Apply(diffpatch.SplitLines(string(raw)), diff)
	if !ok {
		return failf("Failed to apply patch (hunks did not match). Ask model to rebase patch.")
	}
	if err := os.WriteFile(abs, []byte(strings.Join(patched, "")), 0o644); err != nil {
		return failf("apply_patch error: %v", err)
	}
	return Result{OK: true, Output: fmt.Sprintf("Patched %s", path)}
}
