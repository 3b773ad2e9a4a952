package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, extraDirs ...string) *Runtime {
	t.Helper()
	return NewRuntime(t.TempDir(), extraDirs, zerolog.Nop())
}

func TestAvailable_Builtins(t *testing.T) {
	r := newTestRuntime(t)
	names := r.Available()
	assert.Contains(t, names, "list_dir")
	assert.Contains(t, names, "read_file")
	assert.Contains(t, names, "write_file")
	assert.Contains(t, names, "delete_file")
	assert.Contains(t, names, "apply_patch")
	assert.IsIncreasing(t, names)
}

func TestExecute_UnknownTool(t *testing.T) {
	res := newTestRuntime(t).Execute(context.Background(), "nope", nil)
	assert.False(t, res.OK)
	assert.Contains(t, res.Output, "Unknown tool")
}

func TestWriteReadDeleteFile(t *testing.T) {
	r := newTestRuntime(t)
	ctx := context.Background()

	res := r.Execute(ctx, "write_file", map[string]any{"path": "sub/hello.txt", "content": "hi there"})
	require.True(t, res.OK, res.Output)

	res = r.Execute(ctx, "read_file", map[string]any{"path": "sub/hello.txt"})
	require.True(t, res.OK)
	assert.Equal(t, "hi there", res.Output)

	res = r.Execute(ctx, "write_file", map[string]any{"path": "sub/hello.txt", "content": "x", "overwrite": false})
	assert.False(t, res.OK)
	assert.Contains(t, res.Output, "Refused overwrite")

	res = r.Execute(ctx, "delete_file", map[string]any{"path": "sub/hello.txt"})
	require.True(t, res.OK)

	res = r.Execute(ctx, "read_file", map[string]any{"path": "sub/hello.txt"})
	assert.False(t, res.OK)
}

func TestListDir_OrdersDirsFirst(t *testing.T) {
	r := newTestRuntime(t)
	ctx := context.Background()
	require.True(t, r.Execute(ctx, "write_file", map[string]any{"path": "zz.txt", "content": ""}).OK)
	require.True(t, r.Execute(ctx, "write_file", map[string]any{"path": "adir/inner.txt", "content": ""}).OK)

	res := r.Execute(ctx, "list_dir", map[string]any{"path": "."})
	require.True(t, res.OK)
	items, ok := res.Data.([]dirEntry)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, dirEntry{Name: "adir", Type: "dir"}, items[0])
	assert.Equal(t, dirEntry{Name: "zz.txt", Type: "file"}, items[1])
}

func TestPathTraversalRejected(t *testing.T) {
	r := newTestRuntime(t)
	res := r.Execute(context.Background(), "read_file", map[string]any{"path": "../../etc/passwd"})
	assert.False(t, res.OK)
}

func TestApplyPatch(t *testing.T) {
	r := newTestRuntime(t)
	ctx := context.Background()
	require.True(t, r.Execute(ctx, "write_file", map[string]any{"path": "f.txt", "content": "one\ntwo\n"}).OK)

	res := r.Execute(ctx, "apply_patch", map[string]any{
		"path": "f.txt",
		"diff": "@@ -1,2 +1,2 @@\n one\n-two\n+TWO\n",
	})
	require.True(t, res.OK, res.Output)

	res = r.Execute(ctx, "read_file", map[string]any{"path": "f.txt"})
	require.True(t, res.OK)
	assert.Equal(t, "one\nTWO\n", res.Output)

	res = r.Execute(ctx, "apply_patch", map[string]any{
		"path": "f.txt",
		"diff": "@@ -1,1 +1,1 @@\n-never\n+matched\n",
	})
	assert.False(t, res.OK)
	assert.Contains(t, res.Output, "hunks did not match")
}

func TestLoadExecutables(t *testing.T) {
	toolDir := t.TempDir()
	script := filepath.Join(toolDir, "shout.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho '{\"loud\":true}'\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(toolDir, "notes.txt"), []byte("not a tool"), 0o644))

	r := newTestRuntime(t, toolDir)
	assert.Contains(t, r.Available(), "shout")
	assert.NotContains(t, r.Available(), "notes")

	res := r.Execute(context.Background(), "shout", map[string]any{"x": 1})
	require.True(t, res.OK, res.Output)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["loud"])
}

func TestInvokeHandler_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "secret", req.Header.Get("X-Token"))
		w.Write([]byte(`{"echo":true}`))
	}))
	defer srv.Close()

	r := newTestRuntime(t)
	ok, result := r.InvokeHandler(context.Background(), Handler{
		Type:    "http",
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "secret"},
	}, map[string]any{"a": 1})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"echo": true}, result)
}

func TestInvokeHandler_Unsupported(t *testing.T) {
	r := newTestRuntime(t)
	ok, result := r.InvokeHandler(context.Background(), Handler{Type: "python"}, nil)
	assert.False(t, ok)
	m, isMap := result.(map[string]any)
	require.True(t, isMap)
	assert.Contains(t, m["error"], "unsupported handler type")
}
