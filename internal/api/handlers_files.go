package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forgestack/devplane/internal/apierr"
)

const (
	searchMatchCap   = 5000
	searchPreviewCap = 500
	maxFileTreeDepth = 20
	defaultTreeDepth = 4
)

func sha256Text(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func fileEntry(root, path string, info fs.FileInfo) map[string]any {
	rel, _ := filepath.Rel(root, path)
	rel = filepath.ToSlash(rel)
	kind := "file"
	size := info.Size()
	if info.IsDir() {
		kind = "dir"
		size = 0
	}
	return map[string]any{
		"path":       rel,
		"type":       kind,
		"mtime":      info.ModTime().UTC().Format(time.RFC3339),
		"size_bytes": size,
	}
}

func (s *Server) handleFilesTree(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	rootParam := c.QueryFirst("root", "/")
	depth := c.QueryInt("depth", defaultTreeDepth)
	if depth < 1 {
		depth = 1
	}
	if depth > maxFileTreeDepth {
		depth = maxFileTreeDepth
	}
	includeHidden := c.QueryBool("include_hidden", false)
	st := c.State
	projectRoot, err := st.EnsureProjectPath(projectID)
	if err != nil {
		return nil, err
	}
	rootPath := projectRoot
	if rootParam != "/" {
		if rootPath, err = st.SafeProjectFilePath(projectID, rootParam); err != nil {
			return nil, err
		}
	}
	info, statErr := os.Stat(rootPath)
	if statErr != nil {
		return nil, apierr.NotFound("not_found", "Path not found: "+rootParam)
	}
	items := []map[string]any{}
	if !info.IsDir() {
		items = append(items, fileEntry(projectRoot, rootPath, info))
		return OK(map[string]any{"root": rootParam, "items": items}), nil
	}
	baseDepth := strings.Count(filepath.Clean(rootPath), string(filepath.Separator))
	walkErr := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == rootPath {
			return nil
		}
		name := d.Name()
		if !includeHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		curDepth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - baseDepth
		if d.IsDir() && curDepth > depth {
			return filepath.SkipDir
		}
		if curDepth > depth {
			return nil
		}
		fi, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		items = append(items, fileEntry(projectRoot, path, fi))
		return nil
	})
	if walkErr != nil {
		return nil, apierr.Internal("tree_failed", walkErr.Error())
	}
	return OK(map[string]any{"root": rootParam, "items": items}), nil
}

func (s *Server) handleFilesGetContent(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	relPath := c.QueryFirst("path", "")
	if relPath == "" {
		return nil, apierr.BadRequest("invalid_request", "path query parameter is required.")
	}
	absPath, err := c.State.SafeProjectFilePath(projectID, relPath)
	if err != nil {
		return nil, err
	}
	info, statErr := os.Stat(absPath)
	if statErr != nil || info.IsDir() {
		return nil, apierr.NotFound("not_found", "File not found: "+relPath)
	}
	raw, readErr := os.ReadFile(absPath)
	if readErr != nil {
		return nil, apierr.Internal("read_failed", readErr.Error())
	}
	text := string(raw)
	return OK(map[string]any{
		"path":     relPath,
		"encoding": "utf-8",
		"text":     text,
		"etag":     sha256Text(text),
	}), nil
}

func writeProjectFile(c *Context, projectID, relPath, text, etag string) (string, *apierr.Error) {
	absPath, err := c.State.SafeProjectFilePath(projectID, relPath)
	if err != nil {
		return "", apierr.From(err)
	}
	if _, statErr := os.Stat(absPath); statErr == nil && strings.TrimSpace(etag) != "" {
		current, readErr := os.ReadFile(absPath)
		if readErr == nil && sha256Text(string(current)) != strings.TrimSpace(etag) {
			return "", apierr.New(409, "etag_conflict", "File has changed since the provided etag.")
		}
	}
	if mkErr := os.MkdirAll(filepath.Dir(absPath), 0o755); mkErr != nil {
		return "", apierr.Internal("write_failed", mkErr.Error())
	}
	if writeErr := os.WriteFile(absPath, []byte(text), 0o644); writeErr != nil {
		return "", apierr.Internal("write_failed", writeErr.Error())
	}
	return sha256Text(text), nil
}

func (s *Server) handleFilesPutContent(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	relPath := bodyString(body, "path")
	if relPath == "" {
		return nil, apierr.BadRequest("invalid_request", "path is required.")
	}
	text, ok := body["text"].(string)
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "text must be a string.")
	}
	etag, _ := body["etag"].(string)
	newETag, writeErr := writeProjectFile(c, projectID, relPath, text, etag)
	if writeErr != nil {
		return nil, writeErr
	}
	return OK(map[string]any{"ok": true, "etag": newETag}), nil
}

func (s *Server) handleFilesBatch(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	body, err := c.JSON(false)
	if err != nil {
		return nil, err
	}
	readResults := []map[string]any{}
	writeResults := []map[string]any{}
	if reads, ok := bodyList(body, "reads"); ok {
		for _, raw := range reads {
			path := ""
			if entry, ok := raw.(map[string]any); ok {
				path = bodyString(entry, "path")
			}
			if path == "" {
				readResults = append(readResults, batchError(path, "invalid_request", "path is required"))
				continue
			}
			absPath, pathErr := c.State.SafeProjectFilePath(projectID, path)
			if pathErr != nil {
				apiErr := apierr.From(pathErr)
				readResults = append(readResults, batchError(path, apiErr.Code, apiErr.Message))
				continue
			}
			info, statErr := os.Stat(absPath)
			if statErr != nil || info.IsDir() {
				readResults = append(readResults, batchError(path, "not_found", "File not found: "+path))
				continue
			}
			content, readErr := os.ReadFile(absPath)
			if readErr != nil {
				readResults = append(readResults, batchError(path, "read_failed", readErr.Error()))
				continue
			}
			text := string(content)
			readResults = append(readResults, map[string]any{"path": path, "ok": true, "text": text, "etag": sha256Text(text)})
		}
	}
	if writes, ok := bodyList(body, "writes"); ok {
		for _, raw := range writes {
			path := ""
			var text any
			etag := ""
			if entry, ok := raw.(map[string]any); ok {
				path = bodyString(entry, "path")
				text = entry["text"]
				etag, _ = entry["etag"].(string)
			}
			textStr, textOK := text.(string)
			if path == "" || !textOK {
				writeResults = append(writeResults, batchError(path, "invalid_request", "path and text are required"))
				continue
			}
			newETag, writeErr := writeProjectFile(c, projectID, path, textStr, etag)
			if writeErr != nil {
				writeResults = append(writeResults, batchError(path, writeErr.Code, writeErr.Message))
				continue
			}
			writeResults = append(writeResults, map[string]any{"path": path, "ok": true, "etag": newETag})
		}
	}
	return OK(map[string]any{"reads": readResults, "writes": writeResults}), nil
}

func batchError(path, code, message string) map[string]any {
	return map[string]any{
		"path":  path,
		"ok":    false,
		"error": map[string]any{"code": code, "message": message},
	}
}

func (s *Server) handleFilesLint(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	paths, ok := bodyList(body, "paths")
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "paths is required and must be an array.")
	}
	diagnostics := []map[string]any{}
	for _, raw := range paths {
		relPath := strings.TrimSpace(asString(raw))
		if relPath == "" {
			continue
		}
		absPath, pathErr := c.State.SafeProjectFilePath(projectID, relPath)
		if pathErr != nil {
			return nil, pathErr
		}
		if _, statErr := os.Stat(absPath); statErr != nil {
			diagnostics = append(diagnostics, map[string]any{
				"path":     relPath,
				"line":     1,
				"col":      1,
				"severity": "error",
				"code":     "file_not_found",
				"message":  "File not found",
			})
		}
	}
	return OK(map[string]any{"diagnostics": diagnostics}), nil
}

func (s *Server) handleFilesFormat(c *Context) (*Response, error) {
	if _, err := c.JSON(true); err != nil {
		return nil, err
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleFilesSearch(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	query := bodyString(body, "q")
	if query == "" {
		return nil, apierr.BadRequest("invalid_request", "q is required.")
	}
	caseSensitive := bodyBool(body, "case_sensitive")
	useRegex := bodyBool(body, "regex")
	st := c.State
	root, err := st.EnsureProjectPath(projectID)
	if err != nil {
		return nil, err
	}
	targets := []string{}
	if paths, ok := bodyList(body, "paths"); ok && len(paths) > 0 {
		for _, raw := range paths {
			rel := strings.TrimSpace(asString(raw))
			if rel == "" {
				continue
			}
			target, pathErr := st.SafeProjectFilePath(projectID, rel)
			if pathErr != nil {
				return nil, pathErr
			}
			targets = append(targets, collectFiles(target)...)
		}
	} else {
		targets = collectFiles(root)
	}
	var pattern *regexp.Regexp
	if useRegex {
		expr := query
		if !caseSensitive {
			expr = "(?i)" + expr
		}
		compiled, compileErr := regexp.Compile(expr)
		if compileErr != nil {
			return nil, apierr.BadRequest("invalid_request", "q is not a valid regular expression: "+compileErr.Error())
		}
		pattern = compiled
	}
	needle := query
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}
	matches := []map[string]any{}
	for _, path := range targets {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		for idx, line := range strings.Split(string(content), "\n") {
			line = strings.TrimRight(line, "\r")
			found := false
			if pattern != nil {
				found = pattern.MatchString(line)
			} else if caseSensitive {
				found = strings.Contains(line, needle)
			} else {
				found = strings.Contains(strings.ToLower(line), needle)
			}
			if !found {
				continue
			}
			preview := line
			if len(preview) > searchPreviewCap {
				preview = preview[:searchPreviewCap]
			}
			matches = append(matches, map[string]any{"path": rel, "line": idx + 1, "preview": preview})
			if len(matches) >= searchMatchCap {
				return OK(map[string]any{"matches": matches}), nil
			}
		}
	}
	return OK(map[string]any{"matches": matches}), nil
}

func collectFiles(root string) []string {
	var files []string
	info, err := os.Stat(root)
	if err != nil {
		return files
	}
	if !info.IsDir() {
		return []string{root}
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}
