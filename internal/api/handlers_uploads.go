package api

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *Server) handleUploadsCreate(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"filename", "content_type", "size_bytes"} {
		if _, ok := body[key]; !ok {
			return nil, apierr.BadRequest("invalid_request", key+" is required.")
		}
	}
	st := c.State
	upload := &state.Upload{
		UploadID:    state.NewID("upload"),
		FileID:      state.NewID("file"),
		Filename:    bodyString(body, "filename"),
		ContentType: bodyString(body, "content_type"),
		SizeBytes:   int64(bodyInt(body, "size_bytes", 0)),
		CreatedAt:   state.NowISO(),
	}
	st.Uploads[upload.UploadID] = upload
	st.FileMeta[upload.FileID] = &state.FileMeta{
		ID:          upload.FileID,
		Filename:    upload.Filename,
		SizeBytes:   upload.SizeBytes,
		ContentType: upload.ContentType,
		CreatedAt:   upload.CreatedAt,
	}
	return OK(map[string]any{
		"upload_id": upload.UploadID,
		"method":    "PUT",
		"url":       st.Config().BasePath + "/uploads/" + upload.UploadID,
		"headers":   map[string]any{},
		"file_id":   upload.FileID,
	}), nil
}

func (s *Server) handleUploadsWrite(c *Context) (*Response, error) {
	uploadID := c.Param("upload_id")
	st := c.State
	upload, ok := st.Uploads[uploadID]
	if !ok {
		return nil, apierr.NotFound("upload_not_found", "Upload not found: "+uploadID)
	}
	uploadsDir := filepath.Join(st.Config().WorkspaceDir, "_uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, apierr.Internal("upload_failed", err.Error())
	}
	safeName := unsafeFilenameRe.ReplaceAllString(upload.Filename, "_")
	filePath := filepath.Join(uploadsDir, upload.FileID+"_"+safeName)
	if err := os.WriteFile(filePath, c.Body, 0o644); err != nil {
		return nil, apierr.Internal("upload_failed", err.Error())
	}
	upload.Completed = true
	upload.StoredPath = filePath
	if meta, ok := st.FileMeta[upload.FileID]; ok {
		meta.SizeBytes = int64(len(c.Body))
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleFilesMetaGet(c *Context) (*Response, error) {
	fileID := c.Param("file_id")
	meta, ok := c.State.FileMeta[fileID]
	if !ok {
		return nil, apierr.NotFound("file_not_found", "File not found: "+fileID)
	}
	return OK(map[string]any{"file": meta}), nil
}
