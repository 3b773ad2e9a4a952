package api

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) handleProjectArtifactsList(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	typeFilter := lower(c.QueryFirst("type", ""))
	items := []state.Artifact{}
	for _, artifactID := range st.ProjectArtifacts[projectID] {
		artifact, ok := st.Artifacts[artifactID]
		if !ok {
			continue
		}
		if typeFilter != "" && typeFilter != lower(artifact.Type) {
			continue
		}
		items = append(items, artifact.View())
	}
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func zipInto(path, projectRoot string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	for _, file := range files {
		rel, relErr := filepath.Rel(projectRoot, file)
		if relErr != nil {
			continue
		}
		src, openErr := os.Open(file)
		if openErr != nil {
			continue
		}
		dst, createErr := zw.Create(filepath.ToSlash(rel))
		if createErr != nil {
			src.Close()
			zw.Close()
			return createErr
		}
		if _, copyErr := io.Copy(dst, src); copyErr != nil {
			src.Close()
			zw.Close()
			return copyErr
		}
		src.Close()
	}
	return zw.Close()
}

// handleProjectArtifactsCreate runs unlocked; zip assembly over a large
// workspace must not stall the rest of the API. The store is locked
// around the path lookups and again around the record insert.
func (s *Server) handleProjectArtifactsCreate(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	artifactType := bodyString(body, "type")
	if artifactType == "" {
		return nil, apierr.BadRequest("invalid_request", "type is required.")
	}

	st := c.State
	st.Mu.Lock()
	_, err = st.EnsureProject(projectID)
	var projectRoot string
	if err == nil {
		projectRoot, err = st.EnsureProjectPath(projectID)
	}
	var requested []string
	hasPaths := false
	if err == nil {
		if paths, ok := bodyList(body, "paths"); ok && len(paths) > 0 {
			hasPaths = true
			for _, raw := range paths {
				rel := asString(raw)
				if rel == "" {
					continue
				}
				target, pathErr := st.SafeProjectFilePath(projectID, rel)
				if pathErr != nil {
					err = pathErr
					break
				}
				requested = append(requested, target)
			}
		}
	}
	st.Mu.Unlock()
	if err != nil {
		return nil, err
	}

	artifactID := state.NewID("artifact")
	artifactsDir := filepath.Join(st.Config().WorkspaceDir, "_artifacts")
	if mkErr := os.MkdirAll(artifactsDir, 0o755); mkErr != nil {
		return nil, apierr.Internal("artifact_failed", mkErr.Error())
	}
	var filePath string
	var sizeBytes int64
	if artifactType == "zip" {
		filePath = filepath.Join(artifactsDir, artifactID+".zip")
		var files []string
		if hasPaths {
			for _, target := range requested {
				if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
					files = append(files, target)
				}
			}
		} else {
			files = collectFiles(projectRoot)
		}
		if zipErr := zipInto(filePath, projectRoot, files); zipErr != nil {
			return nil, apierr.Internal("artifact_failed", zipErr.Error())
		}
		if info, statErr := os.Stat(filePath); statErr == nil {
			sizeBytes = info.Size()
		}
	} else {
		filePath = filepath.Join(artifactsDir, artifactID+".bin")
		payload, _ := json.Marshal(map[string]any{
			"artifact_id": artifactID,
			"project_id":  projectID,
			"type":        artifactType,
			"label":       body["label"],
		})
		if writeErr := os.WriteFile(filePath, payload, 0o644); writeErr != nil {
			return nil, apierr.Internal("artifact_failed", writeErr.Error())
		}
		sizeBytes = int64(len(payload))
	}
	artifact := &state.Artifact{
		ID:          artifactID,
		ProjectID:   projectID,
		Type:        artifactType,
		Label:       bodyString(body, "label"),
		SizeBytes:   sizeBytes,
		DownloadURL: st.Config().BasePath + "/artifacts/" + artifactID,
		CreatedAt:   state.NowISO(),
		FilePath:    filePath,
	}
	st.Mu.Lock()
	st.Artifacts[artifactID] = artifact
	st.ProjectArtifacts[projectID] = append(st.ProjectArtifacts[projectID], artifactID)
	st.Mu.Unlock()
	return OK(map[string]any{"artifact_id": artifactID, "download_url": artifact.DownloadURL}), nil
}

func (s *Server) handleArtifactsGet(c *Context) (*Response, error) {
	artifactID := c.Param("artifact_id")
	artifact, ok := c.State.Artifacts[artifactID]
	if !ok {
		return nil, apierr.NotFound("artifact_not_found", "Artifact not found: "+artifactID)
	}
	return OK(map[string]any{"artifact": artifact.View()}), nil
}
