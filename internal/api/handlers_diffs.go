package api

import (
	"context"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/diffpatch"
	"github.com/forgestack/devplane/internal/gitcli"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) ensureDiff(c *Context, diffID string) (*state.Diff, error) {
	diff, ok := c.State.Diffs[diffID]
	if !ok {
		return nil, apierr.NotFound("diff_not_found", "Diff not found: "+diffID)
	}
	return diff, nil
}

func (s *Server) handleProjectDiffsList(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	statusFilter := lower(c.QueryFirst("status", ""))
	items := []state.Diff{}
	for _, diffID := range st.ProjectDiffs[projectID] {
		diff, ok := st.Diffs[diffID]
		if !ok {
			continue
		}
		if statusFilter != "" && statusFilter != lower(diff.Status) {
			continue
		}
		items = append(items, diff.View())
	}
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProjectDiffsCreate(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	title := bodyString(body, "title")
	patch := asString(body["patch"])
	if title == "" || patch == "" {
		return nil, apierr.BadRequest("invalid_request", "title and patch are required.")
	}
	added, removed := diffpatch.Stats(patch)
	diff := &state.Diff{
		ID:        state.NewID("diff"),
		ProjectID: projectID,
		Title:     title,
		Status:    "open",
		Stats:     state.DiffStats{Added: added, Removed: removed},
		Files:     diffpatch.SplitFiles(patch),
		BaseRev:   bodyStringDefault(body, "base_rev", "HEAD"),
		CreatedAt: state.NowISO(),
		RawPatch:  patch,
		Comments:  []state.DiffComment{},
	}
	st.Diffs[diff.ID] = diff
	st.ProjectDiffs[projectID] = append(st.ProjectDiffs[projectID], diff.ID)
	return OK(map[string]any{"diff_id": diff.ID}), nil
}

func (s *Server) handleDiffsGet(c *Context) (*Response, error) {
	diff, err := s.ensureDiff(c, c.Param("diff_id"))
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"diff": diff.View()}), nil
}

// handleDiffsApply runs unlocked: the patch and project root are read
// under a short lock, git works with the lock released, and the status
// transition re-checks the diff is still open before writing.
func (s *Server) handleDiffsApply(c *Context) (*Response, error) {
	body, err := c.JSON(false)
	if err != nil {
		return nil, err
	}
	commitMessage := bodyString(body, "commit_message")

	st := c.State
	st.Mu.Lock()
	diff, err := s.ensureDiff(c, c.Param("diff_id"))
	if err == nil && diff.Status != "open" {
		err = apierr.BadRequest("invalid_state", "Only open diffs can be applied.")
	}
	var projectRoot, rawPatch string
	if err == nil {
		rawPatch = diff.RawPatch
		projectRoot, err = st.EnsureProjectPath(diff.ProjectID)
	}
	st.Mu.Unlock()
	if err != nil {
		return nil, err
	}

	git := gitcli.New(projectRoot)
	ctx := context.Background()
	ok := git.ApplyPatch(ctx, rawPatch) == nil
	commitHash := ""
	if ok && commitMessage != "" {
		if hash, commitErr := git.Commit(ctx, commitMessage, nil); commitErr == nil {
			commitHash = hash
		}
	}

	if ok {
		st.Mu.Lock()
		if diff, stillErr := s.ensureDiff(c, c.Param("diff_id")); stillErr == nil && diff.Status == "open" {
			diff.Status = "applied"
		}
		st.Mu.Unlock()
	}
	return OK(map[string]any{"ok": ok, "commit": commitHash}), nil
}

func (s *Server) handleDiffsDiscard(c *Context) (*Response, error) {
	diff, err := s.ensureDiff(c, c.Param("diff_id"))
	if err != nil {
		return nil, err
	}
	diff.Status = "discarded"
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleDiffsComment(c *Context) (*Response, error) {
	diff, err := s.ensureDiff(c, c.Param("diff_id"))
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"path", "line", "comment"} {
		if _, ok := body[key]; !ok {
			return nil, apierr.BadRequest("invalid_request", key+" is required.")
		}
	}
	diff.Comments = append(diff.Comments, state.DiffComment{
		Path:    bodyString(body, "path"),
		Line:    bodyInt(body, "line", 0),
		Comment: bodyString(body, "comment"),
		TS:      state.NowISO(),
		Author:  c.ActorID(),
	})
	return OK(map[string]any{"ok": true}), nil
}
