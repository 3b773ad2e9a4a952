package api

import (
	"context"
	"strings"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/gitcli"
)

// projectGit resolves a project's git client. Repo routes run
// unlocked, so the store is only locked around the path lookup; the
// git subprocesses themselves never hold it.
func (s *Server) projectGit(c *Context, projectID string) (*gitcli.Client, error) {
	st := c.State
	st.Mu.Lock()
	root, err := st.EnsureProjectPath(projectID)
	st.Mu.Unlock()
	if err != nil {
		return nil, err
	}
	return gitcli.New(root), nil
}

func (s *Server) handleRepoStatus(c *Context) (*Response, error) {
	git, err := s.projectGit(c, c.Param("project_id"))
	if err != nil {
		return nil, err
	}
	status, statusErr := git.Status(context.Background())
	if statusErr != nil {
		return nil, apierr.BadRequest("repo_not_available", statusErr.Error())
	}
	return OK(status), nil
}

func (s *Server) handleRepoCheckout(c *Context) (*Response, error) {
	git, err := s.projectGit(c, c.Param("project_id"))
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	branch := bodyString(body, "branch")
	if branch == "" {
		return nil, apierr.BadRequest("invalid_request", "branch is required.")
	}
	if checkoutErr := git.Checkout(context.Background(), branch); checkoutErr != nil {
		return nil, apierr.BadRequest("git_checkout_failed", checkoutErr.Error())
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleRepoPull(c *Context) (*Response, error) {
	git, err := s.projectGit(c, c.Param("project_id"))
	if err != nil {
		return nil, err
	}
	if pullErr := git.Pull(context.Background()); pullErr != nil {
		return nil, apierr.BadRequest("git_pull_failed", pullErr.Error())
	}
	return OK(map[string]any{"ok": true}), nil
}

func (s *Server) handleRepoCommit(c *Context) (*Response, error) {
	git, err := s.projectGit(c, c.Param("project_id"))
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	message := bodyString(body, "message")
	if message == "" {
		return nil, apierr.BadRequest("invalid_request", "message is required.")
	}
	var paths []string
	if raw, ok := bodyList(body, "paths"); ok && len(raw) > 0 {
		paths = stringList(raw)
	}
	hash, commitErr := git.Commit(context.Background(), message, paths)
	if commitErr != nil {
		code := "git_commit_failed"
		if strings.Contains(commitErr.Error(), "git add failed") {
			code = "git_add_failed"
		}
		return nil, apierr.BadRequest(code, commitErr.Error())
	}
	return OK(map[string]any{"ok": true, "commit": hash}), nil
}
