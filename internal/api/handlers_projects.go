package api

import (
	"os"
	"path/filepath"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) handleProjectsList(c *Context) (*Response, error) {
	q := lower(c.QueryFirst("q", ""))
	status := lower(c.QueryFirst("status", ""))
	environment := lower(c.QueryFirst("environment", ""))
	st := c.State
	filtered := []*state.Project{}
	projects := sortedValues(st.Projects, func(p *state.Project) string { return p.CreatedAt + p.ID })
	for _, project := range projects {
		if q != "" && !contains(lower(project.Name), q) {
			continue
		}
		if status != "" && status != lower(project.Status) {
			continue
		}
		if environment != "" && environment != lower(project.Environment) {
			continue
		}
		filtered = append(filtered, project)
	}
	page, next := Paginate(c, filtered)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProjectsCreate(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	name := bodyString(body, "name")
	if name == "" {
		return nil, apierr.BadRequest("invalid_request", "name is required.")
	}
	st := c.State
	projectID := state.NewID("proj")
	now := state.NowISO()
	project := &state.Project{
		ID:          projectID,
		Name:        name,
		Description: bodyString(body, "description"),
		Status:      bodyStringDefault(body, "status", "active"),
		Environment: bodyStringDefault(body, "environment", "dev"),
		Repo:        bodyMap(body, "repo"),
		Stats:       state.ProjectStats{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	projectDir := filepath.Join(st.Config().WorkspaceDir, state.Slugify(name)+"-"+projectID[len(projectID)-8:])
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, apierr.Internal("workspace_error", err.Error())
	}
	st.Projects[projectID] = project
	st.ProjectPaths[projectID] = projectDir
	st.ProjectSessions[projectID] = []string{}
	st.ProjectDiffs[projectID] = []string{}
	st.ProjectDeployments[projectID] = []string{}
	st.ProjectWorkflows[projectID] = []string{}
	st.ProjectArtifacts[projectID] = []string{}
	st.RecordAudit(c.ActorID(), "project.created", map[string]any{"project_id": projectID}, projectID)
	return OK(map[string]any{"project": project}), nil
}

func (s *Server) handleProjectsGet(c *Context) (*Response, error) {
	project, err := c.State.EnsureProject(c.Param("project_id"))
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"project": project}), nil
}

func (s *Server) handleProjectsPatch(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	project, err := c.State.EnsureProject(projectID)
	if err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for key, value := range body {
		switch key {
		case "name":
			project.Name = asString(value)
		case "description":
			project.Description = asString(value)
		case "environment":
			project.Environment = asString(value)
		case "status":
			project.Status = asString(value)
		case "repo":
			if repo, ok := value.(map[string]any); ok {
				project.Repo = repo
			}
		}
	}
	project.UpdatedAt = state.NowISO()
	c.State.RecordAudit(c.ActorID(), "project.updated", map[string]any{"project_id": projectID, "changes": body}, projectID)
	return OK(map[string]any{"ok": true}), nil
}

// Project deletion cascades to sessions only. Runs, diffs, deployments,
// workflows, and artifacts stay addressable by their own ids.
func (s *Server) handleProjectsDelete(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	delete(st.Projects, projectID)
	delete(st.ProjectPaths, projectID)
	for _, sid := range st.ProjectSessions[projectID] {
		delete(st.Sessions, sid)
	}
	delete(st.ProjectSessions, projectID)
	delete(st.ProjectDiffs, projectID)
	delete(st.ProjectDeployments, projectID)
	delete(st.ProjectWorkflows, projectID)
	delete(st.ProjectArtifacts, projectID)
	st.RecordAudit(c.ActorID(), "project.deleted", map[string]any{"project_id": projectID}, projectID)
	return OK(map[string]any{"ok": true}), nil
}
