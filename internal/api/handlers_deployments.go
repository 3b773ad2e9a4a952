package api

import (
	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func (s *Server) ensureDeployment(c *Context, id string) (*state.Deployment, error) {
	dep, ok := c.State.Deployments[id]
	if !ok {
		return nil, apierr.NotFound("deployment_not_found", "Deployment not found: "+id)
	}
	return dep, nil
}

func (s *Server) handleProjectDeploymentsList(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	envFilter := lower(c.QueryFirst("env", ""))
	statusFilter := lower(c.QueryFirst("status", ""))
	items := []*state.Deployment{}
	for _, depID := range st.ProjectDeployments[projectID] {
		dep, ok := st.Deployments[depID]
		if !ok {
			continue
		}
		if envFilter != "" && envFilter != lower(dep.Env) {
			continue
		}
		if statusFilter != "" && statusFilter != lower(dep.Status) {
			continue
		}
		items = append(items, dep)
	}
	page, next := Paginate(c, items)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleProjectDeploymentsCreate(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	st := c.State
	if _, err := st.EnsureProject(projectID); err != nil {
		return nil, err
	}
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"env", "target", "strategy"} {
		if _, ok := body[key]; !ok {
			return nil, apierr.BadRequest("invalid_request", key+" is required.")
		}
	}
	dep := st.CreateDeployment(
		projectID,
		bodyString(body, "env"),
		bodyString(body, "target"),
		bodyStringDefault(body, "revision", "HEAD"),
		bodyString(body, "strategy"),
	)
	return OK(map[string]any{"deployment_id": dep.ID}), nil
}

func (s *Server) handleDeploymentsGet(c *Context) (*Response, error) {
	dep, err := s.ensureDeployment(c, c.Param("deployment_id"))
	if err != nil {
		return nil, err
	}
	return OK(map[string]any{"deployment": dep}), nil
}

func (s *Server) handleDeploymentsLogs(c *Context) (*Response, error) {
	deploymentID := c.Param("deployment_id")
	logs, ok := c.State.DeploymentLogs[deploymentID]
	if !ok {
		return nil, apierr.NotFound("deployment_not_found", "Deployment not found: "+deploymentID)
	}
	page, next := Paginate(c, logs)
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleDeploymentsCancel(c *Context) (*Response, error) {
	dep, err := s.ensureDeployment(c, c.Param("deployment_id"))
	if err != nil {
		return nil, err
	}
	c.State.CancelDeployment(dep)
	return OK(map[string]any{"ok": true}), nil
}
