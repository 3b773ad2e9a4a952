package api

func (s *Server) registerRoutes() {
	add := s.router.Add
	add("GET", "/", s.handleRoot, NoAuth())
	add("GET", "/health", s.handleHealth, NoAuth())
	add("GET", "/capabilities", s.handleCapabilities, NoAuth())
	add("GET", "/server/stats", s.handleServerStats, NoAuth())
	add("POST", "/auth/login", s.handleAuthLogin, NoAuth())
	add("POST", "/auth/refresh", s.handleAuthRefresh, NoAuth())
	add("POST", "/auth/logout", s.handleAuthLogout)
	add("GET", "/me", s.handleMe)
	add("GET", "/providers", s.handleProvidersList)
	add("POST", "/providers/scan", s.handleProvidersScan)
	add("GET", "/providers/{provider_id}/models", s.handleProviderModels)
	add("POST", "/providers/{provider_id}/test", s.handleProviderTest)
	add("GET", "/settings", s.handleSettingsGet)
	add("PUT", "/settings", s.handleSettingsPut)
	add("GET", "/settings/audit", s.handleSettingsAudit)
	add("GET", "/projects", s.handleProjectsList)
	add("POST", "/projects", s.handleProjectsCreate)
	add("GET", "/projects/{project_id}", s.handleProjectsGet)
	add("PATCH", "/projects/{project_id}", s.handleProjectsPatch)
	add("DELETE", "/projects/{project_id}", s.handleProjectsDelete)
	add("GET", "/projects/{project_id}/sessions", s.handleProjectSessionsList)
	add("POST", "/projects/{project_id}/sessions", s.handleProjectSessionsCreate)
	add("GET", "/sessions/{session_id}", s.handleSessionsGet)
	add("PATCH", "/sessions/{session_id}", s.handleSessionsPatch)
	add("GET", "/sessions/{session_id}/messages", s.handleSessionMessagesList)
	add("POST", "/sessions/{session_id}/messages", s.handleSessionMessagesCreate)
	add("POST", "/sessions/{session_id}/runs", s.handleSessionRunsCreate)
	add("GET", "/runs/{run_id}", s.handleRunsGet)
	add("POST", "/runs/{run_id}/cancel", s.handleRunsCancel)
	add("GET", "/runs/{run_id}/events", s.handleRunsEvents)
	add("GET", "/tools", s.handleToolsList)
	add("POST", "/tools", s.handleToolsCreate)
	add("DELETE", "/tools/{tool_id}", s.handleToolsDelete)
	add("POST", "/tools/{tool_id}/invoke", s.handleToolsInvoke, Unlocked())
	add("GET", "/projects/{project_id}/files/tree", s.handleFilesTree)
	add("GET", "/projects/{project_id}/files/content", s.handleFilesGetContent)
	add("PUT", "/projects/{project_id}/files/content", s.handleFilesPutContent)
	add("POST", "/projects/{project_id}/files/batch", s.handleFilesBatch)
	add("POST", "/projects/{project_id}/lint", s.handleFilesLint)
	add("POST", "/projects/{project_id}/format", s.handleFilesFormat)
	add("POST", "/projects/{project_id}/search", s.handleFilesSearch)
	add("GET", "/projects/{project_id}/diffs", s.handleProjectDiffsList)
	add("POST", "/projects/{project_id}/diffs", s.handleProjectDiffsCreate)
	add("GET", "/diffs/{diff_id}", s.handleDiffsGet)
	add("POST", "/diffs/{diff_id}/apply", s.handleDiffsApply, Unlocked())
	add("POST", "/diffs/{diff_id}/discard", s.handleDiffsDiscard)
	add("POST", "/diffs/{diff_id}/comment", s.handleDiffsComment)
	add("GET", "/projects/{project_id}/repo/status", s.handleRepoStatus, Unlocked())
	add("POST", "/projects/{project_id}/repo/checkout", s.handleRepoCheckout, Unlocked())
	add("POST", "/projects/{project_id}/repo/pull", s.handleRepoPull, Unlocked())
	add("POST", "/projects/{project_id}/repo/commit", s.handleRepoCommit, Unlocked())
	add("POST", "/projects/{project_id}/terminal/sessions", s.handleTerminalCreate, Unlocked())
	add("POST", "/projects/{project_id}/terminal/{terminal_id}/kill", s.handleTerminalKill, Unlocked())
	add("GET", "/projects/{project_id}/deployments", s.handleProjectDeploymentsList)
	add("POST", "/projects/{project_id}/deployments", s.handleProjectDeploymentsCreate)
	add("GET", "/deployments/{deployment_id}", s.handleDeploymentsGet)
	add("GET", "/deployments/{deployment_id}/logs", s.handleDeploymentsLogs)
	add("POST", "/deployments/{deployment_id}/cancel", s.handleDeploymentsCancel)
	add("GET", "/projects/{project_id}/telemetry/streams", s.handleTelemetryStreamsList)
	add("POST", "/telemetry/query", s.handleTelemetryQuery)
	add("POST", "/telemetry/alerts", s.handleTelemetryAlertsCreate)
	add("GET", "/projects/{project_id}/workflows", s.handleProjectWorkflowsList)
	add("POST", "/projects/{project_id}/workflows", s.handleProjectWorkflowsCreate)
	add("GET", "/workflows/{workflow_id}", s.handleWorkflowsGet)
	add("PUT", "/workflows/{workflow_id}", s.handleWorkflowsPut)
	add("POST", "/workflows/{workflow_id}/runs", s.handleWorkflowsRun)
	add("GET", "/projects/{project_id}/artifacts", s.handleProjectArtifactsList)
	add("POST", "/projects/{project_id}/artifacts", s.handleProjectArtifactsCreate, Unlocked())
	add("GET", "/artifacts/{artifact_id}", s.handleArtifactsGet)
	add("POST", "/uploads", s.handleUploadsCreate)
	add("PUT", "/uploads/{upload_id}", s.handleUploadsWrite)
	add("POST", "/uploads/{upload_id}", s.handleUploadsWrite)
	add("GET", "/files/{file_id}", s.handleFilesMetaGet)
	add("GET", "/notifications", s.handleNotificationsList)
	add("POST", "/notifications/ack", s.handleNotificationsAck)
	add("GET", "/audit", s.handleAuditList)
	add("GET", "/admin/users", s.handleAdminUsersList)
	add("POST", "/admin/users", s.handleAdminUsersCreate)
	add("PATCH", "/admin/users/{user_id}", s.handleAdminUsersPatch)
	add("DELETE", "/admin/users/{user_id}", s.handleAdminUsersDelete)
	add("GET", "/stream/sessions/{session_id}", s.handleStreamSession)
}
