package state

import "github.com/forgestack/devplane/internal/bucket"

// snapshot is the persisted shape of the store. Field keys match what
// earlier deployments wrote, so existing databases hydrate cleanly.
type snapshot struct {
	Settings            map[string]any               `json:"settings"`
	Projects            map[string]*Project          `json:"projects"`
	ProjectPaths        map[string]string            `json:"project_paths"`
	ProjectSessions     map[string][]string          `json:"project_sessions"`
	ProjectDiffs        map[string][]string          `json:"project_diffs"`
	ProjectDeployments  map[string][]string          `json:"project_deployments"`
	ProjectWorkflows    map[string][]string          `json:"project_workflows"`
	ProjectArtifacts    map[string][]string          `json:"project_artifacts"`
	ProjectTelemetry    map[string][]TelemetryStream `json:"project_telemetry_streams"`
	Sessions            map[string]*Session          `json:"sessions"`
	SessionMessages     map[string][]string          `json:"session_messages"`
	Messages            map[string]*Message          `json:"messages"`
	SessionRuns         map[string][]string          `json:"session_runs"`
	Runs                map[string]*Run              `json:"runs"`
	RunEvents           map[string][]RunEvent        `json:"run_events"`
	Diffs               map[string]*Diff             `json:"diffs"`
	Deployments         map[string]*Deployment       `json:"deployments"`
	DeploymentLogs      map[string][]LogLine         `json:"deployment_logs"`
	Workflows           map[string]*Workflow         `json:"workflows"`
	Artifacts           map[string]*Artifact         `json:"artifacts"`
	Uploads             map[string]*Upload           `json:"uploads"`
	FileMeta            map[string]*FileMeta         `json:"file_meta"`
	Notifications       map[string]*Notification     `json:"notifications"`
	Alerts              map[string]*Alert            `json:"alerts"`
	DynamicTools        map[string]*DynamicTool      `json:"dynamic_tools"`
	Users               map[string]*User             `json:"users"`
	UserPasswords       map[string]string            `json:"user_passwords"`
	AccessTokens        map[string]*TokenRecord      `json:"access_tokens"`
	RefreshTokens       map[string]*TokenRecord      `json:"refresh_tokens"`
	AuditEvents         []*AuditEvent                `json:"audit_events"`
	SettingsAuditEvents []*SettingsAuditEvent        `json:"settings_audit_events"`
}

func (s *State) buildSnapshot() *snapshot {
	return &snapshot{
		Settings:            s.Settings,
		Projects:            s.Projects,
		ProjectPaths:        s.ProjectPaths,
		ProjectSessions:     s.ProjectSessions,
		ProjectDiffs:        s.ProjectDiffs,
		ProjectDeployments:  s.ProjectDeployments,
		ProjectWorkflows:    s.ProjectWorkflows,
		ProjectArtifacts:    s.ProjectArtifacts,
		ProjectTelemetry:    s.ProjectTelemetry,
		Sessions:            s.Sessions,
		SessionMessages:     s.SessionMessages,
		Messages:            s.Messages,
		SessionRuns:         s.SessionRuns,
		Runs:                s.Runs,
		RunEvents:           s.RunEvents,
		Diffs:               s.Diffs,
		Deployments:         s.Deployments,
		DeploymentLogs:      s.DeploymentLogs,
		Workflows:           s.Workflows,
		Artifacts:           s.Artifacts,
		Uploads:             s.Uploads,
		FileMeta:            s.FileMeta,
		Notifications:       s.Notifications,
		Alerts:              s.Alerts,
		DynamicTools:        s.DynamicTools,
		Users:               s.Users,
		UserPasswords:       s.UserPasswords,
		AccessTokens:        s.AccessTokens,
		RefreshTokens:       s.RefreshTokens,
		AuditEvents:         s.AuditEvents,
		SettingsAuditEvents: s.SettingsAuditEvents,
	}
}

func (s *State) restoreSnapshot(snap *snapshot) {
	if snap.Settings != nil {
		s.Settings = snap.Settings
	}
	if snap.Projects != nil {
		s.Projects = snap.Projects
	}
	if snap.ProjectPaths != nil {
		s.ProjectPaths = snap.ProjectPaths
	}
	if snap.ProjectSessions != nil {
		s.ProjectSessions = snap.ProjectSessions
	}
	if snap.ProjectDiffs != nil {
		s.ProjectDiffs = snap.ProjectDiffs
	}
	if snap.ProjectDeployments != nil {
		s.ProjectDeployments = snap.ProjectDeployments
	}
	if snap.ProjectWorkflows != nil {
		s.ProjectWorkflows = snap.ProjectWorkflows
	}
	if snap.ProjectArtifacts != nil {
		s.ProjectArtifacts = snap.ProjectArtifacts
	}
	if snap.ProjectTelemetry != nil {
		s.ProjectTelemetry = snap.ProjectTelemetry
	}
	if snap.Sessions != nil {
		s.Sessions = snap.Sessions
	}
	if snap.SessionMessages != nil {
		s.SessionMessages = snap.SessionMessages
	}
	if snap.Messages != nil {
		s.Messages = snap.Messages
	}
	if snap.SessionRuns != nil {
		s.SessionRuns = snap.SessionRuns
	}
	if snap.Runs != nil {
		s.Runs = snap.Runs
	}
	if snap.RunEvents != nil {
		s.RunEvents = snap.RunEvents
	}
	if snap.Diffs != nil {
		s.Diffs = snap.Diffs
	}
	if snap.Deployments != nil {
		s.Deployments = snap.Deployments
	}
	if snap.DeploymentLogs != nil {
		s.DeploymentLogs = snap.DeploymentLogs
	}
	if snap.Workflows != nil {
		s.Workflows = snap.Workflows
	}
	if snap.Artifacts != nil {
		s.Artifacts = snap.Artifacts
	}
	if snap.Uploads != nil {
		s.Uploads = snap.Uploads
	}
	if snap.FileMeta != nil {
		s.FileMeta = snap.FileMeta
	}
	if snap.Notifications != nil {
		s.Notifications = snap.Notifications
	}
	if snap.Alerts != nil {
		s.Alerts = snap.Alerts
	}
	if snap.DynamicTools != nil {
		s.DynamicTools = snap.DynamicTools
	}
	if snap.Users != nil {
		s.Users = snap.Users
	}
	if snap.UserPasswords != nil {
		s.UserPasswords = snap.UserPasswords
	}
	if snap.AccessTokens != nil {
		s.AccessTokens = snap.AccessTokens
	}
	if snap.RefreshTokens != nil {
		s.RefreshTokens = snap.RefreshTokens
	}
	if snap.AuditEvents != nil {
		s.AuditEvents = snap.AuditEvents
	}
	if snap.SettingsAuditEvents != nil {
		s.SettingsAuditEvents = snap.SettingsAuditEvents
	}
}

// PersistLocked writes the current state snapshot to the database.
// Caller holds the lock. Persistence failures are logged, never fatal.
func (s *State) PersistLocked() {
	if s.db == nil {
		return
	}
	if err := bucket.Set(s.db, stateBucket, stateKey, s.buildSnapshot()); err != nil {
		s.log.Error().Err(err).Msg("state persist failed")
	}
}

// Persist takes the lock and writes the snapshot.
func (s *State) Persist() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.PersistLocked()
}

func (s *State) hydrate() error {
	if s.db == nil {
		return nil
	}
	var snap snapshot
	found, err := bucket.Get(s.db, stateBucket, stateKey, &snap)
	if err != nil {
		return err
	}
	if !found {
		s.PersistLocked()
		return nil
	}
	s.restoreSnapshot(&snap)
	if len(s.Users) == 0 {
		if err := s.seedAdmin(); err != nil {
			return err
		}
	}
	s.PersistLocked()
	return nil
}
