// Package state owns the server's resource store: every entity map, the
// coarse lock guarding them, snapshot persistence, and the background
// run and deployment executors.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/bucket"
	"github.com/forgestack/devplane/internal/config"
	"github.com/forgestack/devplane/internal/llm"
	"github.com/forgestack/devplane/internal/metrics"
	"github.com/forgestack/devplane/internal/tools"
)

const (
	stateBucket = "api_server"
	stateKey    = "state"
)

// State is the whole-server resource store. A single coarse mutex
// guards every map; request dispatch holds it for the duration of a
// handler, background workers take it for their own critical sections.
type State struct {
	Mu sync.Mutex

	cfg     *config.Config
	db      bucket.Backend
	chat    llm.ChatClient
	metrics *metrics.Metrics
	log     zerolog.Logger

	startedAt time.Time

	Settings            map[string]any
	Projects            map[string]*Project
	ProjectPaths        map[string]string
	ProjectSessions     map[string][]string
	ProjectDiffs        map[string][]string
	ProjectDeployments  map[string][]string
	ProjectWorkflows    map[string][]string
	ProjectArtifacts    map[string][]string
	ProjectTelemetry    map[string][]TelemetryStream
	Sessions            map[string]*Session
	SessionMessages     map[string][]string
	Messages            map[string]*Message
	SessionRuns         map[string][]string
	Runs                map[string]*Run
	RunEvents           map[string][]RunEvent
	Diffs               map[string]*Diff
	Deployments         map[string]*Deployment
	DeploymentLogs      map[string][]LogLine
	Workflows           map[string]*Workflow
	Artifacts           map[string]*Artifact
	Uploads             map[string]*Upload
	FileMeta            map[string]*FileMeta
	Notifications       map[string]*Notification
	Alerts              map[string]*Alert
	DynamicTools        map[string]*DynamicTool
	Users               map[string]*User
	UserPasswords       map[string]string
	AccessTokens        map[string]*TokenRecord
	RefreshTokens       map[string]*TokenRecord
	AuditEvents         []*AuditEvent
	SettingsAuditEvents []*SettingsAuditEvent

	toolRuntimes map[string]*tools.Runtime
	terminals    map[string]*os.Process
}

// New builds an empty store, seeds the admin account, and hydrates any
// persisted snapshot from the configured database backend.
func New(cfg *config.Config, db bucket.Backend, chat llm.ChatClient, m *metrics.Metrics, log zerolog.Logger) (*State, error) {
	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace dir: %w", err)
	}
	s := &State{
		cfg:       cfg,
		db:        db,
		chat:      chat,
		metrics:   m,
		log:       log.With().Str("component", "state").Logger(),
		startedAt: time.Now(),

		Settings:            defaultSettings(),
		Projects:            map[string]*Project{},
		ProjectPaths:        map[string]string{},
		ProjectSessions:     map[string][]string{},
		ProjectDiffs:        map[string][]string{},
		ProjectDeployments:  map[string][]string{},
		ProjectWorkflows:    map[string][]string{},
		ProjectArtifacts:    map[string][]string{},
		ProjectTelemetry:    map[string][]TelemetryStream{},
		Sessions:            map[string]*Session{},
		SessionMessages:     map[string][]string{},
		Messages:            map[string]*Message{},
		SessionRuns:         map[string][]string{},
		Runs:                map[string]*Run{},
		RunEvents:           map[string][]RunEvent{},
		Diffs:               map[string]*Diff{},
		Deployments:         map[string]*Deployment{},
		DeploymentLogs:      map[string][]LogLine{},
		Workflows:           map[string]*Workflow{},
		Artifacts:           map[string]*Artifact{},
		Uploads:             map[string]*Upload{},
		FileMeta:            map[string]*FileMeta{},
		Notifications:       map[string]*Notification{},
		Alerts:              map[string]*Alert{},
		DynamicTools:        map[string]*DynamicTool{},
		Users:               map[string]*User{},
		UserPasswords:       map[string]string{},
		AccessTokens:        map[string]*TokenRecord{},
		RefreshTokens:       map[string]*TokenRecord{},
		AuditEvents:         []*AuditEvent{},
		SettingsAuditEvents: []*SettingsAuditEvent{},

		toolRuntimes: map[string]*tools.Runtime{},
		terminals:    map[string]*os.Process{},
	}
	if err := s.seedAdmin(); err != nil {
		return nil, err
	}
	if err := s.hydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the server configuration.
func (s *State) Config() *config.Config { return s.cfg }

// Chat returns the configured chat backend.
func (s *State) Chat() llm.ChatClient { return s.chat }

// Metrics returns the server metrics registry.
func (s *State) Metrics() *metrics.Metrics { return s.metrics }

// Uptime reports seconds since the store was built.
func (s *State) Uptime() int { return int(time.Since(s.startedAt).Seconds()) }

func defaultSettings() map[string]any {
	return map[string]any{
		"memory_limit_gb":     8,
		"telemetry_enabled":   true,
		"default_provider_id": "local",
		"default_model_id":    "gpt-4o-mini",
		"providers": []any{
			map[string]any{"provider_id": "openai", "enabled": true},
			map[string]any{"provider_id": "anthropic", "enabled": true},
			map[string]any{"provider_id": "ollama", "enabled": true},
			map[string]any{"provider_id": "local", "enabled": true},
			map[string]any{"provider_id": "custom", "enabled": true},
		},
		"ui": map[string]any{"theme": "neon_dark", "accent": "#00FF94"},
	}
}

// NowISO returns the current UTC time in ISO-8601 with second precision.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewID generates a short random identifier with the given prefix.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

var slugRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Slugify normalizes a value into a filesystem-safe slug.
func Slugify(value string) string {
	cleaned := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-"), "-")
	if cleaned == "" {
		return "project"
	}
	return cleaned
}

// adminUserID is stable across restarts so the admin stays resolvable
// after more users are created.
const adminUserID = "user_admin"

func (s *State) seedAdmin() error {
	hash, err := hashPassword(s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &User{
		ID:        adminUserID,
		Name:      s.cfg.AdminName,
		Email:     s.cfg.AdminEmail,
		Roles:     []string{"admin", "developer"},
		CreatedAt: NowISO(),
	}
	s.Users[admin.ID] = admin
	s.UserPasswords[admin.ID] = hash
	return nil
}

// EnsureProject resolves a project or returns a not-found error.
func (s *State) EnsureProject(id string) (*Project, error) {
	p, ok := s.Projects[id]
	if !ok {
		return nil, apierr.NotFound("project_not_found", "Project not found: "+id)
	}
	return p, nil
}

// EnsureSession resolves a session or returns a not-found error.
func (s *State) EnsureSession(id string) (*Session, error) {
	sess, ok := s.Sessions[id]
	if !ok {
		return nil, apierr.NotFound("session_not_found", "Session not found: "+id)
	}
	return sess, nil
}

// EnsureRun resolves a run or returns a not-found error.
func (s *State) EnsureRun(id string) (*Run, error) {
	r, ok := s.Runs[id]
	if !ok {
		return nil, apierr.NotFound("run_not_found", "Run not found: "+id)
	}
	return r, nil
}

// EnsureProjectPath resolves a project's workspace directory.
func (s *State) EnsureProjectPath(id string) (string, error) {
	if _, err := s.EnsureProject(id); err != nil {
		return "", err
	}
	path, ok := s.ProjectPaths[id]
	if !ok {
		return "", apierr.Internal("project_path_missing", "Project path not found for: "+id)
	}
	return path, nil
}

// SafeProjectFilePath joins a relative path under the project root,
// rejecting absolute paths and traversal.
func (s *State) SafeProjectFilePath(projectID, relPath string) (string, error) {
	root, err := s.EnsureProjectPath(projectID)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(relPath) {
		return "", apierr.BadRequest("invalid_path", "Absolute paths are not allowed.")
	}
	target := filepath.Join(root, filepath.Clean(relPath))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apierr.BadRequest("invalid_path", "Path escapes project root.")
	}
	return target, nil
}

// RuntimeForProject returns the tool runtime scoped to a project, or
// the workspace-wide runtime when projectID is empty.
func (s *State) RuntimeForProject(projectID string) (*tools.Runtime, error) {
	key := projectID
	if key == "" {
		key = "__workspace__"
	}
	if rt, ok := s.toolRuntimes[key]; ok {
		return rt, nil
	}
	root := s.cfg.WorkspaceDir
	if projectID != "" {
		var err error
		if root, err = s.EnsureProjectPath(projectID); err != nil {
			return nil, err
		}
	}
	rt := tools.NewRuntime(root, s.cfg.ToolDirList(), s.log)
	s.toolRuntimes[key] = rt
	return rt, nil
}

// RecordAudit appends an audit event and persists. Caller holds the lock.
func (s *State) RecordAudit(actorUserID, eventType string, data map[string]any, projectID string) {
	s.AuditEvents = append(s.AuditEvents, &AuditEvent{
		ID:          NewID("audit"),
		TS:          NowISO(),
		ActorUserID: actorUserID,
		ProjectID:   projectID,
		Type:        eventType,
		Data:        data,
	})
	s.PersistLocked()
}

// Notify creates a user-facing notification and persists. Caller holds
// the lock.
func (s *State) Notify(level, title, body string) {
	n := &Notification{
		ID:    NewID("notif"),
		TS:    NowISO(),
		Level: level,
		Title: title,
		Body:  body,
	}
	s.Notifications[n.ID] = n
	s.PersistLocked()
}

// DeepMerge merges updates into current, descending into nested objects.
func DeepMerge(current, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(current))
	for k, v := range current {
		merged[k] = v
	}
	for key, value := range updates {
		if sub, ok := value.(map[string]any); ok {
			if cur, ok := merged[key].(map[string]any); ok {
				merged[key] = DeepMerge(cur, sub)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

// CollectSettingsChanges walks updates against current and returns one
// change record per leaf path whose value differs.
func CollectSettingsChanges(current, updates any, prefix string) []map[string]any {
	var changes []map[string]any
	curMap, curOK := current.(map[string]any)
	updMap, updOK := updates.(map[string]any)
	if !curOK || !updOK {
		if !valuesEqual(current, updates) {
			path := prefix
			if path == "" {
				path = "/"
			}
			changes = append(changes, map[string]any{"path": path, "from": current, "to": updates})
		}
		return changes
	}
	for key, newValue := range updMap {
		path := prefix + "/" + key
		oldValue := curMap[key]
		_, oldIsMap := oldValue.(map[string]any)
		_, newIsMap := newValue.(map[string]any)
		if oldIsMap && newIsMap {
			changes = append(changes, CollectSettingsChanges(oldValue, newValue, path)...)
		} else if !valuesEqual(oldValue, newValue) {
			changes = append(changes, map[string]any{"path": path, "from": oldValue, "to": newValue})
		}
	}
	return changes
}

func valuesEqual(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}
