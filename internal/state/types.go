package state

import (
	"github.com/forgestack/devplane/internal/diffpatch"
	"github.com/forgestack/devplane/internal/tools"
)

// ProjectStats is the denormalized activity counter block on a project.
type ProjectStats struct {
	Sessions int `json:"sessions"`
	Runs24h  int `json:"runs_24h"`
}

// Project is a workspace-backed unit of work.
type Project struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Environment string         `json:"environment"`
	LastCommit  string         `json:"last_commit"`
	Repo        map[string]any `json:"repo"`
	Stats       ProjectStats   `json:"stats"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// Session is a conversation scoped to a project.
type Session struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Title      string         `json:"title"`
	Status     string         `json:"status"`
	ProviderID string         `json:"provider_id"`
	ModelID    string         `json:"model_id"`
	Config     map[string]any `json:"config"`
	Memory     map[string]any `json:"memory"`
	Tags       []string       `json:"tags"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// Message is one turn in a session. Content is a list of typed parts
// (text, code, json, image, diff_ref, tool_call, tool_result).
type Message struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Role      string           `json:"role"`
	Content   []map[string]any `json:"content"`
	Meta      map[string]any   `json:"meta"`
	TS        string           `json:"ts"`
}

// Run statuses. Terminal statuses are sticky: once a run reaches one it
// never transitions again.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// Run is one background generation pass over a session.
type Run struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	Progress  float64        `json:"progress"`
	StartedAt string         `json:"started_at"`
	EndedAt   *string        `json:"ended_at"`
	Result    map[string]any `json:"result"`
	Usage     map[string]any `json:"usage"`
	Request   map[string]any `json:"_request,omitempty"`
}

// View returns the run without its internal request payload.
func (r *Run) View() Run {
	v := *r
	v.Request = nil
	return v
}

// RunEvent is an entry in a run's append-only event log. The shape
// varies by type: status carries status+progress, token carries
// message_id+text, error carries an error object.
type RunEvent = map[string]any

// DiffStats aggregates line counts across a diff's files.
type DiffStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// DiffComment is an inline review comment on a diff.
type DiffComment struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Comment string `json:"comment"`
	TS      string `json:"ts"`
	Author  string `json:"author"`
}

// Diff is a reviewable patch proposal against a project.
type Diff struct {
	ID        string                `json:"id"`
	ProjectID string                `json:"project_id"`
	Title     string                `json:"title"`
	Status    string                `json:"status"`
	Stats     DiffStats             `json:"stats"`
	Files     []diffpatch.FilePatch `json:"files"`
	BaseRev   string                `json:"base_rev"`
	CreatedAt string                `json:"created_at"`
	RawPatch  string                `json:"_raw_patch,omitempty"`
	Comments  []DiffComment         `json:"_comments,omitempty"`
}

// View returns the diff without raw patch text and comments.
func (d *Diff) View() Diff {
	v := *d
	v.RawPatch = ""
	v.Comments = nil
	return v
}

// Deployment statuses.
const (
	DeploymentQueued    = "queued"
	DeploymentRunning   = "running"
	DeploymentSucceeded = "succeeded"
	DeploymentCanceled  = "canceled"
)

// DeploymentStep is one stage of a deployment pipeline.
type DeploymentStep struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	TS     string `json:"ts"`
}

// Deployment is a staged rollout of a project revision.
type Deployment struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	Env       string           `json:"env"`
	Target    string           `json:"target"`
	Revision  string           `json:"revision"`
	Strategy  string           `json:"strategy"`
	Status    string           `json:"status"`
	Progress  float64          `json:"progress"`
	StartedAt string           `json:"started_at"`
	EndedAt   *string          `json:"ended_at"`
	Steps     []DeploymentStep `json:"steps"`
}

// LogLine is one deployment log entry.
type LogLine struct {
	TS    string `json:"ts"`
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Workflow is a user-defined node graph attached to a project.
type Workflow struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Graph       map[string]any `json:"graph"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// Artifact is a packaged build output stored on disk.
type Artifact struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	SizeBytes   int64  `json:"size_bytes"`
	DownloadURL string `json:"download_url"`
	CreatedAt   string `json:"created_at"`
	FilePath    string `json:"_file_path,omitempty"`
}

// View returns the artifact without its storage path.
func (a *Artifact) View() Artifact {
	v := *a
	v.FilePath = ""
	return v
}

// Upload tracks a two-phase file upload.
type Upload struct {
	UploadID    string `json:"upload_id"`
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   string `json:"created_at"`
	Completed   bool   `json:"completed"`
	StoredPath  string `json:"stored_path,omitempty"`
}

// FileMeta describes an uploaded file.
type FileMeta struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

// Notification is a user-facing event banner.
type Notification struct {
	ID    string `json:"id"`
	TS    string `json:"ts"`
	Level string `json:"level"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Acked bool   `json:"acked"`
}

// Alert is a telemetry alert rule.
type Alert struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	StreamID  string         `json:"stream_id"`
	Condition map[string]any `json:"condition"`
	Actions   []any          `json:"actions"`
	CreatedAt string         `json:"created_at"`
}

// TelemetryStream describes a metrics stream attached to a project.
type TelemetryStream struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Type   string   `json:"type"`
	Bands  []string `json:"bands"`
	Status string   `json:"status"`
}

// DynamicTool is a user-registered tool backed by an http or command
// handler.
type DynamicTool struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Scope       string         `json:"scope"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
	Handler     tools.Handler  `json:"handler"`
	CreatedAt   string         `json:"created_at"`
}

// User is an account on the server. Password hashes live in a separate
// map keyed by user id.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at"`
	Disabled  bool     `json:"disabled"`
}

// PublicUser is the sanitized user payload returned by the API.
type PublicUser struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at"`
}

// Sanitize strips fields that must not leave the server.
func (u *User) Sanitize() *PublicUser {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return &PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Roles: roles, CreatedAt: u.CreatedAt}
}

// TokenRecord is the server-side half of an issued token. Keeping the
// record lets logout and refresh revoke tokens before their JWT expiry.
type TokenRecord struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuditEvent is an entry in the global audit trail.
type AuditEvent struct {
	ID          string         `json:"id"`
	TS          string         `json:"ts"`
	ActorUserID string         `json:"actor_user_id"`
	ProjectID   string         `json:"project_id"`
	Type        string         `json:"type"`
	Data        map[string]any `json:"data"`
}

// SettingsAuditEvent records one settings field change.
type SettingsAuditEvent struct {
	ID          string         `json:"id"`
	TS          string         `json:"ts"`
	ActorUserID string         `json:"actor_user_id"`
	Change      map[string]any `json:"change"`
}
