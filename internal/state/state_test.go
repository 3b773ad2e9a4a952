package state

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgestack/devplane/internal/bucket"
	"github.com/forgestack/devplane/internal/config"
	"github.com/forgestack/devplane/internal/llm"
	"github.com/forgestack/devplane/internal/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BasePath:        "/api/v1",
		APIKey:          "dev-api-key",
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		AdminName:       "Admin",
		AdminEmail:      "admin@devplane.local",
		AdminPassword:   "admin",
		WorkspaceDir:    t.TempDir(),
		DatabaseBackend: "",
	}
}

func newTestState(t *testing.T, db bucket.Backend) *State {
	t.Helper()
	s, err := New(testConfig(t), db, llm.NewLocalEngine(), metrics.New(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

// addProject wires a project with its membership slices the way the
// projects handler does.
func addProject(t *testing.T, s *State, name string) *Project {
	t.Helper()
	now := NowISO()
	p := &Project{
		ID:          NewID("proj"),
		Name:        name,
		Status:      "active",
		Environment: "dev",
		Repo:        map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Projects[p.ID] = p
	s.ProjectPaths[p.ID] = t.TempDir()
	s.ProjectSessions[p.ID] = []string{}
	return p
}

func addSession(s *State, projectID string) *Session {
	now := NowISO()
	sess := &Session{
		ID:        NewID("sess"),
		ProjectID: projectID,
		Title:     "Session",
		Status:    "active",
		ModelID:   "gpt-4o-mini",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Sessions[sess.ID] = sess
	s.ProjectSessions[projectID] = append(s.ProjectSessions[projectID], sess.ID)
	s.SessionMessages[sess.ID] = []string{}
	s.SessionRuns[sess.ID] = []string{}
	return sess
}

func addUserMessage(s *State, sessionID, text string) *Message {
	m := &Message{
		ID:        NewID("msg"),
		SessionID: sessionID,
		Role:      "user",
		Content:   []map[string]any{{"type": "text", "text": text}},
		Meta:      map[string]any{},
		TS:        NowISO(),
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Messages[m.ID] = m
	s.SessionMessages[sessionID] = append(s.SessionMessages[sessionID], m.ID)
	return m
}

func TestNewID(t *testing.T) {
	id := NewID("proj")
	assert.Regexp(t, `^proj_[0-9a-f]{16}$`, id)
	assert.NotEqual(t, id, NewID("proj"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "my-service", Slugify("My Service!"))
	assert.Equal(t, "project", Slugify("???"))
}

func TestNew_SeedsAdmin(t *testing.T) {
	s := newTestState(t, nil)
	admin, ok := s.Users["user_admin"]
	require.True(t, ok)
	assert.Equal(t, "admin@devplane.local", admin.Email)
	assert.Contains(t, admin.Roles, "admin")
	// The stored secret is a hash, not the raw password.
	assert.NotEqual(t, "admin", s.UserPasswords["user_admin"])
}

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := bucket.NewJSONBackend(dir)
	require.NoError(t, err)

	s := newTestState(t, db)
	p := addProject(t, s, "persisted")
	sess := addSession(s, p.ID)
	s.Persist()

	restored, err := New(s.cfg, db, llm.NewLocalEngine(), metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	got, ok := restored.Projects[p.ID]
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Name)
	assert.Equal(t, []string{sess.ID}, restored.ProjectSessions[p.ID])
	_, ok = restored.Sessions[sess.ID]
	assert.True(t, ok)
	// The seeded admin survives hydration.
	_, ok = restored.Users["user_admin"]
	assert.True(t, ok)
}

func TestDeepMerge(t *testing.T) {
	current := map[string]any{
		"ui":    map[string]any{"theme": "neon_dark", "accent": "#00FF94"},
		"limit": 8,
	}
	merged := DeepMerge(current, map[string]any{
		"ui":    map[string]any{"theme": "light"},
		"extra": true,
	})

	ui := merged["ui"].(map[string]any)
	assert.Equal(t, "light", ui["theme"])
	assert.Equal(t, "#00FF94", ui["accent"])
	assert.Equal(t, 8, merged["limit"])
	assert.Equal(t, true, merged["extra"])
	// The input map is not mutated.
	assert.Equal(t, "neon_dark", current["ui"].(map[string]any)["theme"])
}

func TestCollectSettingsChanges(t *testing.T) {
	current := map[string]any{
		"ui":    map[string]any{"theme": "neon_dark"},
		"limit": 8,
	}
	changes := CollectSettingsChanges(current, map[string]any{
		"ui":    map[string]any{"theme": "light"},
		"limit": 8,
		"fresh": "x",
	}, "")

	paths := map[string]bool{}
	for _, c := range changes {
		paths[c["path"].(string)] = true
	}
	assert.True(t, paths["/ui/theme"])
	assert.True(t, paths["/fresh"])
	assert.Len(t, changes, 2)
}

func TestMessageToText(t *testing.T) {
	m := &Message{Content: []map[string]any{
		{"type": "text", "text": "hello"},
		{"type": "code", "text": "x := 1"},
		{"type": "image", "url": "http://a/b.png"},
		{"type": "diff_ref", "diff_id": "diff_1"},
		{"type": "tool_call", "tool_name": "lint"},
		{"type": "text", "text": "   "},
	}}
	text := MessageToText(m)
	assert.Equal(t, "hello\nx := 1\n[image] http://a/b.png\n[diff_ref] diff_1\n[tool_call] lint", text)
}

func TestSafeProjectFilePath(t *testing.T) {
	s := newTestState(t, nil)
	p := addProject(t, s, "fs")

	s.Mu.Lock()
	defer s.Mu.Unlock()

	got, err := s.SafeProjectFilePath(p.ID, "src/main.go")
	require.NoError(t, err)
	assert.Contains(t, got, "src")

	_, err = s.SafeProjectFilePath(p.ID, "/etc/passwd")
	assert.Error(t, err)

	_, err = s.SafeProjectFilePath(p.ID, "../../outside")
	assert.Error(t, err)
}
