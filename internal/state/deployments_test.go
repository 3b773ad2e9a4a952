package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForDeployment(t *testing.T, s *State, id string, statuses ...string) {
	t.Helper()
	want := map[string]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	require.Eventually(t, func() bool {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		dep, ok := s.Deployments[id]
		return ok && want[dep.Status]
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDeploymentWorker_Succeeds(t *testing.T) {
	old := stepDelay
	stepDelay = time.Millisecond
	defer func() { stepDelay = old }()

	s := newTestState(t, nil)
	p := addProject(t, s, "deploys")

	s.Mu.Lock()
	dep := s.CreateDeployment(p.ID, "staging", "k8s", "HEAD", "rolling")
	assert.Equal(t, DeploymentQueued, dep.Status)
	assert.Equal(t, []string{dep.ID}, s.ProjectDeployments[p.ID])
	s.Mu.Unlock()

	waitForDeployment(t, s, dep.ID, DeploymentSucceeded)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, 1.0, dep.Progress)
	require.NotNil(t, dep.EndedAt)
	require.Len(t, dep.Steps, 4)
	names := []string{}
	for _, step := range dep.Steps {
		names = append(names, step.Name)
		assert.Equal(t, "done", step.Status)
		assert.Regexp(t, `^dstep_`, step.ID)
	}
	assert.Equal(t, []string{"prepare", "build", "deploy", "verify"}, names)

	logs := s.DeploymentLogs[dep.ID]
	require.NotEmpty(t, logs)
	assert.Equal(t, "Deployment queued", logs[0].Text)
	assert.Equal(t, "Deployment succeeded", logs[len(logs)-1].Text)
}

func TestDeploymentWorker_CancelWins(t *testing.T) {
	old := stepDelay
	stepDelay = 50 * time.Millisecond
	defer func() { stepDelay = old }()

	s := newTestState(t, nil)
	p := addProject(t, s, "deploys")

	s.Mu.Lock()
	dep := s.CreateDeployment(p.ID, "prod", "k8s", "HEAD", "blue_green")
	s.CancelDeployment(dep)
	s.Mu.Unlock()

	// The worker observes the cancellation and stops adding steps.
	time.Sleep(300 * time.Millisecond)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, DeploymentCanceled, dep.Status)
	assert.Equal(t, 1.0, dep.Progress)
	assert.Less(t, len(dep.Steps), 4)
}

func TestCancelDeployment_TerminalStatusSticky(t *testing.T) {
	old := stepDelay
	stepDelay = time.Millisecond
	defer func() { stepDelay = old }()

	s := newTestState(t, nil)
	p := addProject(t, s, "deploys")

	s.Mu.Lock()
	dep := s.CreateDeployment(p.ID, "prod", "k8s", "HEAD", "rolling")
	s.Mu.Unlock()

	waitForDeployment(t, s, dep.ID, DeploymentSucceeded)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	endedAt := dep.EndedAt
	logLen := len(s.DeploymentLogs[dep.ID])
	s.CancelDeployment(dep)
	assert.Equal(t, DeploymentSucceeded, dep.Status)
	assert.Equal(t, endedAt, dep.EndedAt)
	assert.Len(t, s.DeploymentLogs[dep.ID], logLen)
}
