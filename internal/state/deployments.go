package state

import (
	"math"
	"time"
)

var deploymentSteps = []string{"prepare", "build", "deploy", "verify"}

// stepDelay is shortened in tests.
var stepDelay = 50 * time.Millisecond

// CreateDeployment registers a queued deployment and launches its
// worker. Caller holds the lock.
func (s *State) CreateDeployment(projectID, env, target, revision, strategy string) *Deployment {
	dep := &Deployment{
		ID:        NewID("dep"),
		ProjectID: projectID,
		Env:       env,
		Target:    target,
		Revision:  revision,
		Strategy:  strategy,
		Status:    DeploymentQueued,
		Progress:  0.0,
		StartedAt: NowISO(),
		Steps:     []DeploymentStep{},
	}
	s.Deployments[dep.ID] = dep
	s.ProjectDeployments[projectID] = append(s.ProjectDeployments[projectID], dep.ID)
	s.DeploymentLogs[dep.ID] = []LogLine{{TS: NowISO(), Level: "info", Text: "Deployment queued"}}
	go s.deploymentWorker(dep.ID)
	return dep
}

// CancelDeployment marks a deployment canceled. The worker observes the
// status at its next step boundary. Terminal statuses are sticky, so
// canceling a finished deployment is a no-op. Caller holds the lock.
func (s *State) CancelDeployment(dep *Deployment) {
	switch dep.Status {
	case DeploymentSucceeded, DeploymentCanceled:
		return
	}
	now := NowISO()
	dep.Status = DeploymentCanceled
	dep.EndedAt = &now
	dep.Progress = 1.0
	s.DeploymentLogs[dep.ID] = append(s.DeploymentLogs[dep.ID],
		LogLine{TS: now, Level: "warn", Text: "Deployment canceled by user"})
	s.metrics.RecordDeployment(DeploymentCanceled)
}

// deploymentWorker walks the fixed step pipeline. Progress only ever
// moves forward; cancellation wins over completion at every boundary.
func (s *State) deploymentWorker(deploymentID string) {
	total := float64(len(deploymentSteps))
	for idx, name := range deploymentSteps {
		s.Mu.Lock()
		dep, ok := s.Deployments[deploymentID]
		if !ok {
			s.Mu.Unlock()
			return
		}
		if dep.Status == DeploymentCanceled {
			s.DeploymentLogs[deploymentID] = append(s.DeploymentLogs[deploymentID],
				LogLine{TS: NowISO(), Level: "warn", Text: "Deployment canceled"})
			s.PersistLocked()
			s.Mu.Unlock()
			return
		}
		dep.Status = DeploymentRunning
		dep.Progress = roundProgress(float64(idx) / total)
		dep.Steps = append(dep.Steps, DeploymentStep{
			ID:     NewID("dstep"),
			Name:   name,
			Status: "running",
			TS:     NowISO(),
		})
		s.DeploymentLogs[deploymentID] = append(s.DeploymentLogs[deploymentID],
			LogLine{TS: NowISO(), Level: "info", Text: "Step started: " + name})
		s.PersistLocked()
		s.Mu.Unlock()

		time.Sleep(stepDelay)

		s.Mu.Lock()
		dep, ok = s.Deployments[deploymentID]
		if !ok {
			s.Mu.Unlock()
			return
		}
		if len(dep.Steps) > 0 {
			dep.Steps[len(dep.Steps)-1].Status = "done"
		}
		dep.Progress = roundProgress(float64(idx+1) / total)
		s.PersistLocked()
		s.Mu.Unlock()
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()
	dep, ok := s.Deployments[deploymentID]
	if !ok {
		return
	}
	if dep.Status != DeploymentCanceled {
		now := NowISO()
		dep.Status = DeploymentSucceeded
		dep.EndedAt = &now
		dep.Progress = 1.0
		s.DeploymentLogs[deploymentID] = append(s.DeploymentLogs[deploymentID],
			LogLine{TS: now, Level: "info", Text: "Deployment succeeded"})
		s.metrics.RecordDeployment(DeploymentSucceeded)
	}
	s.PersistLocked()
}

func roundProgress(v float64) float64 {
	return math.Round(v*10000) / 10000
}
