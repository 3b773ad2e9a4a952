package state

import (
	"os"
	"os/exec"
	"time"

	"github.com/forgestack/devplane/internal/apierr"
)

var shellCommands = map[string][]string{
	"bash": {"bash"},
	"pwsh": {"pwsh", "-NoLogo"},
	"cmd":  {"cmd.exe"},
	"zsh":  {"zsh"},
}

// StartTerminal spawns a detached shell in a project directory and
// tracks its process under a new terminal id. It manages the store
// lock itself: only the path lookups and the registry insert run
// locked; the spawn does not.
func (s *State) StartTerminal(projectID, shell, cwd string, env map[string]string) (string, error) {
	argv, ok := shellCommands[shell]
	if !ok {
		return "", apierr.BadRequest("invalid_request", "Unsupported shell: "+shell)
	}
	s.Mu.Lock()
	root, err := s.EnsureProjectPath(projectID)
	dir := root
	if err == nil && cwd != "" && cwd != "." {
		dir, err = s.SafeProjectFilePath(projectID, cwd)
	}
	s.Mu.Unlock()
	if err != nil {
		return "", err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return "", apierr.Internal("terminal_create_failed", err.Error())
	}
	proc := cmd.Process
	// Reap the child so killed shells do not linger as zombies.
	go func() { _ = cmd.Wait() }()
	terminalID := NewID("term")
	s.Mu.Lock()
	s.terminals[terminalID] = proc
	s.Mu.Unlock()
	s.log.Info().Str("terminal_id", terminalID).Str("shell", shell).Int("pid", proc.Pid).Msg("terminal started")
	return terminalID, nil
}

// KillTerminal terminates a tracked shell, escalating to SIGKILL when it
// ignores the polite signal. Unknown ids are a no-op. It takes the lock
// around the registry lookup; the reaper goroutine started by
// StartTerminal owns Wait, so the escalation never blocks the store.
func (s *State) KillTerminal(terminalID string) {
	s.Mu.Lock()
	proc, ok := s.terminals[terminalID]
	delete(s.terminals, terminalID)
	s.Mu.Unlock()
	if !ok || proc == nil {
		return
	}
	_ = proc.Signal(os.Interrupt)
	go func() {
		time.Sleep(3 * time.Second)
		_ = proc.Kill()
	}()
}
