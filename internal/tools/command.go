package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const commandToolTimeout = 30 * time.Second

// loadExecutables registers every executable file directly under dir as
// a command tool named after the file (extension stripped).
func (r *Runtime) loadExecutables(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if name == "" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		r.register(name, r.commandTool(path))
		r.log.Debug().Str("tool", name).Str("path", path).Msg("registered command tool")
	}
	return nil
}

// commandTool runs an executable with the invocation args as JSON on
// stdin. JSON stdout becomes Data, anything else is plain output.
func (r *Runtime) commandTool(path string) Func {
	return func(ctx context.Context, args map[string]any) Result {
		payload, err := json.Marshal(args)
		if err != nil {
			return failf("command tool error: %v", err)
		}

		ctx, cancel := context.WithTimeout(ctx, commandToolTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, path)
		cmd.Dir = r.root
		cmd.Stdin = bytes.NewReader(payload)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return failf("%s failed: %s", filepath.Base(path), msg)
		}

		text := strings.TrimSpace(stdout.String())
		var data any
		if json.Unmarshal([]byte(text), &data) == nil && text != "" {
			return Result{OK: true, Output: text, Data: data}
		}
		return Result{OK: true, Output: text}
	}
}

// ErrUnsupportedHandler reports a dynamic tool handler type the server
// cannot execute.
var ErrUnsupportedHandler = fmt.Errorf("unsupported handler type")
