// Package tools hosts the workspace tool runtime: built-in file tools,
// executables discovered from configured tool directories, and the
// handlers backing user-registered dynamic tools.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Result is the outcome of a tool invocation. Data carries structured
// output when the tool has any, Output is the human-readable form.
type Result struct {
	OK     bool   `json:"ok"`
	Output string `json:"output"`
	Data   any    `json:"data,omitempty"`
}

func failf(format string, args ...any) Result {
	return Result{OK: false, Output: fmt.Sprintf(format, args...)}
}

// Func is a single registered tool.
type Func func(ctx context.Context, args map[string]any) Result

// Runtime resolves tool names to implementations for one workspace root.
type Runtime struct {
	root  string
	tools map[string]Func
	log   zerolog.Logger
}

// NewRuntime builds a runtime rooted at root, registering the built-in
// file tools plus any executables found under extraDirs.
func NewRuntime(root string, extraDirs []string, log zerolog.Logger) *Runtime {
	r := &Runtime{
		root:  root,
		tools: map[string]Func{},
		log:   log.With().Str("component", "tools").Logger(),
	}
	registerFileTools(r)
	for _, dir := range extraDirs {
		if err := r.loadExecutables(dir); err != nil {
			r.log.Warn().Err(err).Str("dir", dir).Msg("skipping tool directory")
		}
	}
	return r
}

func (r *Runtime) register(name string, fn Func) {
	if _, dup := r.tools[name]; dup {
		r.log.Warn().Str("tool", name).Msg("duplicate tool registration ignored")
		return
	}
	r.tools[name] = fn
}

// Available returns the sorted names of every registered tool.
func (r *Runtime) Available() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a tool by name. Unknown names yield a failed Result, not
// an error, matching how callers surface tool outcomes to clients.
func (r *Runtime) Execute(ctx context.Context, name string, args map[string]any) Result {
	fn, ok := r.tools[name]
	if !ok {
		return failf("Unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return fn(ctx, args)
}
