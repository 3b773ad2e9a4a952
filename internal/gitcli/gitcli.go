// Package gitcli shells out to git for project repository operations.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Change is one working-tree entry from git status.
type Change struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

// Status summarizes the working tree of a repository.
type Status struct {
	Branch  string   `json:"branch"`
	Dirty   bool     `json:"dirty"`
	Ahead   int      `json:"ahead"`
	Behind  int      `json:"behind"`
	Changes []Change `json:"changes"`
}

// Client runs git commands against one repository root.
type Client struct {
	root string
}

func New(root string) *Client { return &Client{root: root} }

// Run executes git with args in the client's repository. It returns
// stdout and a descriptive error built from stderr on failure.
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, "", args...)
}

func (c *Client) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", c.root}, args...)...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("git %s failed", args[0])
		}
		return stdout.String(), fmt.Errorf("%s", msg)
	}
	return stdout.String(), nil
}

var (
	aheadRe  = regexp.MustCompile(`ahead\s+(\d+)`)
	behindRe = regexp.MustCompile(`behind\s+(\d+)`)
)

// Status runs "git status --porcelain=1 -b" and parses the result.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	out, err := c.Run(ctx, "status", "--porcelain=1", "-b")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out), nil
}

// ParseStatus decodes porcelain v1 output with a branch header line.
func ParseStatus(out string) *Status {
	st := &Status{Changes: []Change{}}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "## ") {
		head := lines[0][3:]
		st.Branch = strings.TrimSpace(strings.SplitN(head, "...", 2)[0])
		if m := aheadRe.FindStringSubmatch(head); m != nil {
			st.Ahead, _ = strconv.Atoi(m[1])
		}
		if m := behindRe.FindStringSubmatch(head); m != nil {
			st.Behind, _ = strconv.Atoi(m[1])
		}
		lines = lines[1:]
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		var chunk string
		if len(line) > 2 {
			chunk = line[:2]
		} else {
			chunk = line
		}
		code := "modified"
		switch {
		case strings.Contains(chunk, "A"):
			code = "added"
		case strings.Contains(chunk, "D"):
			code = "deleted"
		case strings.Contains(chunk, "R"):
			code = "renamed"
		case chunk == "??":
			code = "untracked"
		}
		path := ""
		if len(line) > 3 {
			path = strings.TrimSpace(line[3:])
		}
		st.Changes = append(st.Changes, Change{Path: path, Status: code})
	}
	st.Dirty = len(st.Changes) > 0
	return st
}

// Checkout switches the working tree to branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	_, err := c.Run(ctx, "checkout", branch)
	return err
}

// Pull fast-forwards the current branch.
func (c *Client) Pull(ctx context.Context) error {
	_, err := c.Run(ctx, "pull", "--ff-only")
	return err
}

// Commit stages paths (all changes when empty) and commits, returning
// the new HEAD hash.
func (c *Client) Commit(ctx context.Context, message string, paths []string) (string, error) {
	addArgs := []string{"add", "-A"}
	if len(paths) > 0 {
		addArgs = append([]string{"add"}, paths...)
	}
	if _, err := c.Run(ctx, addArgs...); err != nil {
		return "", fmt.Errorf("git add failed: %w", err)
	}
	if _, err := c.Run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("git commit failed: %w", err)
	}
	out, err := c.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// ApplyPatch pipes a unified diff into "git apply".
func (c *Client) ApplyPatch(ctx context.Context, patch string) error {
	_, err := c.run(ctx, patch, "apply", "--whitespace=nowarn", "-")
	return err
}

// Head returns the current HEAD hash, or "" when the repository has no
// commits yet.
func (c *Client) Head(ctx context.Context) string {
	out, err := c.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
