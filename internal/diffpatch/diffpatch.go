// Package diffpatch parses unified diffs and applies them to in-memory
// file contents.
package diffpatch

import (
	"regexp"
	"strconv"
	"strings"
)

// FilePatch is one file's slice of a multi-file unified diff.
type FilePatch struct {
	Path    string `json:"path"`
	Patch   string `json:"patch"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// Stats counts added and removed lines in a unified diff, skipping the
// +++/--- file headers.
func Stats(patch string) (added, removed int) {
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// SplitFiles splits a multi-file diff on its "+++ b/<path>" headers. A
// patch without file headers yields a single entry with an empty path.
func SplitFiles(patch string) []FilePatch {
	var (
		out     []FilePatch
		index   = map[string]int{}
		current string
		lines   []string
	)
	flush := func() {
		if current == "" {
			return
		}
		block := strings.Join(lines, "\n")
		a, r := Stats(block)
		fp := FilePatch{Path: current, Patch: block, Added: a, Removed: r}
		if i, ok := index[current]; ok {
			out[i] = fp
		} else {
			index[current] = len(out)
			out = append(out, fp)
		}
	}
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"):
			flush()
			current = strings.TrimSpace(line[6:])
			lines = []string{line}
		case strings.HasPrefix(line, "+++ "):
			flush()
			current = strings.TrimSpace(line[4:])
			lines = []string{line}
		default:
			lines = append(lines, line)
		}
	}
	flush()
	if len(out) == 0 {
		a, r := Stats(patch)
		return []FilePatch{{Path: "", Patch: patch, Added: a, Removed: r}}
	}
	return out
}

var hunkRe = regexp.MustCompile(`^@@\s+-(\d+)(?:,(\d+))?\s+\+(\d+)(?:,(\d+))?\s+@@`)

// Apply patches oldLines (each including its trailing newline) with a
// unified diff. It returns ok=false when a hunk's context or removals do
// not match the input.
func Apply(oldLines []string, diffText string) ([]string, bool) {
	lines := strings.Split(diffText, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		kept := lines[:0]
		for _, ln := range lines {
			if !strings.HasPrefix(strings.TrimSpace(ln), "```") {
				kept = append(kept, ln)
			}
		}
		lines = kept
	}

	i := 0
	for i < len(lines) && !strings.HasPrefix(lines[i], "@@") {
		i++
	}
	if i >= len(lines) {
		return nil, false
	}

	var newLines []string
	oldIdx := 0

	for i < len(lines) {
		m := hunkRe.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		oldStart, _ := strconv.Atoi(m[1])
		oldStart--
		i++

		if oldStart < oldIdx || oldStart > len(oldLines) {
			return nil, false
		}
		newLines = append(newLines, oldLines[oldIdx:oldStart]...)
		oldIdx = oldStart

		for i < len(lines) && !strings.HasPrefix(lines[i], "@@") {
			ln := lines[i]
			switch {
			case strings.HasPrefix(ln, " "):
				ctx := ln[1:] + "\n"
				if oldIdx >= len(oldLines) || oldLines[oldIdx] != ctx {
					return nil, false
				}
				newLines = append(newLines, ctx)
				oldIdx++
			case strings.HasPrefix(ln, "-"):
				rem := ln[1:] + "\n"
				if oldIdx >= len(oldLines) || oldLines[oldIdx] != rem {
					return nil, false
				}
				oldIdx++
			case strings.HasPrefix(ln, "+"):
				newLines = append(newLines, ln[1:]+"\n")
			case strings.HasPrefix(ln, `\`):
				// "\ No newline at end of file"
			case ln == "":
				// trailing blank from the final split
			default:
				return nil, false
			}
			i++
		}
	}

	newLines = append(newLines, oldLines[oldIdx:]...)
	return newLines, true
}

// SplitLines cuts content into lines that each keep their trailing
// newline, matching what Apply expects.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	parts := strings.SplitAfter(content, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
