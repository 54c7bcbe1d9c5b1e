// Package git wraps the small slice of git plumbing the Governance
// Service (C7) needs to auto-detect a task's changed files when an
// agent's submit_completion_review call omits them (SPEC_FULL.md section
// 3's supplemented completion-review convenience).
//
// Grounded on the teacher's own internal/git/git.go (run/CombinedOutput
// subprocess shape), trimmed down from a full branch/commit/push
// workflow (out of scope here: branch and commit management belongs to
// the host coding-agent runtime, not this governance core) to the one
// read-only operation this package's caller actually needs.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Repo wraps git plumbing scoped to one working tree.
type Repo struct {
	path string
}

// New returns a Repo rooted at path.
func New(path string) *Repo {
	return &Repo{path: path}
}

func (r *Repo) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.path
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, output)
	}
	// Only trailing newlines are trimmed: a leading space is part of the
	// first porcelain line's two-character status prefix.
	return strings.TrimRight(string(output), "\r\n"), nil
}

// ChangedFiles lists every file with uncommitted working-tree or staged
// changes, used to auto-populate submit_completion_review's filesChanged
// when the calling agent doesn't supply its own list.
func (r *Repo) ChangedFiles() ([]string, error) {
	out, err := r.run("status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	lines := strings.Split(out, "\n")
	files := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		files = append(files, strings.TrimSpace(line[3:]))
	}
	return files, nil
}
