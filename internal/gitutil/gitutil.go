// Package gitutil detects the current git branch so the CLI can default
// a workspace's active partition to it instead of a hardcoded "main".
package gitutil

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

var errDetachedHead = errors.New("gitutil: HEAD is detached, no branch name")

// CurrentBranch runs "git branch --show-current" in path and returns the
// checked-out branch name. It returns an error if git is not installed,
// path is not a repository, or HEAD is detached (no output).
func CurrentBranch(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", path, "branch", "--show-current")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" {
		return "", errDetachedHead
	}
	return branch, nil
}
