// Package vcs wraps the git operations used to deploy the generated site.
package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git runs git against a working tree via the system binary. All commands
// carry the caller's context so a cancelled deploy kills the subprocess.
type Git struct {
	repoPath string
	log      *slog.Logger
}

// NewGit binds a working tree. It does not verify the path; use Available.
func NewGit(repoPath string, logger *slog.Logger) *Git {
	return &Git{repoPath: repoPath, log: logger}
}

// Available reports whether repoPath looks like a git working tree.
func (g *Git) Available() bool {
	if g.repoPath == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(g.repoPath, ".git"))
	return err == nil && info.IsDir()
}

// StageAll stages every change in the working tree.
func (g *Git) StageAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", "-A")
	return err
}

// HasPendingChanges reports whether anything is staged for commit.
func (g *Git) HasPendingChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Commit commits the staged changes.
func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-m", message)
	return err
}

// PullThenPush rebases onto the remote before pushing, returning the
// combined output lines for the publish log.
func (g *Git) PullThenPush(ctx context.Context) ([]string, error) {
	var lines []string

	out, err := g.run(ctx, "pull", "--rebase")
	lines = append(lines, outputLines("pull", out)...)
	if err != nil {
		return lines, err
	}

	out, err = g.run(ctx, "push")
	lines = append(lines, outputLines("push", out)...)
	return lines, err
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	g.log.Debug("git command", "args", args, "output", strings.TrimSpace(string(out)))
	return string(out), nil
}

func outputLines(op, out string) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, op+": "+l)
		}
	}
	return lines
}
