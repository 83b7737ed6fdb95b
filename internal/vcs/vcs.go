// Package vcs stages baseline and gold files in version control.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every git invocation.
const DefaultTimeout = 30 * time.Second

// ErrNotGitRepo is returned when the root is not inside a git work tree.
var ErrNotGitRepo = errors.New("not a git repository")

// Tracker stages and unstages artifact files.
type Tracker interface {
	// Add stages paths.
	Add(ctx context.Context, paths ...string) error
	// Forget removes paths from the index, keeping nothing on disk.
	Forget(ctx context.Context, paths ...string) error
}

// Nop is a Tracker that does nothing.
type Nop struct{}

// Add implements Tracker.
func (Nop) Add(context.Context, ...string) error { return nil }

// Forget implements Tracker.
func (Nop) Forget(context.Context, ...string) error { return nil }

// Git runs git in Dir.
type Git struct {
	Dir     string
	Timeout time.Duration
	Log     *zap.Logger
}

// NewGit returns a Git tracker for the work tree holding dir.
func NewGit(dir string, log *zap.Logger) *Git {
	if log == nil {
		log = zap.NewNop()
	}
	return &Git{Dir: dir, Timeout: DefaultTimeout, Log: log}
}

// Add implements Tracker.
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := g.run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Forget implements Tracker. Paths git does not know are ignored.
func (g *Git) Forget(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := g.run(ctx, append([]string{"rm", "--cached", "--quiet", "--ignore-unmatch", "--"}, paths...)...)
	return err
}

// RepoRoot returns the top of the work tree.
func (g *Git) RepoRoot(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ErrNotGitRepo
	}
	return strings.TrimSpace(out), nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s timed out after %s", args[0], timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	g.Log.Debug("git", zap.Strings("args", args))
	return string(out), nil
}

// Detect returns a Git tracker when dir is inside a work tree and Nop
// otherwise.
func Detect(ctx context.Context, dir string, log *zap.Logger) Tracker {
	g := NewGit(dir, log)
	if _, err := exec.LookPath("git"); err != nil {
		return Nop{}
	}
	if _, err := g.RepoRoot(ctx); err != nil {
		return Nop{}
	}
	return g
}
