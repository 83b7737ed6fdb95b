package review

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/vcs"
)

// CleanupResult lists what a cleanup removed and staged.
type CleanupResult struct {
	Removed []string `json:"removed,omitempty"`
	Staged  []string `json:"staged,omitempty"`
}

// Cleanup makes the artifact tree of a test mirror its configuration.
// Baseline and gold files outside the allowed set (one baseline per stage and
// one gold file per corpus) are deleted. Tracked ones are also forgotten by
// version control, and the allowed tracked files that exist are staged along
// with the tracked corpus files. The local/ tree is swept but never staged.
func Cleanup(ctx context.Context, store *artifact.Store, info *TestInfo, tracker vcs.Tracker, log *zap.Logger) (*CleanupResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if tracker == nil || !info.Git {
		tracker = vcs.Nop{}
	}

	managed, err := store.ManagedFiles(info.Name, false)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(managed))
	for _, p := range managed {
		existing[filepath.Clean(p)] = true
	}
	localFiles, err := store.ManagedFiles(info.Name, true)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	keepLocal := make(map[string]bool)
	for _, c := range info.Corpora {
		if !c.Local {
			existing[filepath.Clean(c.Path)] = true
		}
		keep[filepath.Clean(c.Path)] = true
		for _, st := range info.Stages {
			keep[filepath.Clean(store.BaselinePath(info.Name, c.Name, st.Name, false))] = true
			if c.Local {
				keepLocal[filepath.Clean(store.BaselinePath(info.Name, c.Name, st.Name, true))] = true
			}
		}
		keep[filepath.Clean(store.GoldPath(info.Name, c.Name, false))] = true
		if c.Local {
			keepLocal[filepath.Clean(store.GoldPath(info.Name, c.Name, true))] = true
		}
	}

	res := &CleanupResult{}
	var untrack []string
	for p := range existing {
		if keep[p] {
			res.Staged = append(res.Staged, p)
		} else {
			untrack = append(untrack, p)
		}
	}
	res.Removed = append(res.Removed, untrack...)
	for _, p := range localFiles {
		if p = filepath.Clean(p); !keepLocal[p] {
			res.Removed = append(res.Removed, p)
		}
	}
	sort.Strings(untrack)
	sort.Strings(res.Removed)
	sort.Strings(res.Staged)

	for _, p := range res.Removed {
		log.Info("removing stale artifact", zap.String("path", p))
		if err := store.Remove(p); err != nil {
			return res, err
		}
	}
	if err := tracker.Forget(ctx, untrack...); err != nil {
		return res, fmt.Errorf("untrack removed artifacts: %w", err)
	}
	if err := tracker.Add(ctx, res.Staged...); err != nil {
		return res, fmt.Errorf("stage artifacts: %w", err)
	}
	return res, nil
}
