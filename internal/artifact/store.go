package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// OutputDir holds per-test run output below the root.
	OutputDir = "output"

	// ExpectedDir holds accepted baselines and gold files.
	ExpectedDir = "expected"

	// LocalDir holds untracked corpora and their baselines.
	LocalDir = "local"

	// TmpDir is the per-test scratch directory used while running.
	TmpDir = "_tmp"

	// InputStage names the reassembled worker input.
	InputStage = "input"
)

// Store resolves and rewrites the files of the artifact tree rooted at Root.
type Store struct {
	// Root is the directory holding regtest.yaml.
	Root string

	dirPerm  os.FileMode
	filePerm os.FileMode
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPerms overrides the directory and file permissions used for writes.
func WithPerms(dir, file os.FileMode) StoreOption {
	return func(s *Store) {
		s.dirPerm = dir
		s.filePerm = file
	}
}

// NewStore creates a store rooted at root.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{Root: root, dirPerm: 0755, filePerm: 0644}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunDir is output/<test>.
func (s *Store) RunDir(test string) string {
	return filepath.Join(s.Root, OutputDir, test)
}

// ScratchDir is output/<test>/_tmp.
func (s *Store) ScratchDir(test string) string {
	return filepath.Join(s.RunDir(test), TmpDir)
}

// IndexPath is the corpus index written by the ingestor.
func (s *Store) IndexPath(test, corpus string) string {
	return filepath.Join(s.RunDir(test), "corp-"+corpus+".ids")
}

// CorpusOutputDir holds the reassembled stage outputs of one corpus.
func (s *Store) CorpusOutputDir(test, corpus string) string {
	return filepath.Join(s.RunDir(test), corpus)
}

// OutputPath is the reassembled output of stage for corpus.
func (s *Store) OutputPath(test, corpus, stage string) string {
	return filepath.Join(s.CorpusOutputDir(test, corpus), "output-"+corpus+"-"+stage+".txt")
}

// BaselineDir holds the baseline and gold files of a corpus. Local corpora
// keep theirs below local/ so they never mix with tracked files.
func (s *Store) BaselineDir(test, corpus string, local bool) string {
	base := s.Root
	if local {
		base = filepath.Join(base, LocalDir)
	}
	return filepath.Join(base, ExpectedDir, test, corpus)
}

// BaselinePath is the accepted output of stage for corpus.
func (s *Store) BaselinePath(test, corpus, stage string, local bool) string {
	return filepath.Join(s.BaselineDir(test, corpus, local), "expected-"+corpus+"-"+stage+".txt")
}

// GoldPath is the gold standard of corpus.
func (s *Store) GoldPath(test, corpus string, local bool) string {
	return filepath.Join(s.BaselineDir(test, corpus, local), "gold-"+corpus+".txt")
}

// ManagedFiles lists the baseline and gold files that currently exist for
// test, in the tracked tree or, with local, in the local/ tree.
func (s *Store) ManagedFiles(test string, local bool) ([]string, error) {
	base := s.Root
	if local {
		base = filepath.Join(base, LocalDir)
	}
	dir := filepath.Join(base, ExpectedDir, test)
	var out []string
	for _, pattern := range []string{"*/expected-*.txt", "*/gold-*.txt"} {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadBlocks parses the block file at path.
func (s *Store) ReadBlocks(path string) (map[string]Block, error) {
	f, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only
	blocks, err := ParseBlocks(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return blocks, nil
}

// ReadGold parses the gold file at path.
func (s *Store) ReadGold(path string) (map[string][]string, error) {
	f, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only
	golds, err := ParseGold(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return golds, nil
}

// WriteBlocks atomically replaces path with blocks.
func (s *Store) WriteBlocks(path string, blocks []Block) error {
	return s.AtomicWrite(path, func(w io.Writer) error {
		return WriteBlocks(w, blocks)
	})
}

// WriteGold atomically replaces path with golds. When no block has any
// candidate the file is removed instead of left empty.
func (s *Store) WriteGold(path string, golds []Gold) error {
	empty := true
	for _, g := range golds {
		if len(g.Candidates) > 0 {
			empty = false
			break
		}
	}
	if empty {
		return s.Remove(path)
	}
	return s.AtomicWrite(path, func(w io.Writer) error {
		return WriteGold(w, golds)
	})
}

// Copy duplicates src to dst atomically.
func (s *Store) Copy(src, dst string) error {
	in, err := s.open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only
	return s.AtomicWrite(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// Remove deletes path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ResetDir empties dir, creating it if needed.
func (s *Store) ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// AtomicWrite writes to a temp file next to path and renames it into place,
// so readers never observe a partially written artifact.
func (s *Store) AtomicWrite(path string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, s.filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}

func (s *Store) open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
