package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/artifact"
)

// pollInterval is how often every watched file is re-read regardless of
// filesystem events.
const pollInterval = time.Second

// Progress is a snapshot of a running test.
type Progress struct {
	Seen   int `json:"seen"`
	Unique int `json:"unique"`
}

// Percent is Seen as a share of Unique.
func (p Progress) Percent() float64 {
	if p.Unique == 0 {
		return 100
	}
	return float64(p.Seen) * 100 / float64(p.Unique)
}

// ProgressFunc receives progress updates.
type ProgressFunc func(Progress)

// idTracker tails a set of files and collects the block ids appearing in them.
type idTracker struct {
	mu      sync.Mutex
	offsets map[string]int64
	partial map[string]string
	seen    map[string]struct{}
}

func newIDTracker() *idTracker {
	return &idTracker{
		offsets: make(map[string]int64),
		partial: make(map[string]string),
		seen:    make(map[string]struct{}),
	}
}

// poll reads whatever was appended to path since the last poll.
func (t *idTracker) poll(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only

	if _, err := f.Seek(t.offsets[path], io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	t.offsets[path] += int64(len(data))

	text := t.partial[path] + string(data)
	cut := strings.LastIndexByte(text, '\n')
	t.partial[path] = text[cut+1:]
	for _, line := range strings.Split(text[:cut+1], "\n") {
		if id, ok := artifact.IDFromTag(line); ok {
			t.seen[id] = struct{}{}
		}
	}
	return nil
}

func (t *idTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// scanIDs reads the ids of complete files from the start.
func scanIDs(paths []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	for _, path := range paths {
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
		for sc.Scan() {
			if id, ok := artifact.IDFromTag(sc.Text()); ok {
				seen[id] = struct{}{}
			}
		}
		err = sc.Err()
		_ = f.Close() //nolint:errcheck // read-only
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	return seen, nil
}

// progressWatcher reports how many unique ids have reached the final worker
// outputs. It wakes on filesystem events and once per pollInterval.
type progressWatcher struct {
	dir     string
	files   map[string]bool
	unique  int
	report  ProgressFunc
	log     *zap.Logger
	tracker *idTracker

	stopCh chan struct{}
	doneCh chan struct{}
}

func newProgressWatcher(dir string, files []string, unique int, report ProgressFunc, log *zap.Logger) *progressWatcher {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[filepath.Clean(f)] = true
	}
	return &progressWatcher{
		dir:     dir,
		files:   set,
		unique:  unique,
		report:  report,
		log:     log,
		tracker: newIDTracker(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins watching in the background.
func (w *progressWatcher) Start(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Debug("fsnotify unavailable, polling only", zap.Error(err))
		watcher = nil
	} else if err := watcher.Add(w.dir); err != nil {
		w.log.Debug("cannot watch scratch dir, polling only", zap.Error(err))
		_ = watcher.Close() //nolint:errcheck // falling back
		watcher = nil
	}
	go w.run(ctx, watcher)
}

// Stop ends the watch and waits for the loop to exit.
func (w *progressWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *progressWatcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.doneCh)

	var events chan fsnotify.Event
	var errs chan error
	if watcher != nil {
		defer watcher.Close() //nolint:errcheck // shutting down
		events, errs = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := -1
	emit := func() {
		if n := w.tracker.count(); n != last {
			last = n
			if w.report != nil {
				w.report(Progress{Seen: n, Unique: w.unique})
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && w.files[filepath.Clean(ev.Name)] {
				if err := w.tracker.poll(ev.Name); err != nil {
					w.log.Debug("progress poll failed", zap.String("file", ev.Name), zap.Error(err))
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Debug("watch error", zap.Error(err))
		case <-ticker.C:
			for f := range w.files {
				if err := w.tracker.poll(f); err != nil {
					w.log.Debug("progress poll failed", zap.String("file", f), zap.Error(err))
				}
			}
			emit()
		}
	}
}
