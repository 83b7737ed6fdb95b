package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// LockFile is the name of the run lock below a test's run directory.
const LockFile = "lock"

// runnerMarkers identify a process that may hold a run lock.
var runnerMarkers = []string{"regtest", "runner"}

// LockMetadata is written into the lock file while a run holds it.
type LockMetadata struct {
	RunID      string `json:"run_id"`
	PID        int    `json:"pid"`
	Host       string `json:"host"`
	Test       string `json:"test"`
	AcquiredAt string `json:"acquired_at"`
}

// ProcessInfo is one row of the process table.
type ProcessInfo struct {
	PID     int
	Command string
}

// ProbeFunc looks up a process by pid. It returns ok=false when no such
// process exists.
type ProbeFunc func(pid int) (info ProcessInfo, ok bool, err error)

// Lock is a held run lock.
type Lock struct {
	path string
	file *os.File
	meta LockMetadata
}

// AcquireLock takes the run lock at path. An existing lock whose process is
// alive and looks like a runner fails with ErrLockHeld; any other existing
// lock is stale and is overridden.
func AcquireLock(path, test string, probe ProbeFunc, log *zap.Logger) (*Lock, error) {
	if probe == nil {
		probe = PSProbe
	}
	if log == nil {
		log = zap.NewNop()
	}

	if meta, ok := readLockMetadata(path); ok && meta.PID != os.Getpid() {
		info, alive, err := probe(meta.PID)
		if err != nil {
			log.Warn("cannot probe lock holder", zap.Int("pid", meta.PID), zap.Error(err))
		}
		if alive && looksLikeRunner(info.Command) {
			return nil, lockHeldError(path, meta)
		}
		log.Info("overriding stale lock",
			zap.String("path", path),
			zap.Int("pid", meta.PID),
			zap.String("run_id", meta.RunID))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close() //nolint:errcheck // not acquired
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			meta, _ := readLockMetadata(path)
			return nil, lockHeldError(path, meta)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	host, _ := os.Hostname()
	l := &Lock{
		path: path,
		file: file,
		meta: LockMetadata{
			RunID:      uuid.NewString(),
			PID:        os.Getpid(),
			Host:       host,
			Test:       test,
			AcquiredAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := l.writeMetadata(); err != nil {
		_ = unix.Flock(int(file.Fd()), unix.LOCK_UN) //nolint:errcheck // failing anyway
		_ = file.Close()                             //nolint:errcheck // failing anyway
		return nil, err
	}
	return l, nil
}

// RunID identifies the run holding the lock.
func (l *Lock) RunID() string {
	return l.meta.RunID
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	removeErr := os.Remove(l.path)
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()

	switch {
	case removeErr != nil && !errors.Is(removeErr, os.ErrNotExist):
		return fmt.Errorf("remove lock: %w", removeErr)
	case unlockErr != nil:
		return fmt.Errorf("unlock: %w", unlockErr)
	case closeErr != nil:
		return fmt.Errorf("close lock file: %w", closeErr)
	}
	return nil
}

func (l *Lock) writeMetadata() error {
	data, err := json.MarshalIndent(l.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock metadata: %w", err)
	}
	data = append(data, '\n')

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := l.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write lock metadata: %w", err)
	}
	return l.file.Sync()
}

// readLockMetadata reads a lock file. A file holding only a process id is
// accepted too.
func readLockMetadata(path string) (LockMetadata, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LockMetadata{}, false
	}
	var meta LockMetadata
	if err := json.Unmarshal(data, &meta); err == nil && meta.PID > 0 {
		return meta, true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return LockMetadata{}, false
	}
	return LockMetadata{PID: pid}, true
}

func lockHeldError(path string, meta LockMetadata) error {
	holder := fmt.Sprintf("pid=%d", meta.PID)
	if meta.RunID != "" {
		holder += fmt.Sprintf(" run=%s host=%s since=%s", meta.RunID, meta.Host, meta.AcquiredAt)
	}
	return fmt.Errorf("%w (%s); if that process crashed, remove %s and try again", ErrLockHeld, holder, path)
}

func looksLikeRunner(command string) bool {
	for _, m := range runnerMarkers {
		if strings.Contains(command, m) {
			return true
		}
	}
	return false
}

// PSProbe looks pid up in the output of ps.
func PSProbe(pid int) (ProcessInfo, bool, error) {
	out, err := exec.Command("ps", "-axo", "pid=,command=").Output()
	if err != nil {
		return ProcessInfo{}, false, fmt.Errorf("list processes: %w", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		p, err := strconv.Atoi(fields[0])
		if err != nil || p != pid {
			continue
		}
		return ProcessInfo{PID: p, Command: strings.Join(fields[1:], " ")}, true, nil
	}
	if err := scanner.Err(); err != nil {
		return ProcessInfo{}, false, fmt.Errorf("parse process list: %w", err)
	}
	return ProcessInfo{}, false, nil
}
