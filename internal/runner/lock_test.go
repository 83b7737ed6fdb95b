package runner

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProbe(alive bool, command string) ProbeFunc {
	return func(pid int) (ProcessInfo, bool, error) {
		if !alive {
			return ProcessInfo{}, false, nil
		}
		return ProcessInfo{PID: pid, Command: command}, true, nil
	}
}

func TestAcquireLockFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", LockFile)

	l, err := AcquireLock(path, "default", fakeProbe(false, ""), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var meta LockMetadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, os.Getpid(), meta.PID)
	assert.Equal(t, "default", meta.Test)
	assert.Equal(t, l.RunID(), meta.RunID)

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "lock file should be removed on release")
}

func TestAcquireLockHeldInProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)
	l, err := AcquireLock(path, "t", fakeProbe(false, ""), nil)
	require.NoError(t, err)
	defer l.Release() //nolint:errcheck // test cleanup

	_, err = AcquireLock(path, "t", fakeProbe(false, ""), nil)
	assert.True(t, errors.Is(err, ErrLockHeld), "got %v", err)
}

func TestAcquireLockLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)
	meta := LockMetadata{RunID: "r1", PID: 424242, Host: "box"}
	data, _ := json.Marshal(meta)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err := AcquireLock(path, "t", fakeProbe(true, "/usr/bin/regtest run"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockHeld))
	assert.Contains(t, err.Error(), "run=r1")
	assert.Contains(t, err.Error(), path)
}

func TestAcquireLockOverridesStale(t *testing.T) {
	tests := []struct {
		name    string
		content string
		probe   ProbeFunc
	}{
		{"dead json holder", `{"pid": 424242, "run_id": "old"}`, fakeProbe(false, "")},
		{"dead plain pid", "424242\n", fakeProbe(false, "")},
		{"pid reused by another program", "424242", fakeProbe(true, "/usr/sbin/sshd")},
		{"garbage", "not a lock", fakeProbe(true, "regtest")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), LockFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			l, err := AcquireLock(path, "t", tt.probe, nil)
			require.NoError(t, err)
			meta, ok := readLockMetadata(path)
			require.True(t, ok)
			assert.Equal(t, os.Getpid(), meta.PID)
			require.NoError(t, l.Release())
		})
	}
}

func TestPSProbe(t *testing.T) {
	if _, err := os.Stat("/bin/ps"); err != nil {
		if _, err := os.Stat("/usr/bin/ps"); err != nil {
			t.Skip("ps not available")
		}
	}
	info, ok, err := PSProbe(os.Getpid())
	require.NoError(t, err)
	require.True(t, ok, "own pid %d not found", os.Getpid())
	assert.Equal(t, os.Getpid(), info.PID)

	_, ok, err = PSProbe(1 << 30)
	require.NoError(t, err)
	assert.False(t, ok, "pid %s should not exist", strconv.Itoa(1<<30))
}
