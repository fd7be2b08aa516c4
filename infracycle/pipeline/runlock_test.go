package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devops-Bot-Official/infracycle-agent/logger"
)

func newLock(t *testing.T) *RunLock {
	return &RunLock{
		Path:   filepath.Join(t.TempDir(), "agent.lock"),
		Logger: logger.Discard(),
	}
}

func writeMarker(t *testing.T, path string, marker lockMarker) {
	t.Helper()
	data, err := json.Marshal(marker)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestRunLockRejectsSecondAcquire(t *testing.T) {
	lock := newLock(t)
	require.NoError(t, lock.Acquire())

	second := &RunLock{Path: lock.Path, Logger: logger.Discard()}
	err := second.Acquire()
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunLockReleaseAllowsReacquire(t *testing.T) {
	lock := newLock(t)
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Acquire())
}

func TestRunLockTakesOverStaleMarker(t *testing.T) {
	lock := newLock(t)
	writeMarker(t, lock.Path, lockMarker{
		PID:       os.Getpid(),
		StartedAt: time.Now().Add(-3 * time.Hour),
	})

	require.NoError(t, lock.Acquire())
}

func TestRunLockTakesOverDeadHolder(t *testing.T) {
	lock := newLock(t)
	// Far beyond any real pid space.
	writeMarker(t, lock.Path, lockMarker{PID: 99999999, StartedAt: time.Now()})

	require.NoError(t, lock.Acquire())

	data, err := os.ReadFile(lock.Path)
	require.NoError(t, err)
	var marker lockMarker
	require.NoError(t, json.Unmarshal(data, &marker))
	assert.Equal(t, os.Getpid(), marker.PID)
}

func TestRunLockTakesOverCorruptMarker(t *testing.T) {
	lock := newLock(t)
	require.NoError(t, os.WriteFile(lock.Path, []byte("not json"), 0o644))

	require.NoError(t, lock.Acquire())
}

func TestRunLockReleaseWithoutMarker(t *testing.T) {
	lock := newLock(t)
	assert.NoError(t, lock.Release())
}
