package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ps "github.com/mitchellh/go-ps"
	"github.com/sirupsen/logrus"
)

// DefaultLockStaleness is how old a marker may be before it is assumed to
// be left over from a crashed run.
const DefaultLockStaleness = 2 * time.Hour

var ErrAlreadyRunning = errors.New("another pipeline run is already in progress")

// RunLock serializes agent runs inside one container through a marker file.
// A marker whose process is gone, or which is older than the staleness
// window, is taken over instead of blocking forever.
type RunLock struct {
	Path      string
	Staleness time.Duration
	Logger    *logrus.Logger
}

type lockMarker struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

func (l *RunLock) path() string {
	if l.Path != "" {
		return l.Path
	}
	return filepath.Join(os.TempDir(), "infracycle-agent.lock")
}

func (l *RunLock) staleness() time.Duration {
	if l.Staleness > 0 {
		return l.Staleness
	}
	return DefaultLockStaleness
}

// Acquire claims the lock or reports ErrAlreadyRunning with the holder's
// pid.
func (l *RunLock) Acquire() error {
	path := l.path()

	if data, err := os.ReadFile(path); err == nil {
		var marker lockMarker
		if err := json.Unmarshal(data, &marker); err != nil {
			l.warn().WithField("path", path).Warn("Unreadable lock marker; taking over")
		} else if l.holderActive(marker) {
			return fmt.Errorf("%w (pid %d since %s)", ErrAlreadyRunning, marker.PID, marker.StartedAt.Format(time.RFC3339))
		}
	}

	marker, err := json.Marshal(lockMarker{PID: os.Getpid(), StartedAt: time.Now()})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, marker, 0o644); err != nil {
		return fmt.Errorf("write lock marker %s: %w", path, err)
	}
	return nil
}

func (l *RunLock) Release() error {
	if err := os.Remove(l.path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *RunLock) holderActive(marker lockMarker) bool {
	if time.Since(marker.StartedAt) > l.staleness() {
		l.warn().WithField("pid", marker.PID).Warn("Stale lock marker; taking over")
		return false
	}

	proc, err := ps.FindProcess(marker.PID)
	if err != nil || proc == nil {
		l.warn().WithField("pid", marker.PID).Warn("Lock holder is gone; taking over")
		return false
	}
	return true
}

func (l *RunLock) warn() *logrus.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return logrus.StandardLogger()
}
