// Package wakelock keeps the machine awake while a transfer is in flight.
// It is strictly best-effort: when no inhibitor mechanism is available the
// lock is a no-op and transfers proceed without it.
package wakelock

import (
	"os/exec"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Lock holds the machine awake between Acquire and Release. Holds are
// counted: overlapping transfers each acquire, and the inhibitor stays up
// until the last one releases. Releasing an unheld lock is a no-op.
type Lock struct {
	log     *logrus.Logger
	mu      sync.Mutex
	holders int
	cmd     *exec.Cmd
}

func New(log *logrus.Logger) *Lock {
	return &Lock{log: log}
}

// Acquire tries to inhibit sleep. Failure is logged and swallowed.
func (l *Lock) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holders++
	if l.holders > 1 || l.cmd != nil {
		return
	}

	if runtime.GOOS != "linux" {
		l.log.Debug("No sleep inhibitor on this platform")
		return
	}
	path, err := exec.LookPath("systemd-inhibit")
	if err != nil {
		l.log.Debug("systemd-inhibit not available, skipping wake lock")
		return
	}

	cmd := exec.Command(path,
		"--what=sleep:idle",
		"--who=purrdrop",
		"--why=file transfer in progress",
		"sleep", "infinity")
	if err := cmd.Start(); err != nil {
		l.log.WithError(err).Debug("Could not acquire wake lock")
		return
	}
	l.cmd = cmd
	l.log.Debug("Wake lock acquired")
}

// Release drops one hold, and the inhibitor with it when it was the last.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders == 0 {
		return
	}
	l.holders--
	if l.holders > 0 || l.cmd == nil {
		return
	}
	l.cmd.Process.Kill()
	l.cmd.Wait()
	l.cmd = nil
	l.log.Debug("Wake lock released")
}
