// Package pid guards against two tuning daemons running at once.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/kerntune/internal/errors"
)

const (
	pidFile = "kerntune.pid"
)

// Path returns the pid file location under dir, or the temp dir if dir
// is empty.
func Path(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}

	return filepath.Join(dir, pidFile)
}

// Write records the current process ID in dir. It fails with
// ErrAlreadyRunning if the recorded process is still alive; a stale
// file is replaced.
func Write(dir string) error {
	errFactory := errors.New()
	path := Path(dir)

	if running, err := alive(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	} else if running {
		return errFactory.WithData(errors.ErrAlreadyRunning, struct {
			Path string
		}{path})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(path string) (bool, error) {
	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 {
		// unparseable file is treated as stale
		return false, nil //nolint:nilerr
	}
	if pid == os.Getpid() {
		return false, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil //nolint:nilerr
	}

	return process.Signal(syscall.Signal(0)) == nil, nil
}

// Remove deletes the pid file in dir.
func Remove(dir string) error {
	errFactory := errors.New()
	path := Path(dir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
