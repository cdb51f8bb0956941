package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by AcquirePIDFile when another widgetd holds
// the lock for the same runtime directory.
var ErrAlreadyRunning = errors.New("widgetd daemon already running")

// PIDFile is the daemon's single-instance lock. The file holds the owner's
// PID and an exclusive flock; the kernel drops the lock when the owner
// exits, so a file left behind by a crash never blocks the next start.
type PIDFile struct {
	path string
	f    *os.File
}

// AcquirePIDFile takes the lock at path and records the current PID in it.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create runtime directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, perr := ReadPID(path); perr == nil {
				return nil, fmt.Errorf("%w (PID %d, %s)", ErrAlreadyRunning, pid, path)
			}
			return nil, fmt.Errorf("%w (%s)", ErrAlreadyRunning, path)
		}
		return nil, fmt.Errorf("lock PID file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return &PIDFile{path: path, f: f}, nil
}

// Path returns the location of the lock file.
func (p *PIDFile) Path() string { return p.path }

// Release removes the file and drops the lock. Calling it twice is safe.
func (p *PIDFile) Release() error {
	if p.f == nil {
		return nil
	}
	err := os.Remove(p.path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if cerr := p.f.Close(); err == nil {
		err = cerr
	}
	p.f = nil
	if err != nil {
		return fmt.Errorf("release PID file: %w", err)
	}
	return nil
}

// ReadPID returns the PID recorded at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("PID file %s: %w", path, err)
	}
	return pid, nil
}
