package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockHeldError is returned when another server already owns the session.
type LockHeldError struct {
	PID  int
	Addr string
	Path string
}

func (e *LockHeldError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("session lock held by PID %d serving %s (%s)", e.PID, e.Addr, e.Path)
	}
	return fmt.Sprintf("session lock held by PID %d (%s)", e.PID, e.Path)
}

// Info is what a running server records in its lock file.
type Info struct {
	PID  int
	Addr string
	Time time.Time
}

// Lock represents an acquired session lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on the session directory and records the
// server's listen address. Returns LockHeldError if another process holds it.
func Acquire(sessionDir, addr string) (*Lock, error) {
	lockPath := filepath.Join(sessionDir, "LOCK")

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(lockPath)
		info := parse(string(data))
		_ = f.Close()
		return nil, &LockHeldError{PID: info.PID, Addr: info.Addr, Path: lockPath}
	}

	l := &Lock{file: f, path: lockPath}
	if err := l.write(Info{PID: os.Getpid(), Addr: addr, Time: time.Now().UTC()}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// SetAddr rewrites the recorded listen address, e.g. once an ephemeral port
// has been bound.
func (l *Lock) SetAddr(addr string) error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.write(Info{PID: os.Getpid(), Addr: addr, Time: time.Now().UTC()})
}

func (l *Lock) write(info Info) error {
	if err := l.file.Truncate(0); err != nil {
		return err
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return err
	}
	content := fmt.Sprintf("pid=%d\naddr=%s\ntime=%s\n", info.PID, info.Addr, info.Time.Format(time.RFC3339))
	_, err := l.file.WriteString(content)
	return err
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove lock file before closing to avoid stale files.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// Read returns the info recorded by the server holding sessionDir's lock.
func Read(sessionDir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, "LOCK"))
	if err != nil {
		return Info{}, err
	}
	return parse(string(data)), nil
}

func parse(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "addr":
			info.Addr = value
		case "time":
			info.Time, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info
}
