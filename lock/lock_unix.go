//go:build unix

package lock

import (
	"os"

	"golang.org/x/sys/unix"
)

// TryLock attempts to acquire l without blocking, using flock(2) over a
// plain O_CREATE file. flock is held for the lifetime of the open file
// descriptor, so releasing it is just closing the fd (no stale lock
// file risk the portable fallback has to guard against).
func (l *Lock) TryLock() error {
	if l.f != nil {
		return nil
	}
	if err := ensureDir(l.path); err != nil {
		return err
	}
	f, err := os.OpenFile(lockFileName(l.path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return wrapErrExist(l.path, os.ErrExist)
		}
		return err
	}
	l.f = f
	return nil
}

func unlockFile(f *os.File, _ string) error {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}
