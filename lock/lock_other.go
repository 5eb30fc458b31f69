//go:build !unix

package lock

import "os"

// TryLock attempts to acquire l without blocking, using the portable
// create-exclusive lock-file convention of the teacher's
// modules/zeta/refs/filesystem.go openNotExists: an O_CREATE|O_EXCL open
// fails with os.ErrExist iff another holder's lock file still exists.
func (l *Lock) TryLock() error {
	if l.f != nil {
		return nil
	}
	if err := ensureDir(l.path); err != nil {
		return err
	}
	f, err := os.OpenFile(lockFileName(l.path), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return wrapErrExist(l.path, err)
	}
	l.f = f
	return nil
}

func unlockFile(f *os.File, lockPath string) error {
	_ = f.Close()
	return os.Remove(lockPath)
}
