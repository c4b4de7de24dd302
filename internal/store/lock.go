package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrLockNotHeld is returned when releasing a lock that isn't held
var ErrLockNotHeld = errors.New("lock not held")

// FileLock is an advisory OS lock on a file inside the data directory.
// Holding it marks this process as the only writer of the catalog.
type FileLock struct {
	path     string
	lockFile *os.File
}

// NewFileLock creates a lock for the given lock file path
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires the lock, retrying until timeout. It returns ErrCatalogLocked
// when another process keeps holding it.
func (fl *FileLock) Lock(timeout time.Duration) error {
	if fl.lockFile != nil {
		return errors.New("lock already held")
	}

	if err := os.MkdirAll(filepath.Dir(fl.path), dirMode); err != nil {
		return err
	}

	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := platformLock(file); err == nil {
			break
		}
		if time.Now().After(deadline) {
			file.Close()
			return ErrCatalogLocked
		}
		time.Sleep(50 * time.Millisecond)
	}

	// The pid is informational only; the OS lock is what excludes other processes
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	fl.lockFile = file
	return nil
}

// Unlock releases the lock. The lock file stays on disk: a waiter may already
// hold it open, and a fresh file at the same path would be a second lock.
func (fl *FileLock) Unlock() error {
	if fl.lockFile == nil {
		return ErrLockNotHeld
	}

	err := platformUnlock(fl.lockFile)
	if closeErr := fl.lockFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	fl.lockFile = nil
	return err
}

// IsLocked returns true if the lock is currently held
func (fl *FileLock) IsLocked() bool {
	return fl.lockFile != nil
}
