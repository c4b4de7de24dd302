//go:build unix

package store

import (
	"errors"
	"syscall"
)

// dirSyncUnsupported reports filesystems that reject fsync on a directory
func dirSyncUnsupported(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTSUP)
}
