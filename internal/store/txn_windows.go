//go:build windows

package store

// dirSyncUnsupported is always true: directory handles cannot be flushed on Windows
func dirSyncUnsupported(err error) bool {
	return true
}
