// Package clipboard copies vault identifiers to the system clipboard.
package clipboard

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

// Backend is a clipboard implementation
type Backend interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type system struct{}

func (system) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (system) WriteAll(text string) error { return clipboard.WriteAll(text) }

// System is the operating system clipboard
var System Backend = system{}

// CopyWithTimeout copies text to the clipboard and clears it after timeout.
// A zero timeout leaves the text in place.
func CopyWithTimeout(b Backend, text string, timeout time.Duration) error {
	if clipboard.Unsupported && b == System {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	if err := b.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	if timeout <= 0 {
		return nil
	}

	go func() {
		time.Sleep(timeout)

		// only clear what we put there
		current, err := b.ReadAll()
		if err == nil && current == text {
			_ = b.WriteAll("")
		}
	}()

	return nil
}

// IsAvailable returns true if clipboard functionality is available
func IsAvailable(b Backend) bool {
	_, err := b.ReadAll()
	return err == nil
}
