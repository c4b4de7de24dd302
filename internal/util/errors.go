// Package util provides utility functions and helpers used throughout vaultbook.
// It maps domain errors to process exit codes.
package util

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/store"
)

// Exit codes
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitLocked       = 3
	ExitIntegrityErr = 4
	ExitNotFound     = 5
)

// ExitCode maps err to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, store.ErrCatalogLocked):
		return ExitLocked
	case errors.Is(err, catalog.ErrConsistency), errors.Is(err, store.ErrCatalogCorrupted):
		return ExitIntegrityErr
	case errors.Is(err, catalog.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, catalog.ErrValidation),
		errors.Is(err, catalog.ErrArchivedVault),
		errors.Is(err, catalog.ErrNoActiveVault):
		return ExitInvalidInput
	}
	return ExitError
}

// hint returns a follow-up suggestion for errors the user can act on
func hint(err error) string {
	switch {
	case errors.Is(err, store.ErrCatalogLocked):
		return "Another vaultbook process is using the data directory."
	case errors.Is(err, catalog.ErrConsistency):
		return "Run 'vaultbook doctor' to diagnose issues."
	case errors.Is(err, catalog.ErrNoActiveVault):
		return "Select a vault with 'vaultbook use <vault>'."
	}
	return ""
}

// ExitWithCode exits the program with the specified code and message
func ExitWithCode(code int, format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	os.Exit(code)
}

// PrintError writes err and its hint to w and returns the exit code
func PrintError(w io.Writer, err error, context string) int {
	if err == nil {
		return ExitOK
	}
	if context != "" {
		fmt.Fprintf(w, "Error: %s - %v\n", context, err)
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	if h := hint(err); h != "" {
		fmt.Fprintln(w, h)
	}
	return ExitCode(err)
}

// HandleError handles errors and exits with appropriate code
func HandleError(err error, context string) {
	if err == nil {
		return
	}
	ExitWithCode(PrintError(os.Stderr, err, context), "")
}

// WrapError wraps an error with additional context
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
