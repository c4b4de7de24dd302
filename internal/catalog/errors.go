package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Error variables for catalog operations. Callers match them with errors.Is.
var (
	// ErrValidation is returned for invalid input: empty names, bad settings, bad permutations
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateName is returned when a name collides with another non-archived vault
	ErrDuplicateName = fmt.Errorf("%w: duplicate vault name", ErrValidation)
	// ErrNotFound is returned for operations on unknown vault ids
	ErrNotFound = errors.New("vault not found")
	// ErrArchivedVault is returned when activating an archived vault
	ErrArchivedVault = errors.New("vault is archived")
	// ErrNoActiveVault is returned by transaction operations when no vault is active
	ErrNoActiveVault = errors.New("no active vault")
	// ErrIO is returned when the underlying persistence fails
	ErrIO = errors.New("storage failure")
	// ErrConsistency is returned when catalog and vault data disagree
	ErrConsistency = errors.New("catalog inconsistency")
)

// ConsistencyError lists the divergences a reconciliation pass found
type ConsistencyError struct {
	Divergences []Divergence
}

func (e *ConsistencyError) Error() string {
	parts := make([]string, 0, len(e.Divergences))
	for _, d := range e.Divergences {
		parts = append(parts, d.String())
	}
	return fmt.Sprintf("%s: %d divergence(s): %s", ErrConsistency, len(e.Divergences), strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrConsistency) match a *ConsistencyError
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
