package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vaultbook/vaultbook/internal/domain"
)

// MaxOutputSize is the maximum allowed size for output to prevent memory exhaustion
const MaxOutputSize = 10 * 1024 * 1024 // 10MB

const timeLayout = "2006-01-02 15:04"

// writeString writes a string to the writer with error checking and size limits
func writeString(w io.Writer, s string) error {
	if len(s) > MaxOutputSize {
		return fmt.Errorf("output size %d exceeds maximum allowed size %d",
			len(s), MaxOutputSize)
	}

	n, err := fmt.Fprint(w, s)
	if err != nil {
		return fmt.Errorf("failed to write output (wrote %d bytes): %w", n, err)
	}

	// Ensure the output is flushed if it's buffered
	if f, ok := w.(interface{ Flush() error }); ok {
		if flushErr := f.Flush(); flushErr != nil {
			return fmt.Errorf("failed to flush output: %w", flushErr)
		}
	}

	return nil
}

// writeOutput is a helper function to write formatted output with error checking and size limits
func writeOutput(w io.Writer, format string, args ...interface{}) error {
	output := fmt.Sprintf(format, args...)
	return writeString(w, output)
}

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// checkDeferredErr logs errors from deferred calls and surfaces them when
// the command itself succeeded.
// Example: defer func() { a.checkDeferredErr(&err, "close catalog", svc.Close()) }()
func (a *app) checkDeferredErr(err *error, op string, cerr error) {
	if cerr == nil {
		return
	}
	a.log.Warn().Err(cerr).Str("op", op).Msg("error in deferred call")

	// Only override the error if it's not already set
	if *err == nil {
		*err = fmt.Errorf("%s: %w", op, cerr)
	}
}

// jsonOutput reports whether the command should print JSON
func (a *app) jsonOutput(flag bool) bool {
	return flag || (a.cfg != nil && a.cfg.OutputFormat == "json")
}

// vaultView is the JSON shape of a vault in command output
type vaultView struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Type             domain.VaultType `json:"type"`
	TransactionCount int              `json:"transaction_count"`
	IsArchived       bool             `json:"is_archived"`
	IsActive         bool             `json:"is_active"`
	SortOrder        int              `json:"sort_order"`
	CreatedAt        time.Time        `json:"created_at"`
	LastModified     time.Time        `json:"last_modified"`
	Settings         any              `json:"settings,omitempty"`
}

func entryView(e domain.VaultIndexEntry) vaultView {
	return vaultView{
		ID:               e.ID,
		Name:             e.Name,
		Type:             e.Type,
		TransactionCount: e.TransactionCount,
		IsArchived:       e.IsArchived,
		IsActive:         e.IsActive,
		SortOrder:        e.SortOrder,
		CreatedAt:        e.CreatedAt,
		LastModified:     e.LastModified,
	}
}

func entityView(v *domain.VaultEntity) vaultView {
	view := entryView(v.IndexEntry())
	if v.Settings != nil {
		view.Settings = v.Settings
	}
	return view
}

// describeSettings renders the type-specific settings as label/value pairs
func describeSettings(s domain.Settings) [][2]string {
	switch v := s.(type) {
	case *domain.CashSettings:
		return [][2]string{
			{"Currency", v.Currency},
			{"Opening balance", domain.FormatAmount(v.OpeningBalance, v.Currency)},
		}
	case *domain.AntiFragileSettings:
		return [][2]string{
			{"Currency", v.Currency},
			{"Buffer target", domain.FormatAmount(v.BufferTarget, v.Currency)},
			{"Volatility reserve", v.VolatilityReservePct.String() + "%"},
		}
	case *domain.SharedSettings:
		split := "custom"
		if v.SplitEvenly {
			split = "even"
		}
		return [][2]string{
			{"Currency", v.Currency},
			{"Members", strings.Join(v.Members, ", ")},
			{"Split", split},
		}
	}
	return nil
}

func activeMarker(active bool) string {
	if active {
		return "*"
	}
	return ""
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
