// Package domain defines the core data structures of the vault catalog.
// It contains the vault records, their catalog projection and the transactions
// stored inside each vault.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// VaultType enumerates the kinds of vault
type VaultType string

const (
	TypeCash        VaultType = "cash"
	TypeAntiFragile VaultType = "anti_fragile"
	TypeShared      VaultType = "shared"
)

// VaultTypes lists every known vault type in display order
var VaultTypes = []VaultType{TypeCash, TypeAntiFragile, TypeShared}

// Valid reports whether t is a known vault type
func (t VaultType) Valid() bool {
	switch t {
	case TypeCash, TypeAntiFragile, TypeShared:
		return true
	}
	return false
}

// Label returns the human readable name used in listings and search
func (t VaultType) Label() string {
	switch t {
	case TypeCash:
		return "Cash"
	case TypeAntiFragile:
		return "Anti-Fragile"
	case TypeShared:
		return "Shared"
	}
	return string(t)
}

// ParseVaultType accepts the canonical names plus a few spellings users type
func ParseVaultType(raw string) (VaultType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "cash":
		return TypeCash, nil
	case "anti_fragile", "antifragile":
		return TypeAntiFragile, nil
	case "shared":
		return TypeShared, nil
	}
	return "", fmt.Errorf("unknown vault type: %q (valid: cash, anti_fragile, shared)", raw)
}

// VaultEntity is the full vault record held by the metadata store
type VaultEntity struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             VaultType `json:"type"`
	Settings         Settings  `json:"settings"`
	CreatedAt        time.Time `json:"created_at"`
	LastModified     time.Time `json:"last_modified"`
	TransactionCount int       `json:"transaction_count"`
	IsArchived       bool      `json:"is_archived"`
	SortOrder        int       `json:"sort_order"`

	// IsActive is derived from the active vault selector and never persisted
	IsActive bool `json:"-"`
}

// IndexEntry projects the entity onto its catalog entry
func (v *VaultEntity) IndexEntry() VaultIndexEntry {
	return VaultIndexEntry{
		ID:               v.ID,
		Name:             v.Name,
		Type:             v.Type,
		TransactionCount: v.TransactionCount,
		IsArchived:       v.IsArchived,
		SortOrder:        v.SortOrder,
		CreatedAt:        v.CreatedAt,
		LastModified:     v.LastModified,
		IsActive:         v.IsActive,
	}
}

// Clone returns a copy that shares no mutable state with v
func (v *VaultEntity) Clone() *VaultEntity {
	c := *v
	if v.Settings != nil {
		c.Settings = v.Settings.clone()
	}
	return &c
}

// MarshalJSON writes settings as a type-tagged envelope
func (v VaultEntity) MarshalJSON() ([]byte, error) {
	type plain VaultEntity
	env, err := encodeSettings(v.Settings)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Settings *settingsEnvelope `json:"settings,omitempty"`
	}{plain(v), env})
}

// UnmarshalJSON decodes the type-tagged settings envelope
func (v *VaultEntity) UnmarshalJSON(data []byte) error {
	type plain VaultEntity
	var aux struct {
		plain
		Settings *settingsEnvelope `json:"settings,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = VaultEntity(aux.plain)
	settings, err := decodeSettings(aux.Settings)
	if err != nil {
		return err
	}
	v.Settings = settings
	return nil
}

// VaultIndexEntry is the catalog's lightweight projection of a VaultEntity
type VaultIndexEntry struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             VaultType `json:"type"`
	TransactionCount int       `json:"transaction_count"`
	IsArchived       bool      `json:"is_archived"`
	SortOrder        int       `json:"sort_order"`
	CreatedAt        time.Time `json:"created_at"`
	LastModified     time.Time `json:"last_modified"`

	IsActive bool `json:"-"`
}

// Transaction is a single financial record stored inside one vault
type Transaction struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Category  string          `json:"category,omitempty"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the fields a data store relies on
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date is required")
	}
	if err := ValidateCurrency(t.Currency); err != nil {
		return err
	}
	return nil
}

// Display formats the amount with its currency symbol
func (t *Transaction) Display() string {
	return FormatAmount(t.Amount, t.Currency)
}

// ValidateCurrency rejects ISO codes unknown to the money package
func ValidateCurrency(code string) error {
	if code == "" {
		return fmt.Errorf("currency is required")
	}
	if money.GetCurrency(strings.ToUpper(code)) == nil {
		return fmt.Errorf("unknown currency: %s", code)
	}
	return nil
}

// FormatAmount renders amount in minor units through the currency formatter
func FormatAmount(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return amount.String() + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
