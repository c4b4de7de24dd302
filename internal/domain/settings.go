package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Settings is the type-specific configuration of a vault. Exactly one
// concrete shape exists per VaultType.
type Settings interface {
	Kind() VaultType
	Validate() error
	clone() Settings
}

// CashSettings configures a plain cash vault
type CashSettings struct {
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func (s *CashSettings) Kind() VaultType { return TypeCash }

func (s *CashSettings) Validate() error {
	return ValidateCurrency(s.Currency)
}

func (s *CashSettings) clone() Settings {
	c := *s
	return &c
}

// AntiFragileSettings configures a buffer vault that keeps a reserve against volatility
type AntiFragileSettings struct {
	Currency             string          `json:"currency"`
	BufferTarget         decimal.Decimal `json:"buffer_target"`
	VolatilityReservePct decimal.Decimal `json:"volatility_reserve_pct"`
}

func (s *AntiFragileSettings) Kind() VaultType { return TypeAntiFragile }

func (s *AntiFragileSettings) Validate() error {
	if err := ValidateCurrency(s.Currency); err != nil {
		return err
	}
	if s.BufferTarget.IsNegative() {
		return fmt.Errorf("buffer target cannot be negative")
	}
	if s.VolatilityReservePct.IsNegative() || s.VolatilityReservePct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("volatility reserve must be between 0 and 100 percent")
	}
	return nil
}

func (s *AntiFragileSettings) clone() Settings {
	c := *s
	return &c
}

// SharedSettings configures a vault shared between several members
type SharedSettings struct {
	Currency    string   `json:"currency"`
	Members     []string `json:"members"`
	SplitEvenly bool     `json:"split_evenly"`
}

func (s *SharedSettings) Kind() VaultType { return TypeShared }

func (s *SharedSettings) Validate() error {
	if err := ValidateCurrency(s.Currency); err != nil {
		return err
	}
	if len(s.Members) == 0 {
		return fmt.Errorf("shared vault needs at least one member")
	}
	seen := make(map[string]bool, len(s.Members))
	for _, m := range s.Members {
		key := strings.ToLower(strings.TrimSpace(m))
		if key == "" {
			return fmt.Errorf("member name cannot be empty")
		}
		if seen[key] {
			return fmt.Errorf("duplicate member: %s", m)
		}
		seen[key] = true
	}
	return nil
}

func (s *SharedSettings) clone() Settings {
	c := *s
	c.Members = append([]string(nil), s.Members...)
	return &c
}

// DefaultSettings returns the zero configuration for a vault type
func DefaultSettings(t VaultType, currency string) Settings {
	currency = strings.ToUpper(currency)
	switch t {
	case TypeCash:
		return &CashSettings{Currency: currency}
	case TypeAntiFragile:
		return &AntiFragileSettings{Currency: currency}
	case TypeShared:
		return &SharedSettings{Currency: currency, Members: []string{"me"}, SplitEvenly: true}
	}
	return nil
}

// CurrencyOf returns the currency configured in s, or "" when s is nil
func CurrencyOf(s Settings) string {
	switch v := s.(type) {
	case *CashSettings:
		return v.Currency
	case *AntiFragileSettings:
		return v.Currency
	case *SharedSettings:
		return v.Currency
	}
	return ""
}

type settingsEnvelope struct {
	Type     VaultType       `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

func encodeSettings(s Settings) (*settingsEnvelope, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return &settingsEnvelope{Type: s.Kind(), Settings: raw}, nil
}

func decodeSettings(env *settingsEnvelope) (Settings, error) {
	if env == nil {
		return nil, nil
	}
	var s Settings
	switch env.Type {
	case TypeCash:
		s = &CashSettings{}
	case TypeAntiFragile:
		s = &AntiFragileSettings{}
	case TypeShared:
		s = &SharedSettings{}
	default:
		return nil, fmt.Errorf("unknown settings type: %q", env.Type)
	}
	if err := json.Unmarshal(env.Settings, s); err != nil {
		return nil, fmt.Errorf("failed to decode %s settings: %w", env.Type, err)
	}
	return s, nil
}
