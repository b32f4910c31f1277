package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ============================================================
// Entry identifiers
// ============================================================

// EntryID identifies an entry within its ledger. Historic records carry
// numeric ids (wall-clock timestamps); new records carry random tokens.
// Both decode into the same string form so lookups compare equal across
// schema generations.
type EntryID string

// UnmarshalJSON accepts a JSON string or a JSON number.
func (id *EntryID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = EntryID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("entry id must be string or number: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

// Normalize returns the comparison form of an id: trimmed string
// coercion, so "1718000000" and 1718000000 match.
func (id EntryID) Normalize() string {
	return strings.TrimSpace(string(id))
}

// Equal compares two ids by normalized string form.
func (id EntryID) Equal(other EntryID) bool {
	return id.Normalize() == other.Normalize()
}

// ============================================================
// Raw (possibly legacy) ledger shape
// ============================================================

// RawLedger is a month record as stored, before canonicalization.
// Income may be an itemized array (canonical), a bare number (legacy
// scalar) or absent entirely; the migrator resolves the shape.
type RawLedger struct {
	Income   json.RawMessage `json:"income,omitempty"`
	Expenses []ExpenseEntry  `json:"expenses"`
}

// RawFromLedger wraps a canonical ledger back into the stored shape.
func RawFromLedger(l *MonthlyLedger) (RawLedger, error) {
	income, err := json.Marshal(l.Income)
	if err != nil {
		return RawLedger{}, err
	}
	return RawLedger{Income: income, Expenses: l.Expenses}, nil
}

// ============================================================
// Month keys
// ============================================================

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidMonthKey reports whether key has the "YYYY-MM" form.
func ValidMonthKey(key string) bool {
	return monthKeyRe.MatchString(key)
}

// CurrentMonthKey returns the current calendar month as "YYYY-MM".
func CurrentMonthKey(now time.Time) string {
	return now.Format("2006-01")
}

// MonthStart returns the first day of the month as "YYYY-MM-DD".
func MonthStart(monthKey string) string {
	return monthKey + "-01"
}
