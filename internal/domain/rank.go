package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rank is the coarse usage-share classification of an application over a day.
type Rank string

const (
	RankHigh   Rank = "HIGH"
	RankMedium Rank = "MEDIUM"
	RankLow    Rank = "LOW"
)

// ParseRank normalizes s to a known rank, case-insensitively.
func ParseRank(s string) (Rank, error) {
	normalized := Rank(strings.ToUpper(strings.TrimSpace(s)))
	switch normalized {
	case RankHigh, RankMedium, RankLow:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid rank: %s (must be HIGH, MEDIUM, or LOW)", s)
	}
}

// Valid reports whether r is one of the three known ranks.
func (r Rank) Valid() bool {
	switch r {
	case RankHigh, RankMedium, RankLow:
		return true
	}
	return false
}

// UnmarshalJSON implements json.Unmarshaler to normalize rank to uppercase.
func (r *Rank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}
