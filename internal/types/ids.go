package types

import (
	"github.com/google/uuid"
)

// RulesetID represents a UUIDv7 ruleset identifier.
// String alias enables type safety while maintaining JSON string
// serialization. UUIDv7 time-ordering clusters sequential inserts in
// B-tree indexes.
type RulesetID string

// NewRulesetID generates a UUIDv7 ruleset identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRulesetID() RulesetID {
	return RulesetID(uuid.Must(uuid.NewV7()).String())
}

// ParseRulesetID validates and converts a string to RulesetID.
// Rejects malformed UUIDs to prevent invalid IDs from entering storage.
func ParseRulesetID(s string) (RulesetID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RulesetID(s), nil
}
