package rag

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted query, in characters.
const MaxQueryLength = 1024

// ErrInvalidQuery wraps every rejection by ValidateQuery. Its message is
// safe to show to clients.
var ErrInvalidQuery = errors.New("invalid query")

// blockedPatterns are instruction-override and destructive phrasings, matched
// case-insensitively anywhere in the query.
var blockedPatterns = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"delete all data",
	"drop table",
	"rm -rf",
}

// ValidateQuery trims q and rejects empty, oversized and blocklisted input.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", fmt.Errorf("%w: query is too long (max %d characters)", ErrInvalidQuery, MaxQueryLength)
	}
	lowered := strings.ToLower(strings.Join(strings.Fields(q), " "))
	for _, p := range blockedPatterns {
		if strings.Contains(lowered, p) {
			return "", fmt.Errorf("%w: query contains prohibited patterns", ErrInvalidQuery)
		}
	}
	return q, nil
}
