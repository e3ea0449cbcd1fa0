package domain

import (
	"regexp"

	"github.com/google/uuid"
)

var idempotencyKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.:]{1,128}$`)

// NewIdempotencyKey generates a key for callers that did not supply one.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// ValidIdempotencyKey reports whether a caller-supplied key is acceptable.
func ValidIdempotencyKey(key string) bool {
	return idempotencyKeyPattern.MatchString(key)
}
