package valueobjects

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier for papers, citations and votes.
// Callers must treat ids as opaque; stores other than the in-memory and
// DynamoDB ones may hand out their own formats.
func NewID() string {
	return uuid.New().String()
}

// NormalizeID trims surrounding whitespace from a caller-supplied id.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
