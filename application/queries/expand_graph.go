package queries

import (
	"strings"

	pkgerrors "citegraph/pkg/errors"
)

// ExpandGraphQuery materialises the neighbourhood of a seed paper.
// A nil Depth selects the configured default.
type ExpandGraphQuery struct {
	SeedID    string
	Depth     *int
	UserID    string
	Direction string
}

// Validate validates the ExpandGraphQuery. Depth and direction bounds are
// enforced by the expander, which owns the configuration.
func (q ExpandGraphQuery) Validate() error {
	if strings.TrimSpace(q.SeedID) == "" {
		return pkgerrors.NewValidationError("seed id is required")
	}
	return nil
}
