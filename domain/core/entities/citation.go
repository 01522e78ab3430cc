package entities

import (
	"strings"
	"time"

	"citegraph/domain/config"
	pkgerrors "citegraph/pkg/errors"
)

// Citation is a directed edge: the citing paper references the cited paper.
type Citation struct {
	ID        string    `json:"id"`
	CitingID  string    `json:"citing_id"`
	CitedID   string    `json:"cited_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCitation validates the endpoints and returns a citation without an id.
func NewCitation(citingID, citedID string, cfg *config.DomainConfig) (*Citation, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	citingID = strings.TrimSpace(citingID)
	citedID = strings.TrimSpace(citedID)
	if citingID == "" || citedID == "" {
		return nil, pkgerrors.NewValidationError("citing and cited paper ids are required")
	}
	if citingID == citedID && !cfg.AllowSelfCitations {
		return nil, pkgerrors.ErrInvalidCitation("a paper cannot cite itself")
	}

	return &Citation{
		CitingID:  citingID,
		CitedID:   citedID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Pair returns the ordered endpoint pair that identifies the citation
func (c *Citation) Pair() [2]string {
	return [2]string{c.CitingID, c.CitedID}
}

// Touches reports whether id is one of the endpoints
func (c *Citation) Touches(id string) bool {
	return c.CitingID == id || c.CitedID == id
}

// LessCanonical orders citations by (citing, cited, id).
func LessCanonical(a, b *Citation) bool {
	if a.CitingID != b.CitingID {
		return a.CitingID < b.CitingID
	}
	if a.CitedID != b.CitedID {
		return a.CitedID < b.CitedID
	}
	return a.ID < b.ID
}
