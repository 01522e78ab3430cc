package queries

import (
	"citegraph/pkg/utils"
)

// ListPapersQuery lists papers in listing order. Hidden papers are left
// out unless IncludeHidden is set.
type ListPapersQuery struct {
	IncludeHidden bool
	UserID        string
}

// Validate validates the ListPapersQuery
func (q ListPapersQuery) Validate() error {
	return nil
}

// GetPaperQuery fetches one paper with its tally
type GetPaperQuery struct {
	PaperID string `validate:"required"`
	UserID  string
}

// Validate validates the GetPaperQuery
func (q GetPaperQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// SearchPapersQuery runs a case-insensitive substring search
type SearchPapersQuery struct {
	Query         string `validate:"max=200"`
	IncludeHidden bool
	UserID        string
}

// Validate validates the SearchPapersQuery
func (q SearchPapersQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetRelatedPapersQuery returns the direct citation neighbours of a paper
type GetRelatedPapersQuery struct {
	PaperID       string `validate:"required"`
	UserID        string
	IncludeHidden bool
}

// Validate validates the GetRelatedPapersQuery
func (q GetRelatedPapersQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListFlaggedPapersQuery is the moderation listing of downvoted papers
type ListFlaggedPapersQuery struct{}

// Validate validates the ListFlaggedPapersQuery
func (q ListFlaggedPapersQuery) Validate() error {
	return nil
}
