package commands

import "citegraph/pkg/utils"

// AddCitationCommand records that CitingID cites CitedID
type AddCitationCommand struct {
	CitingID string `json:"citingId" validate:"required"`
	CitedID  string `json:"citedId" validate:"required"`
}

// Validate validates the command. Self citation is a domain rule and is
// rejected by the citation entity.
func (c AddCitationCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// AddCitationResult is returned for a stored citation
type AddCitationResult struct {
	ID       string `json:"id"`
	CitingID string `json:"citingId"`
	CitedID  string `json:"citedId"`
}
