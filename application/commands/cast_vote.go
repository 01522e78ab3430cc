package commands

import "citegraph/domain/core/entities"

// CastVoteCommand casts, changes or clears one user's vote on a paper or citation
type CastVoteCommand struct {
	TargetKind string `json:"targetKind"`
	TargetID   string `json:"targetId"`
	UserID     string `json:"userId"`
	Value      int    `json:"value"`
}

// Validate checks the value and kind before anything else
func (c CastVoteCommand) Validate() error {
	_, err := c.Request()
	return err
}

// Request converts the command into a validated ledger request
func (c CastVoteCommand) Request() (entities.VoteRequest, error) {
	return entities.NewVoteRequest(c.UserID, c.TargetKind, c.TargetID, c.Value)
}
