package handlers

import (
	"context"
	"fmt"

	"citegraph/application/commands"
	"citegraph/application/commands/bus"
	"citegraph/application/services"
)

// CastVoteHandler handles CastVoteCommand
type CastVoteHandler struct {
	votes *services.VoteService
}

// NewCastVoteHandler creates a new cast vote handler
func NewCastVoteHandler(votes *services.VoteService) *CastVoteHandler {
	return &CastVoteHandler{votes: votes}
}

// Handle executes the command
func (h *CastVoteHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.CastVoteCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, cmd)
	}
	req, err := c.Request()
	if err != nil {
		return nil, err
	}
	return h.votes.Cast(ctx, req)
}

// AddPaperHandler handles AddPaperCommand
type AddPaperHandler struct {
	papers *services.PaperService
}

// NewAddPaperHandler creates a new add paper handler
func NewAddPaperHandler(papers *services.PaperService) *AddPaperHandler {
	return &AddPaperHandler{papers: papers}
}

// Handle executes the command
func (h *AddPaperHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.AddPaperCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, cmd)
	}
	return h.papers.AddPaper(ctx, c.Input())
}

// AddCitationHandler handles AddCitationCommand
type AddCitationHandler struct {
	papers *services.PaperService
}

// NewAddCitationHandler creates a new add citation handler
func NewAddCitationHandler(papers *services.PaperService) *AddCitationHandler {
	return &AddCitationHandler{papers: papers}
}

// Handle executes the command
func (h *AddCitationHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.AddCitationCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, cmd)
	}
	citation, err := h.papers.AddCitation(ctx, c.CitingID, c.CitedID)
	if err != nil {
		return nil, err
	}
	return &commands.AddCitationResult{
		ID:       citation.ID,
		CitingID: citation.CitingID,
		CitedID:  citation.CitedID,
	}, nil
}

// Register wires every command handler into b
func Register(b *bus.CommandBus, votes *services.VoteService, papers *services.PaperService) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CastVoteCommand{}, NewCastVoteHandler(votes)},
		{commands.AddPaperCommand{}, NewAddPaperHandler(papers)},
		{commands.AddCitationCommand{}, NewAddCitationHandler(papers)},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}
