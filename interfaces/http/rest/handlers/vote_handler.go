package handlers

import (
	"net/http"

	"citegraph/application/commands"
	"citegraph/application/commands/bus"
	"citegraph/pkg/common"
	pkgerrors "citegraph/pkg/errors"

	"go.uber.org/zap"
)

// VoteHandler handles vote requests
type VoteHandler struct {
	commandBus   *bus.CommandBus
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewVoteHandler creates a new vote handler
func NewVoteHandler(commandBus *bus.CommandBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *VoteHandler {
	return &VoteHandler{
		commandBus:   commandBus,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// CastVoteRequest represents the request body for casting a vote. Value 0
// clears the caller's vote.
type CastVoteRequest struct {
	TargetKind string `json:"targetKind"`
	TargetID   string `json:"targetId"`
	UserID     string `json:"userId,omitempty"`
	Value      *int   `json:"value"`
}

// CastVote handles POST /votes
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if req.Value == nil {
		h.errorHandler.Handle(w, r, pkgerrors.NewValidationError("value is required").WithDetail("field", "value"))
		return
	}

	cmd := commands.CastVoteCommand{
		TargetKind: req.TargetKind,
		TargetID:   req.TargetID,
		UserID:     common.CallerID(r, req.UserID),
		Value:      *req.Value,
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := common.RespondJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
