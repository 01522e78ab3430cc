package handlers

import (
	"net/http"

	"citegraph/application/queries"
	querybus "citegraph/application/queries/bus"
	"citegraph/pkg/common"
	pkgerrors "citegraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GraphHandler handles graph expansion requests
type GraphHandler struct {
	queryBus     *querybus.QueryBus
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		queryBus:     queryBus,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// Expand handles GET /graph/{seedID}?depth=&direction=
func (h *GraphHandler) Expand(w http.ResponseWriter, r *http.Request) {
	depth, err := common.QueryInt(r, "depth")
	if err != nil {
		h.errorHandler.Handle(w, r, pkgerrors.GetAppError(err).WithCode(pkgerrors.CodeInvalidDepth))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ExpandGraphQuery{
		SeedID:    chi.URLParam(r, "seedID"),
		Depth:     depth,
		UserID:    common.CallerID(r, ""),
		Direction: r.URL.Query().Get("direction"),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := common.RespondJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
