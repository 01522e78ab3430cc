package handlers

import (
	"net/http"

	"citegraph/application/commands"
	"citegraph/application/commands/bus"
	"citegraph/application/queries"
	querybus "citegraph/application/queries/bus"
	"citegraph/pkg/common"
	pkgerrors "citegraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PaperHandler handles paper and citation requests
type PaperHandler struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewPaperHandler creates a new paper handler
func NewPaperHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *PaperHandler {
	return &PaperHandler{
		commandBus:   commandBus,
		queryBus:     queryBus,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// ListPapers handles GET /papers
func (h *PaperHandler) ListPapers(w http.ResponseWriter, r *http.Request) {
	includeHidden, err := common.QueryBool(r, "include_hidden")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListPapersQuery{
		IncludeHidden: includeHidden,
		UserID:        common.CallerID(r, ""),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"papers": result})
}

// AddPaper handles POST /papers
func (h *PaperHandler) AddPaper(w http.ResponseWriter, r *http.Request) {
	var cmd commands.AddPaperCommand
	if err := common.ParseJSONBody(w, r, &cmd); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, result)
}

// GetPaper handles GET /papers/{paperID}
func (h *PaperHandler) GetPaper(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetPaperQuery{
		PaperID: chi.URLParam(r, "paperID"),
		UserID:  common.CallerID(r, ""),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, result)
}

// RelatedPapers handles GET /papers/{paperID}/related
func (h *PaperHandler) RelatedPapers(w http.ResponseWriter, r *http.Request) {
	includeHidden, err := common.QueryBool(r, "include_hidden")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetRelatedPapersQuery{
		PaperID:       chi.URLParam(r, "paperID"),
		UserID:        common.CallerID(r, ""),
		IncludeHidden: includeHidden,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, result)
}

// Search handles GET /search?q=
func (h *PaperHandler) Search(w http.ResponseWriter, r *http.Request) {
	includeHidden, err := common.QueryBool(r, "include_hidden")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	q := r.URL.Query().Get("q")
	result, err := h.queryBus.Ask(r.Context(), queries.SearchPapersQuery{
		Query:         q,
		IncludeHidden: includeHidden,
		UserID:        common.CallerID(r, ""),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"query":  q,
		"papers": result,
	})
}

// AddCitation handles POST /citations
func (h *PaperHandler) AddCitation(w http.ResponseWriter, r *http.Request) {
	var cmd commands.AddCitationCommand
	if err := common.ParseJSONBody(w, r, &cmd); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, result)
}

// Flagged handles GET /moderation/flagged
func (h *PaperHandler) Flagged(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListFlaggedPapersQuery{})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"papers": result})
}

func (h *PaperHandler) respond(w http.ResponseWriter, status int, data interface{}) {
	if err := common.RespondJSON(w, status, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
