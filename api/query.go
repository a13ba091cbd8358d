package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taxline/taxline/internal/log"
	"github.com/taxline/taxline/internal/pipeline"
)

// QueryProcessor answers advisory questions. Defined here so tests can
// substitute the pipeline.
type QueryProcessor interface {
	Process(ctx context.Context, req pipeline.QueryRequest) (*pipeline.QueryResponse, error)
}

// QueryHandler handles the query endpoint.
type QueryHandler struct {
	processor QueryProcessor
	logger    log.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(processor QueryProcessor, logger log.Logger) *QueryHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &QueryHandler{processor: processor, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req pipeline.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	resp, err := h.processor.Process(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		h.logger.Error("query processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "processing_failed", "failed to process query")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
