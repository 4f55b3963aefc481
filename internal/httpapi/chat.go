package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dshills/eventsage/pkg/logger"
)

type chatRequest struct {
	Query string `json:"query"`
}

// Answer and Response carry the same text; the web client reads answer
type chatResponse struct {
	Answer   string      `json:"answer"`
	Response string      `json:"response"`
	Strategy string      `json:"strategy"`
	Count    *int        `json:"count,omitempty"`
	Events   []eventView `json:"events"`
}

// ChatHandler handles chat requests
type ChatHandler struct {
	qa  QA
	log logger.Logger
}

// HandleChat handles POST /api/chat requests
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	h.log.Info(r.Context(), "incoming query", logger.String("query", req.Query), logger.String("request_id", logger.RequestID(r.Context())))
	ans, err := h.qa.Ask(r.Context(), req.Query)
	if err != nil {
		h.log.Error(r.Context(), "chat failed", logger.Error(err))
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:   ans.Text,
		Response: ans.Text,
		Strategy: string(ans.Strategy),
		Count:    ans.Count,
		Events:   rankedViews(ans.Events),
	})
}
