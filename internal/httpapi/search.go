package httpapi

import (
	"net/http"
)

type searchResponse struct {
	Strategy string      `json:"strategy"`
	Intent   string      `json:"intent"`
	Count    *int        `json:"count,omitempty"`
	Events   []eventView `json:"events"`
}

// SearchHandler handles retrieval-only requests
type SearchHandler struct {
	qa QA
}

// HandleSearch handles GET /api/search?q= requests
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	res, err := h.qa.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Strategy: string(res.Strategy),
		Intent:   string(res.Classification.Intent),
		Count:    res.Count,
		Events:   rankedViews(res.Events),
	})
}
