package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dshills/eventsage/internal/indexer"
	"github.com/dshills/eventsage/pkg/logger"
)

type addEventResponse struct {
	Status string    `json:"status"`
	Event  eventView `json:"event"`
}

// EventsHandler handles event creation
type EventsHandler struct {
	events EventWriter
	token  string
	log    logger.Logger
}

// HandleAddEvent handles POST /api/add-event requests
func (h *EventsHandler) HandleAddEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if h.token == "" {
		writeError(w, http.StatusForbidden, "forbidden", ErrDisabled)
		return
	}
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="eventsage"`)
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	var in indexer.EventInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	ev, err := h.events.AddInput(r.Context(), in)
	if err != nil {
		h.log.Warn(r.Context(), "add event failed", logger.String("name", in.Name), logger.Error(err))
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addEventResponse{Status: "created", Event: newEventView(ev)})
}

func (h *EventsHandler) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return false
	}
	got := strings.TrimSpace(auth[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
