package newsletter

import (
	"encoding/json"
	"net/http"

	"github.com/adiwidodo/backend-belanja/internal/common"
)

// Handler exposes HTTP handlers for newsletter endpoints.
type Handler struct {
	Service *Service
}

type emailRequest struct {
	Email string `json:"email"`
}

// Subscribe handles POST /api/v1/newsletter/subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	subscribed, err := h.Service.Subscribe(r.Context(), req.Email)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"subscribed": subscribed})
}

// Unsubscribe handles POST /api/v1/newsletter/unsubscribe.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if err := h.Service.Unsubscribe(r.Context(), req.Email); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
