package agent

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ConversationalRequest is the body of POST /api/agent/conversational.
type ConversationalRequest struct {
	Text  string `json:"text" validate:"required"`
	RepID string `json:"rep_id,omitempty"`
}

// EditRequest is the body of POST /api/agent/edit/{id}.
type EditRequest struct {
	EditRequest string `json:"edit_request" validate:"required"`
	RepID       string `json:"rep_id,omitempty"`
}

// RegisterRoutes mounts the agent endpoints. Failed operations answer 400
// with {"detail": <error>}.
func RegisterRoutes(r chi.Router, p *Pipeline) {
	h := &routeHandler{pipeline: p, validate: validator.New()}
	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/conversational", h.conversational)
		r.Post("/edit/{id}", h.edit)
	})
}

type routeHandler struct {
	pipeline *Pipeline
	validate *validator.Validate
}

func (h *routeHandler) conversational(w http.ResponseWriter, r *http.Request) {
	var req ConversationalRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.pipeline.Process(r.Context(), req.Text, req.RepID)
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, orDefault(res.Error, "Processing failed"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *routeHandler) edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.pipeline.Edit(r.Context(), chi.URLParam(r, "id"), req.EditRequest, req.RepID)
	if !res.Success {
		writeDetail(w, http.StatusBadRequest, orDefault(res.Error, "Edit failed"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *routeHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
