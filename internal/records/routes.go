package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/audit"
)

// RoutesDeps holds the dependencies needed to register record routes.
type RoutesDeps struct {
	Store  *Store
	Audit  *audit.Store // optional
	Logger *zap.Logger  // optional
}

// RegisterRoutes wires up the HCP and interaction REST endpoints.
func RegisterRoutes(r chi.Router, deps RoutesDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &routeHandler{deps: deps, validate: validator.New(validator.WithRequiredStructEnabled())}

	r.Route("/api/hcps", func(r chi.Router) {
		r.Post("/", h.createHCP)
		r.Get("/", h.listHCPs)
		r.Get("/search", h.searchHCPs)
		r.Get("/{id}", h.getHCP)
	})
	r.Route("/api/interactions", func(r chi.Router) {
		r.Post("/", h.createInteraction)
		r.Get("/", h.listInteractions)
		r.Get("/{id}", h.getInteraction)
		r.Patch("/{id}", h.updateInteraction)
		r.Delete("/{id}", h.deleteInteraction)
	})
}

type routeHandler struct {
	deps     RoutesDeps
	validate *validator.Validate
}

func (h *routeHandler) createHCP(w http.ResponseWriter, r *http.Request) {
	var req HCPCreate
	if !h.decode(w, r, &req) {
		return
	}

	hcp, err := h.deps.Store.CreateHCP(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, audit.EntityHCP, hcp.ID, audit.ActionCreated, "", map[string]any{"name": hcp.Name})
	writeJSON(w, http.StatusCreated, hcp)
}

func (h *routeHandler) listHCPs(w http.ResponseWriter, r *http.Request) {
	hcps, err := h.deps.Store.ListHCPs(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hcps)
}

func (h *routeHandler) searchHCPs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	hcps, err := h.deps.Store.SearchHCPByName(r.Context(), q, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hcps)
}

func (h *routeHandler) getHCP(w http.ResponseWriter, r *http.Request) {
	hcp, err := h.deps.Store.GetHCP(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hcp)
}

func (h *routeHandler) createInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionCreate
	if !h.decode(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = ModeStructured
	}

	it, err := h.deps.Store.CreateInteraction(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, audit.EntityInteraction, it.ID, audit.ActionCreated, it.RepID, map[string]any{"mode": it.Mode})
	writeJSON(w, http.StatusCreated, it)
}

func (h *routeHandler) listInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := InteractionFilter{
		HCPID: q.Get("hcp_id"),
		RepID: q.Get("rep_id"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	items, err := h.deps.Store.ListInteractions(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *routeHandler) getInteraction(w http.ResponseWriter, r *http.Request) {
	it, err := h.deps.Store.GetInteraction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *routeHandler) updateInteraction(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}

	id := chi.URLParam(r, "id")
	it, err := h.deps.Store.UpdateInteraction(r.Context(), id, patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, audit.EntityInteraction, id, audit.ActionUpdated, it.RepID, FilterPatch(patch))
	writeJSON(w, http.StatusOK, it)
}

func (h *routeHandler) deleteInteraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Store.DeleteInteraction(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, audit.EntityInteraction, id, audit.ActionDeleted, "", nil)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *routeHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": validationDetail(err)})
		return false
	}
	return true
}

func (h *routeHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": err.Error()})
	case errors.Is(err, ErrInvalidPatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
	default:
		h.deps.Logger.Error("record operation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}
}

func (h *routeHandler) audit(r *http.Request, entity audit.EntityType, id string, action audit.Action, actor string, diff map[string]any) {
	if h.deps.Audit == nil {
		return
	}
	err := h.deps.Audit.Log(r.Context(), audit.Entry{
		EntityType: entity,
		EntityID:   id,
		Action:     action,
		Actor:      actor,
		Diff:       diff,
	})
	if err != nil {
		h.deps.Logger.Warn("writing audit entry", zap.String("entity_id", id), zap.Error(err))
	}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
