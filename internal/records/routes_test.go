package records

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/db"
)

func setupRouter(t *testing.T) (chi.Router, *Store, *audit.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	auditStore := audit.NewStore(database)
	r := chi.NewRouter()
	RegisterRoutes(r, RoutesDeps{Store: store, Audit: auditStore})
	return r, store, auditStore
}

func doJSON(t *testing.T, r http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHTTPCreateAndSearchHCP(t *testing.T) {
	r, _, _ := setupRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/hcps", map[string]any{"name": "Dr. Meera Patel", "speciality": "Cardiology"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created HCP
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	rec = doJSON(t, r, http.MethodGet, "/api/hcps/search?q=meera", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []HCP
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&found))
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	rec = doJSON(t, r, http.MethodGet, "/api/hcps/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/hcps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []HCP
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 1)
}

func TestHTTPCreateHCPValidation(t *testing.T) {
	r, _, _ := setupRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/hcps", map[string]any{"speciality": "Cardiology"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body["detail"], "Name")
}

func TestHTTPGetHCPNotFound(t *testing.T) {
	r, _, _ := setupRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/api/hcps/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPInteractionLifecycle(t *testing.T) {
	r, _, auditStore := setupRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/interactions", map[string]any{
		"rep_id":           "rep_7",
		"summary":          "Lunch meeting",
		"sentiment":        "neutral",
		"materials_shared": []any{map[string]any{"material_type": "brochure", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var it Interaction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&it))
	assert.Equal(t, ModeStructured, it.Mode)
	assert.Len(t, it.Materials, 1)

	rec = doJSON(t, r, http.MethodPatch, "/api/interactions/"+it.ID, map[string]any{"sentiment": "positive"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated Interaction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "positive", updated.Sentiment)

	rec = doJSON(t, r, http.MethodGet, "/api/interactions?rep_id=rep_7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Interaction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = doJSON(t, r, http.MethodDelete, "/api/interactions/"+it.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/interactions/"+it.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	entries, err := auditStore.Query(context.Background(), audit.QueryFilter{EntityID: it.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestHTTPCreateInteractionValidation(t *testing.T) {
	r, _, _ := setupRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/interactions", map[string]any{"sentiment": "great"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/interactions", map[string]any{
		"samples": []any{map[string]any{"quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPPatchInvalidValue(t *testing.T) {
	r, store, _ := setupRouter(t)
	it, err := store.CreateInteraction(context.Background(), InteractionCreate{})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPatch, "/api/interactions/"+it.ID, map[string]any{"sentiment": "meh"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPatch, "/api/interactions/missing", map[string]any{"summary": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
