package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listEntryBody(productID int, name string) map[string]any {
	return map[string]any{
		"product_id": productID,
		"name":       name,
		"brand":      "Maison",
		"price":      1500,
		"image":      name + ".jpg",
		"rating":     4.5,
		"in_stock":   true,
	}
}

func decodeListResponse(t *testing.T, w *httptest.ResponseRecorder) ListResponse {
	t.Helper()
	var resp ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestFavoritesAddAndGet(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	w := doJSON(t, router, http.MethodPost, "/api/favorites", "s1", listEntryBody(42, "Noir"))
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeListResponse(t, w)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 42, resp.Items[0].ProductID)
	assert.Equal(t, "Noir", resp.Items[0].Product.Name)

	w = doJSON(t, router, http.MethodGet, "/api/favorites", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeListResponse(t, w).Count)
}

func TestFavoritesDuplicateRejected(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	doJSON(t, router, http.MethodPost, "/api/favorites", "s1", listEntryBody(42, "Noir"))
	w := doJSON(t, router, http.MethodPost, "/api/favorites", "s1", listEntryBody(42, "Noir"))

	require.Equal(t, http.StatusConflict, w.Code)

	var errResp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	detail, ok := errResp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "product already added", detail["message"])
}

func TestFavoritesRemove(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	doJSON(t, router, http.MethodPost, "/api/favorites", "s1", listEntryBody(42, "Noir"))

	w := doJSON(t, router, http.MethodDelete, "/api/favorites/42", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeListResponse(t, w).Count)

	// Removing an absent product is a no-op, not an error.
	w = doJSON(t, router, http.MethodDelete, "/api/favorites/42", "s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFavoritesRemoveInvalidID(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	w := doJSON(t, router, http.MethodDelete, "/api/favorites/not-a-number", "s1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFavoritesValidation(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	body := listEntryBody(42, "Noir")
	delete(body, "name")

	w := doJSON(t, router, http.MethodPost, "/api/favorites", "s1", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComparisonIsSeparateFromFavorites(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	doJSON(t, router, http.MethodPost, "/api/favorites", "s1", listEntryBody(42, "Noir"))

	w := doJSON(t, router, http.MethodGet, "/api/comparison", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeListResponse(t, w).Count)

	w = doJSON(t, router, http.MethodPost, "/api/comparison", "s1", listEntryBody(42, "Noir"))
	assert.Equal(t, http.StatusCreated, w.Code, "the same product may sit in both lists")
}
