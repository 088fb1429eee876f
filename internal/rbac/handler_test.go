package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerFixture(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture()
	mw := Middleware{Service: f.service}
	h := NewHandler(nil, f.service, mw)
	r := chi.NewRouter()
	r.Route("/api/authz", h.MountRoutes)
	return f, r
}

func adminRequest(t *testing.T, handler http.Handler, userID int64, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = req.WithContext(ContextWithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func seedAdmin(t *testing.T, f *fixture, userID int64) {
	t.Helper()
	f.addUser(userID, true)
	for _, name := range AdminScopes() {
		perm, err := f.service.CreatePermission(context.Background(), name, "")
		require.NoError(t, err)
		require.NoError(t, f.service.GrantToUser(context.Background(), userID, perm.ID))
	}
}

func TestHandlerPermissionLifecycle(t *testing.T) {
	f, handler := newHandlerFixture(t)
	seedAdmin(t, f, 1)

	rec := adminRequest(t, handler, 1, http.MethodPost, "/api/authz/permissions", `{"name":"users.view","description":"View users"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created permissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "users.view", created.Name)

	rec = adminRequest(t, handler, 1, http.MethodGet, "/api/authz/permissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []permissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, len(AdminScopes())+1)

	rec = adminRequest(t, handler, 1, http.MethodGet, fmt.Sprintf("/api/authz/permissions/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched permissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)

	rec = adminRequest(t, handler, 1, http.MethodDelete, fmt.Sprintf("/api/authz/permissions/%d", created.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = adminRequest(t, handler, 1, http.MethodDelete, fmt.Sprintf("/api/authz/permissions/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRoleGrants(t *testing.T) {
	f, handler := newHandlerFixture(t)
	seedAdmin(t, f, 1)
	f.repo.addRole(10)

	perm, err := f.service.CreatePermission(context.Background(), "inventory.view", "")
	require.NoError(t, err)

	path := fmt.Sprintf("/api/authz/roles/10/permissions/%d", perm.ID)
	rec := adminRequest(t, handler, 1, http.MethodPut, path, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = adminRequest(t, handler, 1, http.MethodGet, "/api/authz/roles/10/permissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []permissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = adminRequest(t, handler, 1, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Granting against an unknown role reports not found.
	rec = adminRequest(t, handler, 1, http.MethodPut, fmt.Sprintf("/api/authz/roles/999/permissions/%d", perm.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerForbidsUnprivilegedUser(t *testing.T) {
	f, handler := newHandlerFixture(t)
	f.addUser(2, true)

	rec := adminRequest(t, handler, 2, http.MethodGet, "/api/authz/permissions", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
