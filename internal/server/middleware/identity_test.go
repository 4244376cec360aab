package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallerIdentityStoresHeaderInContext(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CallerFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	h := CallerIdentity()(next)

	req := httptest.NewRequest(http.MethodPost, "/api/groups", nil)
	req.Header.Set(CallerHeader, "  alice  ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "alice", got)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCallerIdentityMissingHeader(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CallerFrom(r.Context())
	})

	h := CallerIdentity()(next)

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Empty(t, got)
}

func TestCallerFromBareContext(t *testing.T) {
	require.Empty(t, CallerFrom(context.Background()))
}
