package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Emmyhack/Ahorro/internal/domain"
	"github.com/Emmyhack/Ahorro/internal/server/middleware"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain sentinel errors onto HTTP statuses. Errors
// outside the domain set are reported as 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "group not found")
	case errors.Is(err, domain.ErrNoDebtRecorded):
		writeError(w, http.StatusNotFound, "no recorded debt for member")
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrAmountMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotAMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrDuplicateContribution):
		writeError(w, http.StatusConflict, "already contributed this cycle")
	case errors.Is(err, domain.ErrCycleIncomplete), errors.Is(err, domain.ErrGroupClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusLocked, "group is busy, retry")
	case errors.Is(err, domain.ErrVaultProvisionFailed):
		writeError(w, http.StatusBadGateway, "custody provisioning failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// caller reads the identity the CallerIdentity middleware stored on the
// request context. An empty value is rejected by the gate downstream.
func caller(r *http.Request) string {
	return middleware.CallerFrom(r.Context())
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0. An optional status filter narrows
// group listings.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
		Status: domain.GroupStatus(q.Get("status")),
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
