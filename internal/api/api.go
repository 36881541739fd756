// Package api implements the JSON HTTP surface: per-area handler
// structs over the domain services, a reason-coded error envelope, and
// the translation from domain sentinels to HTTP statuses.
//
// Handlers take the authenticated user from the request context, where
// the server's session middleware stores it. They never touch the
// session token themselves.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vitolahq/vitola/internal/appctx"
	"github.com/vitolahq/vitola/internal/store"
)

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes the request body into dst. On malformed input it
// writes a 400 and reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// currentUser returns the authenticated user from the context. On a
// missing user it writes a 401 and reports false.
func currentUser(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	user, ok := appctx.UserFromContext(r.Context())
	if !ok {
		WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return user, true
}

// currentAdmin is currentUser plus the admin gate. Non-admins get a
// 403; they already know the route exists.
func currentAdmin(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin {
		WriteForbidden(w, "admin access required")
		return nil, false
	}
	return user, true
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// pageParams reads ?page and ?per_page with clamping. Out-of-range and
// unparsable values fall back rather than erroring.
func pageParams(r *http.Request) (offset, limit, page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	perPage = defaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = v
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return (page - 1) * perPage, perPage, page, perPage
}
