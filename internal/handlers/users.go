package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/couchdir/couchdir/internal/directory"
	"github.com/go-chi/chi/v5"
)

// UsersHandler exposes read-only directory lookups.
type UsersHandler struct {
	dir *directory.Directory
}

// UsersRouter registers user lookup routes; all require authentication.
func UsersRouter(r chi.Router, dir *directory.Directory, authMiddleware func(http.Handler) http.Handler) {
	handler := &UsersHandler{dir: dir}

	r.Use(authMiddleware)
	r.Get("/", handler.FindByEmail)
	r.Get("/{username}", handler.GetByUsername)
}

// GetByUsername returns the active record with that username. Inactive
// records are not discoverable here.
func (h *UsersHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.dir.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// FindByEmail returns the active record matching the email query
// parameter, with the same visibility rule as GetByUsername.
func (h *UsersHandler) FindByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	user, err := h.dir.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}
