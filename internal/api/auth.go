package api

import (
	"net/http"
	"time"

	"github.com/vitolahq/vitola/internal/appctx"
	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/store"
)

// SessionTTL is the default session duration.
const SessionTTL = 24 * time.Hour

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	userStore store.UserStore
	sessions  identity.SessionRepo
	auth      *identity.UserAuth
	users     *identity.Users
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(userStore store.UserStore, sessions identity.SessionRepo, auth *identity.UserAuth, users *identity.Users) *AuthHandler {
	return &AuthHandler{
		userStore: userStore,
		sessions:  sessions,
		auth:      auth,
		users:     users,
	}
}

// UserResponse is the account projection returned by the API. The
// password hash never leaves the store through this type.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsAdmin:   u.IsAdmin,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// LoginRequest is the request body for login. Username also accepts
// the account's email address.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteBadRequest(w, "username and password required")
		return
	}

	ctx := r.Context()

	user, err := h.auth.Authenticate(ctx, h.userStore, req.Username, req.Password)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	session, err := h.sessions.Create(ctx, user.ID, SessionTTL)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	setSessionCookie(w, r, session)

	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		User:      newUserResponse(user),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := appctx.SessionFromContext(r.Context())
	if !ok {
		WriteUnauthorized(w, "no session")
		return
	}

	h.sessions.Delete(r.Context(), session.Token)
	clearSessionCookie(w)

	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// UpdateProfileRequest is the request body for a profile edit. Nil
// fields stay unchanged.
type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

// UpdateProfile handles PUT /api/auth/me.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, req.Email, req.FullName)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newUserResponse(updated))
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles PUT /api/auth/password. Every other session
// of the account is dropped; the caller gets a fresh one back.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		WriteBadRequest(w, "current_password and new_password required")
		return
	}

	ctx := r.Context()
	if err := h.users.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	if err := h.sessions.DeleteByUser(ctx, user.ID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	session, err := h.sessions.Create(ctx, user.ID, SessionTTL)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	setSessionCookie(w, r, session)

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "password_changed",
		"token":      session.Token,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
}

// setSessionCookie sets the browser session cookie alongside the token
// response, so both cookie and Bearer clients work.
func setSessionCookie(w http.ResponseWriter, r *http.Request, session *identity.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		MaxAge:   -1,
	})
}
