package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/transfer"
)

// AdminHandler handles user management and ownership transfer. Every
// endpoint requires an admin session.
type AdminHandler struct {
	users     *identity.Users
	userStore store.UserStore
	sessions  identity.SessionRepo
	transfer  *transfer.Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(users *identity.Users, userStore store.UserStore, sessions identity.SessionRepo, tr *transfer.Service) *AdminHandler {
	return &AdminHandler{
		users:     users,
		userStore: userStore,
		sessions:  sessions,
		transfer:  tr,
	}
}

// UserListResponse is the paginated account list.
type UserListResponse struct {
	Users   []UserResponse `json:"users"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentAdmin(w, r); !ok {
		return
	}

	offset, limit, page, perPage := pageParams(r)
	users, total, err := h.userStore.ListUsers(r.Context(), offset, limit)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	resp := UserListResponse{
		Users:   make([]UserResponse, 0, len(users)),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	for _, u := range users {
		resp.Users = append(resp.Users, newUserResponse(u))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// CreateUserRequest is the request body for creating an account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateUser handles POST /api/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentAdmin(w, r); !ok {
		return
	}

	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), identity.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newUserResponse(user))
}

// GetUser handles GET /api/admin/users/{userID}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentAdmin(w, r); !ok {
		return
	}

	user, err := h.userStore.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// UpdateUserRequest is the request body for an admin account edit.
// Nil fields stay unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"is_admin"`
	IsActive *bool   `json:"is_active"`
}

// UpdateUser handles PUT /api/admin/users/{userID}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentAdmin(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	targetID := chi.URLParam(r, "userID")
	user, err := h.users.AdminUpdate(r.Context(), actor, targetID, identity.UserPatch{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
		IsActive: req.IsActive,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	// A deactivated account or a reset password must not leave live
	// sessions behind.
	if (req.IsActive != nil && !*req.IsActive) || req.Password != nil {
		h.sessions.DeleteByUser(r.Context(), targetID)
	}

	WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// DeleteUser handles DELETE /api/admin/users/{userID}. The account's
// humidors, cigars, grants, and tokens go with it.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentAdmin(w, r)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "userID")
	if err := h.users.AdminDelete(r.Context(), actor, targetID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	h.sessions.DeleteByUser(r.Context(), targetID)

	w.WriteHeader(http.StatusNoContent)
}

// TransferRequest is the request body for an ownership transfer. An
// empty humidor_id moves the source account's whole collection.
type TransferRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	HumidorID  string `json:"humidor_id"`
}

// TransferOwnership handles POST /api/admin/transfer-ownership.
func (h *AdminHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentAdmin(w, r); !ok {
		return
	}

	var req TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FromUserID == "" || req.ToUserID == "" {
		WriteBadRequest(w, "from_user_id and to_user_id required")
		return
	}

	result, err := h.transfer.Execute(r.Context(), transfer.Request{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		HumidorID:  req.HumidorID,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
