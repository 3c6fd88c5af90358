package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xenking/storefront-api/internal/domain/user"
)

type updateUserRequest struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i := range users {
		resp[i] = toUserResponse(&users[i])
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) adminGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var upd user.Update
	if req.Role != nil {
		role := user.Role(*req.Role)
		if !role.Valid() {
			respondError(w, http.StatusBadRequest, "invalid role")
			return
		}
		upd.Role = &role
	}
	upd.IsActive = req.IsActive

	u, err := h.users.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "user updated",
		"user":    toUserResponse(u),
	})
}

func (h *Handler) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "user deleted",
	})
}
