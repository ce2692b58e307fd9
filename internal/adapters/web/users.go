package web

import (
	"net/http"

	"retail-backoffice/internal/app"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.CreateUser(r.Context(), app.CreateUserRequest{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, user)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListRoles(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := h.svc.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, role)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		RoleID int `json:"role_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := idParam(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.svc.RevokeRole(r.Context(), userID, roleID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
