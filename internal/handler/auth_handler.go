package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/auth"
	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

const minPasswordLen = 8

type registerRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userJSON struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type sessionJSON struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

func toUserJSON(u *model.User) userJSON {
	return userJSON{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// handleRegister signs up a lawyer or client. Admin accounts are only
// created by the admin CLI.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = model.RoleClient
	}

	switch {
	case req.Name == "" || req.Email == "" || req.Password == "":
		h.writeError(w, r, apperr.New(apperr.ValidationError, "name, email and password are required"))
		return
	case !validEmail(req.Email):
		h.writeError(w, r, apperr.New(apperr.ValidationError, "email is not valid"))
		return
	case len(req.Password) < minPasswordLen:
		h.writeError(w, r, apperr.Newf(apperr.ValidationError, "password must be at least %d characters", minPasswordLen))
		return
	case req.Role != model.RoleLawyer && req.Role != model.RoleClient:
		h.writeError(w, r, apperr.New(apperr.ValidationError, "role must be lawyer or client"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(err, apperr.StorageError, "hash password"))
		return
	}
	now := time.Now().UTC()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// don't reveal which emails exist
			writeJSON(w, http.StatusConflict, errorBody{Error: "Conflict", Message: "registration failed"})
			return
		}
		h.writeError(w, r, apperr.Wrap(err, apperr.StorageError, "create user"))
		return
	}
	h.log.Info("user registered", "id", u.ID, "role", u.Role)

	h.writeSession(w, r, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, r, apperr.New(apperr.ValidationError, "email and password are required"))
		return
	}

	u, err := h.users.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.writeError(w, r, apperr.Wrap(err, apperr.StorageError, "load user"))
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthenticated", Message: "invalid credentials"})
		return
	}

	h.writeSession(w, r, http.StatusOK, u)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, u *model.User) {
	tok, err := auth.MakeToken(u.ID, u.Role, h.cfg.Secret)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(err, apperr.StorageError, "sign token"))
		return
	}
	writeJSON(w, status, sessionJSON{Token: tok, User: toUserJSON(u)})
}

// handleLawyers is the public lawyer directory.
func (h *Handler) handleLawyers(w http.ResponseWriter, r *http.Request) {
	lawyers, err := h.users.UsersByRole(r.Context(), model.RoleLawyer)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(err, apperr.StorageError, "list lawyers"))
		return
	}
	out := make([]userJSON, len(lawyers))
	for i := range lawyers {
		out[i] = toUserJSON(&lawyers[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
