package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wanderly/tour-bookings/internal/auth"
	"github.com/wanderly/tour-bookings/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type signupRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sendToken issues the JWT as both response body and http-only cookie.
// The password hash never leaves the server.
func (h *Handlers) sendToken(w http.ResponseWriter, status int, user *domain.User) {
	token, err := h.tokens.Sign(user.ID.Hex())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(h.cfg.JWTCookieExpiresIn),
		HttpOnly: true,
		Secure:   h.cfg.Production(),
		Path:     "/",
	})

	user.Password = ""
	respond(w, status, envelope{
		"status": "success",
		"token":  token,
		"data":   envelope{"user": user},
	})
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	// Only the fields above make it into the document. Role in
	// particular is never taken from the request body.
	user := domain.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
		Role:     domain.RoleUser,
	}
	if err := h.users.Create(r.Context(), &user); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.sendToken(w, http.StatusCreated, &user)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "please provide email and password")
		return
	}

	user, err := h.users.FindByEmailWithPassword(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(req.Password, user.Password) {
		// Same message for unknown email and wrong password.
		respondError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	h.sendToken(w, http.StatusOK, user)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Path:     "/",
	})
	respond(w, http.StatusOK, envelope{"status": "success"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword generates a reset token. Mail delivery is not part of
// this service, so the token is returned to the caller directly.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, http.StatusNotFound, "there is no user with that email address")
		return
	}

	token, digest, expires, err := auth.NewResetToken()
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.users.SetResetToken(r.Context(), user.ID, digest, expires); err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondData(w, http.StatusOK, envelope{"resetToken": token})
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	digest := auth.HashResetToken(chi.URLParam(r, "token"))
	user, err := h.users.FindByResetToken(r.Context(), digest)
	if err != nil {
		respondError(w, http.StatusBadRequest, "token is invalid or has expired")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.sendToken(w, http.StatusOK, user)
}

type updatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=8"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required,eqfield=NewPassword"`
}

func (h *Handlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	// Reload with the hash; Protect stripped it.
	user, err := h.users.FindByEmailWithPassword(r.Context(), currentUser(r).Email)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, user.Password) {
		respondError(w, http.StatusUnauthorized, "the current password you provided is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.sendToken(w, http.StatusOK, user)
}

func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, envelope{"user": currentUser(r)})
}

type updateMeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

// UpdateMe only touches name and email; password changes go through
// UpdatePassword so the lifecycle hooks always run.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	set := bson.M{}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Email != "" {
		set["email"] = req.Email
	}
	if len(set) == 0 {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	user, err := h.users.Update(r.Context(), currentUser(r).ID, set)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"user": user})
}

func (h *Handlers) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Deactivate(r.Context(), currentUser(r).ID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"users": users})
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"user": user})
}

type adminUpdateUserRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email" validate:"omitempty,email"`
	Role  domain.Role `json:"role" validate:"omitempty,oneof=user guide lead-guide admin"`
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req adminUpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	set := bson.M{}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Email != "" {
		set["email"] = req.Email
	}
	if req.Role != "" {
		set["role"] = req.Role
	}
	if len(set) == 0 {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	user, err := h.users.Update(r.Context(), id, set)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"user": user})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
