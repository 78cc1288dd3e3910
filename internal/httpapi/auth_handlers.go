package httpapi

import (
	"net/http"

	"fieldpulse.org/internal/audit"
	"fieldpulse.org/internal/directory"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string         `json:"token"`
	User  directory.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.users.SignUp(r.Context(), directory.SignUpRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	token, err := a.tokens.Generate(u.ID, string(u.Role))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": u.ID,
		"role":    string(u.Role),
	})
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, User: u})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	token, err := a.tokens.Generate(u.ID, string(u.Role))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": u.ID,
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: u})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.actor(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.users.ChangePassword(r.Context(), actor.ID, req.CurrentPassword, req.NewPassword); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.notifier.AnnouncePasswordChange(r.Context(), actor.ID)

	_ = audit.LogEvent(r.Context(), "auth.password_change", map[string]any{
		"user_id": actor.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password changed"})
}
