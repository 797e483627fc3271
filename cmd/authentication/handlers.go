package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/auth"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"go.uber.org/zap"
)

// Accounts is the authenticator surface served over HTTP.
type Accounts interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (*models.Profile, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	CurrentSession(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type profileResponse struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	TeamID   *string `json:"team_id"`
}

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   profileResponse `json:"profile"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRouter(accounts Accounts, logger *zap.Logger) http.Handler {
	h := &accountHandler{accounts: accounts, logger: logger.Named("auth_http")}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /signup", h.signUp)
	mux.HandleFunc("POST /token", h.signIn)
	mux.HandleFunc("GET /session", h.session)
	mux.HandleFunc("POST /signout", h.signOut)
	return mux
}

type accountHandler struct {
	accounts Accounts
	logger   *zap.Logger
}

func (h *accountHandler) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	profile, err := h.accounts.SignUp(r.Context(), auth.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *accountHandler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	session, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(session))
}

func (h *accountHandler) session(w http.ResponseWriter, r *http.Request) {
	session, err := h.accounts.CurrentSession(r.Context(), bearer(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(session))
}

func (h *accountHandler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.SignOut(r.Context(), bearer(r)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *accountHandler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, e.ErrAuthorization):
		status = http.StatusUnauthorized
	case errors.Is(err, e.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, e.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, e.ErrRemote):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Account request failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func bearer(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token
}

func toProfileResponse(p *models.Profile) profileResponse {
	resp := profileResponse{
		ID:       p.ID.String(),
		FullName: p.FullName,
		Email:    p.Email,
		Role:     string(p.Role),
	}
	if p.TeamID != nil {
		id := p.TeamID.String()
		resp.TeamID = &id
	}
	return resp
}

func toTokenResponse(s *auth.Session) TokenResponse {
	return TokenResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		Profile:   toProfileResponse(s.Profile),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
