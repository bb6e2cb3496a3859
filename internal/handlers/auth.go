package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/carenet/apiserver/internal/auth"
	"github.com/carenet/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const (
	msgInvalidRequest = "invalid request"
	msgTokenMissing   = "token missing"
	msgTokenInvalid   = "token invalid"
	bearerPrefix      = "Bearer "
)

// AuthHandler provides the two-step login endpoints.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService) {
	handler := NewAuthHandler(authService)

	r.Post("/login", handler.Login)
	r.Post("/mfa", handler.MFA)
}

// RequireAuth rejects requests without a valid session token and injects
// the decoded claims into the request context.
func RequireAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusForbidden, msgTokenMissing)
				return
			}

			claims, err := tokens.Verify(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("session token rejected")
				writeError(w, http.StatusUnauthorized, msgTokenInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// Login verifies credentials and either returns a token or an MFA challenge.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	if result.MFARequired {
		writeJSON(w, http.StatusOK, MFAChallengeResponse{
			MFARequired: true,
			TempUserID:  result.PendingUserID,
			MFAToken:    result.PendingToken,
		})
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: result.AccessToken})
}

// MFA checks the one-time code for a pending login and returns a token.
func (h *AuthHandler) MFA(w http.ResponseWriter, r *http.Request) {
	var req MFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	token, err := h.authService.VerifyMFA(r.Context(), services.MFARequest{
		UserID:       req.TempUserID,
		Code:         req.OTP,
		PendingToken: req.MFAToken,
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token})
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrIncorrectPassword),
		errors.Is(err, services.ErrIncorrectOTP),
		errors.Is(err, services.ErrPendingTokenInvalid):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("authentication failed")
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type MFARequest struct {
	TempUserID int    `json:"temp_user_id"`
	OTP        string `json:"otp"`
	MFAToken   string `json:"mfa_token,omitempty"`
}

type MFAChallengeResponse struct {
	MFARequired bool   `json:"mfa_required"`
	TempUserID  int    `json:"temp_user_id"`
	MFAToken    string `json:"mfa_token,omitempty"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}
