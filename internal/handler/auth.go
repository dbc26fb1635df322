package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/service"
)

type AuthHandler struct {
	auth         *service.AuthService
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler builds the auth endpoints. secureCookie marks the session
// cookie Secure and should be set outside development.
func NewAuthHandler(as *service.AuthService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: as, secureCookie: secureCookie, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login accepts HTTP Basic credentials or a JSON body whose password is
// base64 encoded.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		decoded, err := auth.DecodePassword(req.Password)
		if err != nil {
			writeError(w, r, h.logger, apperr.Unauthorized(service.MsgInvalidLogin))
			return
		}
		email, password = req.Email, decoded
	}

	res, err := h.auth.Login(r.Context(), strings.TrimSpace(email), password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.auth.Me(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.secureCookie,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.secureCookie,
	})
}
