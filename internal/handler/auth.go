package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/budgetcompass/internal/account"
	"github.com/dukerupert/budgetcompass/internal/auth"
	"github.com/dukerupert/budgetcompass/internal/middleware"
	"github.com/dukerupert/budgetcompass/internal/workspace"
)

// Identity is the sign-in surface of auth.Service.
type Identity interface {
	SendMagicLink(ctx context.Context, email string) error
	SignUpWithPassword(ctx context.Context, email, password string) error
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	Verify(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	identity      Identity
	workspaces    Workspaces
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(identity Identity, workspaces Workspaces, baseURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		identity:      identity,
		workspaces:    workspaces,
		secureCookies: strings.HasPrefix(baseURL, "https://"),
		logger:        logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) MagicLink(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.identity.SendMagicLink(r.Context(), req.Email); err != nil {
		h.authFailure(w, "send magic link", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.identity.SignUpWithPassword(r.Context(), req.Email, req.Password); err != nil {
		h.authFailure(w, "sign up", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sess, err := h.identity.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.authFailure(w, "sign in", err)
		return
	}
	ws := h.startSession(w, r, sess)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"workspace":  ws,
	})
}

// Verify consumes a magic link from an email and lands the browser on the app.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	sess, err := h.identity.Verify(r.Context(), token)
	if err != nil {
		h.authFailure(w, "verify link", err)
		return
	}
	h.startSession(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionID(r.Context())
	if err := h.identity.SignOut(r.Context(), sessionID); err != nil {
		h.logger.Error("sign out", "session_id", sessionID, "error", err)
	}
	h.workspaces.Remove(sessionID)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// startSession sets the session cookie and bootstraps the workspace.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, sess *auth.Session) workspace.View {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	p := sess.Principal
	ws := h.workspaces.Acquire(r.Context(), p.SessionID, auth.DeviceID(r.Context()), account.Identity{
		UserID: p.UserID,
		Email:  p.Email,
	})
	return ws.Snapshot()
}

func (h *AuthHandler) authFailure(w http.ResponseWriter, op string, err error) {
	var rejected *auth.RejectedError
	if errors.As(err, &rejected) {
		writeError(w, http.StatusBadRequest, rejected.Reason)
		return
	}
	h.logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "authentication service unavailable")
}
