package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/budgetcompass/internal/account"
	"github.com/dukerupert/budgetcompass/internal/auth"
	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/dukerupert/budgetcompass/internal/websocket"
	"github.com/dukerupert/budgetcompass/internal/workspace"
)

type InviteCreator interface {
	CreateInvite(ctx context.Context, householdID, email string) (*model.Invite, error)
}

type InviteMailer interface {
	Configured() bool
	SendInvite(ctx context.Context, toEmail, link, householdName string) error
}

type WorkspaceHandler struct {
	workspaces Workspaces
	invites    InviteCreator
	mailer     InviteMailer
	hub        *websocket.Hub
	baseURL    string
	logger     *slog.Logger
}

func NewWorkspaceHandler(workspaces Workspaces, invites InviteCreator, mailer InviteMailer, hub *websocket.Hub, baseURL string, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		invites:    invites,
		mailer:     mailer,
		hub:        hub,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Get returns the workspace view. ?category= changes the list filter.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws := currentWorkspace(h.workspaces, r)
	if c := r.URL.Query().Get("category"); c != "" {
		ws.SelectCategory(c)
	}
	writeJSON(w, http.StatusOK, ws.Snapshot())
}

// Retry reruns a failed account bootstrap. The outcome is reported through
// the view's state and flags.
func (h *WorkspaceHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ws := currentWorkspace(h.workspaces, r)
	if err := ws.Retry(context.WithoutCancel(r.Context())); err != nil {
		h.logger.Warn("bootstrap retry", "error", err)
	}
	writeJSON(w, http.StatusOK, ws.Snapshot())
}

func (h *WorkspaceHandler) SetActiveHousehold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HouseholdID string `json:"household_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ws := currentWorkspace(h.workspaces, r)
	err := ws.SwitchHousehold(r.Context(), strings.TrimSpace(req.HouseholdID))
	switch {
	case errors.Is(err, workspace.ErrNotReady):
		writeError(w, http.StatusConflict, "account is not ready")
		return
	case errors.Is(err, workspace.ErrUnknownHousehold):
		writeError(w, http.StatusForbidden, "not a member of that household")
		return
	case err != nil:
		// Load failures surface as flags on the view.
		h.logger.Warn("switch household", "household_id", req.HouseholdID, "error", err)
	}
	writeJSON(w, http.StatusOK, ws.Snapshot())
}

// Members reloads and returns the active household's roster.
func (h *WorkspaceHandler) Members(w http.ResponseWriter, r *http.Request) {
	ws := currentWorkspace(h.workspaces, r)
	err := ws.RefreshTransactions(r.Context())
	if errors.Is(err, workspace.ErrNotReady) {
		writeError(w, http.StatusConflict, "account is not ready")
		return
	}
	if err != nil {
		h.logger.Warn("reload household", "error", err)
	}
	writeJSON(w, http.StatusOK, ws.Snapshot().Members)
}

// CreateInvite issues an invite for the active household and returns the
// share link. The link is also emailed when an address is given and email
// is configured; a failed send does not fail the request.
func (h *WorkspaceHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	v := currentWorkspace(h.workspaces, r).Snapshot()
	if v.State != workspace.Ready || v.ActiveHouseholdID == "" {
		writeError(w, http.StatusConflict, "no active household")
		return
	}

	invite, err := h.invites.CreateInvite(r.Context(), v.ActiveHouseholdID, req.Email)
	if err != nil {
		h.logger.Error("create invite", "household_id", v.ActiveHouseholdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invite")
		return
	}
	link := h.baseURL + "/?invite=" + url.QueryEscape(invite.Token)

	sent := false
	if invite.Email != nil && h.mailer != nil && h.mailer.Configured() {
		name := ""
		if hh := v.ActiveHousehold(); hh != nil {
			name = hh.Name
		}
		if err := h.mailer.SendInvite(r.Context(), *invite.Email, link, name); err != nil {
			h.logger.Error("send invite email", "invite_id", invite.ID, "error", err)
		} else {
			sent = true
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"invite":     invite,
		"link":       link,
		"email_sent": sent,
	})
}

// AcceptInvite stores the token for this device and accepts it.
func (h *WorkspaceHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	ws := currentWorkspace(h.workspaces, r)
	err := ws.CaptureInvite(r.Context(), token)
	switch {
	case errors.Is(err, account.ErrInviteNotFound),
		errors.Is(err, account.ErrInviteConsumed),
		errors.Is(err, account.ErrInviteEmailMismatch):
		h.logger.Info("invite rejected", "user_id", auth.UserID(r.Context()), "error", err)
		writeError(w, http.StatusBadRequest, "invite failed")
		return
	case err != nil:
		h.logger.Warn("accept invite", "error", err)
	}

	v := ws.Snapshot()
	if v.Flags.InviteAccepted && v.Profile != nil {
		broadcast(h.hub, websocket.NewMessage(v.ActiveHouseholdID, "member", "joined", v.Profile.ID, nil))
	}
	writeJSON(w, http.StatusOK, v)
}
