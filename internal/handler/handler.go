package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dukerupert/budgetcompass/internal/account"
	"github.com/dukerupert/budgetcompass/internal/auth"
	"github.com/dukerupert/budgetcompass/internal/websocket"
	"github.com/dukerupert/budgetcompass/internal/workspace"
)

// Workspaces hands out the per-session workspace.
type Workspaces interface {
	Acquire(ctx context.Context, sessionID, deviceID string, id account.Identity) *workspace.Workspace
	Remove(sessionID string)
}

// currentWorkspace returns the caller's workspace. RequireAuth must have run.
func currentWorkspace(ws Workspaces, r *http.Request) *workspace.Workspace {
	ctx := r.Context()
	ac, _ := auth.FromContext(ctx)
	return ws.Acquire(ctx, ac.SessionID, auth.DeviceID(ctx), account.Identity{
		UserID: ac.UserID,
		Email:  ac.Email,
	})
}

func broadcast(hub *websocket.Hub, msg websocket.Message) {
	if hub != nil && msg.HouseholdID != "" {
		hub.Broadcast(msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
