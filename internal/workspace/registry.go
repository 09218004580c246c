package workspace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/budgetcompass/internal/account"
)

// Registry keeps one Workspace per authenticated session.
type Registry struct {
	accounts  Accounts
	ledger    Ledger
	invitesOf func(deviceID string) InviteTokens
	logger    *slog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(accounts Accounts, l Ledger, invitesOf func(deviceID string) InviteTokens, logger *slog.Logger) *Registry {
	return &Registry{
		accounts:   accounts,
		ledger:     l,
		invitesOf:  invitesOf,
		logger:     logger,
		workspaces: make(map[string]*Workspace),
	}
}

// Acquire returns the session's workspace, signing it in on first use. An
// existing ready workspace picks up any invite captured since the last call.
func (r *Registry) Acquire(ctx context.Context, sessionID, deviceID string, id account.Identity) *Workspace {
	r.mu.Lock()
	ws, ok := r.workspaces[sessionID]
	if !ok {
		ws = New(r.accounts, r.ledger, r.invitesOf(deviceID), r.logger.With("session_id", sessionID))
		r.workspaces[sessionID] = ws
	}
	r.mu.Unlock()

	// Bootstrap outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)
	if !ok {
		if err := ws.SignIn(ctx, id); err != nil {
			r.logger.Warn("sign in bootstrap", "session_id", sessionID, "error", err)
		}
		return ws
	}
	if ws.State() == Ready {
		if accepted, _ := ws.AcceptPendingInvite(ctx); accepted {
			if err := ws.RefreshTransactions(ctx); err != nil {
				r.logger.Warn("reload after invite", "session_id", sessionID, "error", err)
			}
		}
	}
	return ws
}

// Get returns the session's workspace without creating one.
func (r *Registry) Get(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[sessionID]
	return ws, ok
}

// Remove signs out and forgets the session's workspace.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	ws, ok := r.workspaces[sessionID]
	delete(r.workspaces, sessionID)
	r.mu.Unlock()
	if ok {
		ws.SignOut()
	}
}

// Len reports how many sessions have a workspace.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Prune signs out every workspace whose session is no longer live and
// returns how many were dropped.
func (r *Registry) Prune(live func(sessionID string) bool) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.workspaces))
	for id := range r.workspaces {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	dropped := 0
	for _, id := range ids {
		if !live(id) {
			r.Remove(id)
			dropped++
		}
	}
	return dropped
}
