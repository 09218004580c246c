package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/budgetcompass/internal/account"
	"github.com/dukerupert/budgetcompass/internal/auth"
	"github.com/dukerupert/budgetcompass/internal/config"
	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/email"
	"github.com/dukerupert/budgetcompass/internal/events"
	"github.com/dukerupert/budgetcompass/internal/handler"
	"github.com/dukerupert/budgetcompass/internal/ledger"
	"github.com/dukerupert/budgetcompass/internal/middleware"
	"github.com/dukerupert/budgetcompass/internal/settings"
	"github.com/dukerupert/budgetcompass/internal/store"
	ws "github.com/dukerupert/budgetcompass/internal/websocket"
	"github.com/dukerupert/budgetcompass/internal/workspace"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	db             *database.DB
	hub            *ws.Hub
	authSvc        *auth.Service
	registry       *workspace.Registry
	clientState    *store.ClientStateStore
	sessionStore   *store.SessionStore
	magicLinkStore *store.MagicLinkStore
	authH          *handler.AuthHandler
	workspaceH     *handler.WorkspaceHandler
	transactionH   *handler.TransactionHandler
	settingsH      *handler.SettingsHandler
	rateLimiter    *middleware.RateLimiter
	logger         *slog.Logger
}

func New(db *database.DB, cfg *config.Config, emailClient *email.Client, publisher events.Publisher, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)
	profileStore := store.NewProfileStore(db)
	householdStore := store.NewHouseholdStore(db)
	inviteStore := store.NewInviteStore(db)
	transactionStore := store.NewTransactionStore(db)
	clientState := store.NewClientStateStore(db)

	authSvc := auth.NewService(userStore, sessionStore, magicLinkStore, emailClient, auth.Config{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		BaseURL:    cfg.BaseURL,
	}, logger.With("component", "auth"))
	accounts := account.NewService(profileStore, householdStore, inviteStore, logger.With("component", "account"))
	l := ledger.New(transactionStore, publisher, logger.With("component", "ledger"))

	registry := workspace.NewRegistry(accounts, l, func(deviceID string) workspace.InviteTokens {
		return settings.NewPendingInvite(clientState.ForDevice(deviceID))
	}, logger.With("component", "workspace"))

	return &Server{
		db:             db,
		hub:            hub,
		authSvc:        authSvc,
		registry:       registry,
		clientState:    clientState,
		sessionStore:   sessionStore,
		magicLinkStore: magicLinkStore,
		authH:          handler.NewAuthHandler(authSvc, registry, cfg.BaseURL, logger.With("component", "auth_handler")),
		workspaceH:     handler.NewWorkspaceHandler(registry, accounts, emailClient, hub, cfg.BaseURL, logger.With("component", "workspace_handler")),
		transactionH:   handler.NewTransactionHandler(registry, hub, logger.With("component", "transaction_handler")),
		settingsH: handler.NewSettingsHandler(func(deviceID string) settings.KeyValue {
			return clientState.ForDevice(deviceID)
		}, logger.With("component", "settings_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Cleanup removes expired sessions and magic links, drops workspaces of
// dead sessions and trims the rate limiter.
func (s *Server) Cleanup(ctx context.Context) {
	if n, err := s.sessionStore.DeleteExpired(ctx); err != nil {
		s.logger.Error("cleanup sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}
	if n, err := s.magicLinkStore.DeleteExpired(ctx); err != nil {
		s.logger.Error("cleanup magic links", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired magic links", "count", n)
	}

	dropped := s.registry.Prune(func(sessionID string) bool {
		sess, err := s.sessionStore.GetActive(ctx, sessionID)
		if err != nil {
			return true
		}
		return sess != nil
	})
	if dropped > 0 {
		s.logger.Info("dropped idle workspaces", "count", dropped)
	}

	s.rateLimiter.Cleanup()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /{$}", s.indexHandler)
	outerMux.HandleFunc("POST /auth/magic-link", s.rateLimitedHandler(s.authH.MagicLink))
	outerMux.HandleFunc("POST /auth/password/sign-in", s.rateLimitedHandler(s.authH.SignIn))
	outerMux.HandleFunc("POST /auth/password/sign-up", s.rateLimitedHandler(s.authH.SignUp))
	outerMux.HandleFunc("GET /auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("GET /api/categories", handler.Categories)
	outerMux.HandleFunc("GET /api/settings", s.settingsH.Get)
	outerMux.HandleFunc("PUT /api/settings", s.settingsH.Update)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireAuth(s.authSvc)(protectedMux))

	var h http.Handler = outerMux
	h = middleware.CaptureInvite(s.captureInvite, s.logger.With("component", "invite_capture"))(h)
	h = middleware.Device(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/sign-out", s.authH.SignOut)

	mux.HandleFunc("GET /api/workspace", s.workspaceH.Get)
	mux.HandleFunc("POST /api/workspace/retry", s.workspaceH.Retry)
	mux.HandleFunc("POST /api/households/active", s.workspaceH.SetActiveHousehold)
	mux.HandleFunc("GET /api/households/members", s.workspaceH.Members)
	mux.HandleFunc("POST /api/invites", s.workspaceH.CreateInvite)
	mux.HandleFunc("POST /api/invites/accept", s.workspaceH.AcceptInvite)

	mux.HandleFunc("GET /api/transactions", s.transactionH.List)
	mux.HandleFunc("POST /api/transactions", s.transactionH.Create)
	mux.HandleFunc("POST /api/transactions/refresh", s.transactionH.Refresh)
	mux.HandleFunc("GET /api/transactions/export", s.transactionH.Export)
	mux.HandleFunc("GET /api/analytics", s.transactionH.Analytics)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.householdScope, s.logger.With("component", "websocket")))
}

// captureInvite stores an invite token from a shared link for the device.
// The next authenticated request accepts it.
func (s *Server) captureInvite(ctx context.Context, deviceID, token string) error {
	return settings.NewPendingInvite(s.clientState.ForDevice(deviceID)).Set(ctx, token)
}

// householdScope ties a websocket connection to the caller's workspace so
// it follows household switches.
func (s *Server) householdScope(r *http.Request) (func() string, bool) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, false
	}
	w := s.registry.Acquire(r.Context(), ac.SessionID, auth.DeviceID(r.Context()), account.Identity{
		UserID: ac.UserID,
		Email:  ac.Email,
	})
	return w.ActiveHouseholdID, true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"name":   "budgetcompass",
		"status": "ok",
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, authRateLimit, authRateWindow)
	return rl(h).ServeHTTP
}
