package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/budgetcompass/internal/account"
	"github.com/dukerupert/budgetcompass/internal/auth"
	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/ledger"
	"github.com/dukerupert/budgetcompass/internal/middleware"
	"github.com/dukerupert/budgetcompass/internal/settings"
	"github.com/dukerupert/budgetcompass/internal/store"
	"github.com/dukerupert/budgetcompass/internal/workspace"
)

const testBaseURL = "https://budget.example.com"

type sentInvite struct {
	to, link, household string
}

type fakeMailer struct {
	sent []sentInvite
}

func (m *fakeMailer) Configured() bool { return true }

func (m *fakeMailer) SendInvite(_ context.Context, to, link, household string) error {
	m.sent = append(m.sent, sentInvite{to, link, household})
	return nil
}

type testEnv struct {
	registry     *workspace.Registry
	workspaces   *WorkspaceHandler
	transactions *TransactionHandler
	settings     *SettingsHandler
	mailer       *fakeMailer
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	accounts := account.NewService(store.NewProfileStore(db), store.NewHouseholdStore(db), store.NewInviteStore(db), logger)
	l := ledger.New(store.NewTransactionStore(db), nil, logger)
	clientState := store.NewClientStateStore(db)
	registry := workspace.NewRegistry(accounts, l, func(deviceID string) workspace.InviteTokens {
		return settings.NewPendingInvite(clientState.ForDevice(deviceID))
	}, logger)

	mailer := &fakeMailer{}
	return &testEnv{
		registry:     registry,
		workspaces:   NewWorkspaceHandler(registry, accounts, mailer, nil, testBaseURL, logger),
		transactions: NewTransactionHandler(registry, nil, logger),
		settings: NewSettingsHandler(func(deviceID string) settings.KeyValue {
			return clientState.ForDevice(deviceID)
		}, logger),
		mailer: mailer,
	}
}

type principal struct {
	userID, email, sessionID, deviceID string
}

var (
	alice = principal{"u-alice", "alice@example.com", "s-alice", "dev-alice"}
	bob   = principal{"u-bob", "bob@example.com", "s-bob", "dev-bob"}
	carol = principal{"u-carol", "carol@example.com", "s-carol", "dev-carol"}
)

func request(p principal, method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	ctx := auth.WithDevice(req.Context(), p.deviceID)
	if p.sessionID != "" {
		ctx = auth.WithAuth(ctx, auth.AuthContext{UserID: p.userID, Email: p.email, SessionID: p.sessionID})
	}
	return req.WithContext(ctx)
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

type viewJSON struct {
	State             string `json:"state"`
	ActiveHouseholdID string `json:"active_household_id"`
	Memberships       []struct {
		HouseholdID string `json:"household_id"`
		Role        string `json:"role"`
		Household   struct {
			Name string `json:"name"`
		} `json:"household"`
	} `json:"memberships"`
	Members []struct {
		ProfileID string `json:"profile_id"`
	} `json:"members"`
	Transactions []struct {
		ID string `json:"id"`
	} `json:"transactions"`
	Flags struct {
		InviteAccepted bool `json:"invite_accepted"`
		InviteFailed   bool `json:"invite_failed"`
	} `json:"flags"`
}

func TestWorkspaceGetBootstrapsNewUser(t *testing.T) {
	env := setup(t)

	rec := serve(env.workspaces.Get, request(alice, "GET", "/api/workspace", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	v := decode[viewJSON](t, rec)
	if v.State != "ready" {
		t.Errorf("state = %q, want ready", v.State)
	}
	if len(v.Memberships) != 1 || v.Memberships[0].Household.Name != "alice family" {
		t.Fatalf("memberships = %+v, want one alice family household", v.Memberships)
	}
	if v.ActiveHouseholdID != v.Memberships[0].HouseholdID {
		t.Errorf("active = %q, want %q", v.ActiveHouseholdID, v.Memberships[0].HouseholdID)
	}
	if len(v.Transactions) != 0 {
		t.Errorf("transactions = %d, want 0", len(v.Transactions))
	}
}

func TestCreateTransaction(t *testing.T) {
	env := setup(t)

	rec := serve(env.transactions.Create, request(alice, "POST", "/api/transactions", map[string]any{
		"description": "Groceries",
		"amount":      42.5,
		"category":    "food",
		"date":        "2024-03-05",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	txn := decode[map[string]any](t, rec)
	if txn["amount"] != 42.5 {
		t.Errorf("amount = %v, want 42.5", txn["amount"])
	}
	if txn["date"] != "2024-03-05" || txn["category"] != "food" {
		t.Errorf("txn = %v", txn)
	}

	rec = serve(env.transactions.Create, request(alice, "POST", "/api/transactions", map[string]any{
		"description": "Cinema",
		"amount":      "12,30",
		"category":    "fun",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("string amount: status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	rec = serve(env.transactions.List, request(alice, "GET", "/api/transactions", nil))
	list := decode[struct {
		Transactions []map[string]any `json:"transactions"`
	}](t, rec)
	if len(list.Transactions) != 2 {
		t.Fatalf("len = %d, want 2", len(list.Transactions))
	}
}

func TestCreateTransactionRejected(t *testing.T) {
	env := setup(t)

	for _, amount := range []any{"-5", 0, "abc", nil} {
		rec := serve(env.transactions.Create, request(alice, "POST", "/api/transactions", map[string]any{
			"description": "Bad",
			"amount":      amount,
		}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("amount %v: status = %d, want 400", amount, rec.Code)
		}
	}

	rec := serve(env.transactions.Create, request(alice, "POST", "/api/transactions", map[string]any{
		"description": "Mystery",
		"amount":      5,
		"category":    "gambling",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category: status = %d, want 400", rec.Code)
	}

	v := decode[viewJSON](t, serve(env.workspaces.Get, request(alice, "GET", "/api/workspace", nil)))
	if len(v.Transactions) != 0 {
		t.Errorf("rejected drafts should not be saved, got %d", len(v.Transactions))
	}
}

func TestListTransactionsCategoryFilter(t *testing.T) {
	env := setup(t)
	for _, d := range []map[string]any{
		{"description": "Bread", "amount": 100, "category": "food"},
		{"description": "Milk", "amount": 50, "category": "food"},
		{"description": "Movie", "amount": 30, "category": "fun"},
	} {
		if rec := serve(env.transactions.Create, request(alice, "POST", "/api/transactions", d)); rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d", rec.Code)
		}
	}

	rec := serve(env.transactions.List, request(alice, "GET", "/api/transactions?category=food", nil))
	list := decode[struct {
		SelectedCategory string           `json:"selected_category"`
		Transactions     []map[string]any `json:"transactions"`
	}](t, rec)
	if list.SelectedCategory != "food" || len(list.Transactions) != 2 {
		t.Errorf("filter = %q, len = %d, want food/2", list.SelectedCategory, len(list.Transactions))
	}

	rec = serve(env.transactions.Analytics, request(alice, "GET", "/api/analytics", nil))
	stats := decode[struct {
		Summary struct {
			TotalSpent  float64 `json:"total_spent"`
			TopCategory struct {
				ID string `json:"id"`
			} `json:"top_category"`
		} `json:"summary"`
	}](t, rec)
	if stats.Summary.TotalSpent != 180 {
		t.Errorf("total = %v, want 180", stats.Summary.TotalSpent)
	}
	if stats.Summary.TopCategory.ID != "food" {
		t.Errorf("top category = %q, want food", stats.Summary.TopCategory.ID)
	}
}

func TestInviteFlow(t *testing.T) {
	env := setup(t)

	aliceView := decode[viewJSON](t, serve(env.workspaces.Get, request(alice, "GET", "/api/workspace", nil)))
	householdID := aliceView.ActiveHouseholdID

	rec := serve(env.workspaces.CreateInvite, request(alice, "POST", "/api/invites", map[string]string{"email": " Bob@Example.com "}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invite: status = %d (%s)", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		Invite struct {
			Token string `json:"token"`
			Email string `json:"email"`
		} `json:"invite"`
		Link      string `json:"link"`
		EmailSent bool   `json:"email_sent"`
	}](t, rec)
	if created.Invite.Email != "bob@example.com" {
		t.Errorf("invite email = %q, want lower-cased", created.Invite.Email)
	}
	if created.Link != testBaseURL+"/?invite="+created.Invite.Token {
		t.Errorf("link = %q", created.Link)
	}
	if !created.EmailSent || len(env.mailer.sent) != 1 {
		t.Fatalf("email sent = %v, mails = %d", created.EmailSent, len(env.mailer.sent))
	}
	if m := env.mailer.sent[0]; m.to != "bob@example.com" || m.household != "alice family" || m.link != created.Link {
		t.Errorf("mail = %+v", m)
	}

	// Carol holds Bob's link.
	rec = serve(env.workspaces.AcceptInvite, request(carol, "POST", "/api/invites/accept", map[string]string{"token": created.Invite.Token}))
	assertInviteFailed(t, "mismatched email", rec)

	rec = serve(env.workspaces.AcceptInvite, request(bob, "POST", "/api/invites/accept", map[string]string{"token": created.Invite.Token}))
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status = %d (%s)", rec.Code, rec.Body.String())
	}
	bobView := decode[viewJSON](t, rec)
	if !bobView.Flags.InviteAccepted {
		t.Error("invite accepted flag should be set")
	}
	if bobView.ActiveHouseholdID != householdID {
		t.Errorf("active = %q, want alice's household %q", bobView.ActiveHouseholdID, householdID)
	}
	if len(bobView.Memberships) != 2 {
		t.Errorf("memberships = %d, want 2", len(bobView.Memberships))
	}

	rec = serve(env.workspaces.AcceptInvite, request(bob, "POST", "/api/invites/accept", map[string]string{"token": created.Invite.Token}))
	assertInviteFailed(t, "second accept", rec)

	rec = serve(env.workspaces.AcceptInvite, request(bob, "POST", "/api/invites/accept", map[string]string{"token": "nope"}))
	assertInviteFailed(t, "unknown token", rec)

	rec = serve(env.workspaces.Members, request(alice, "GET", "/api/households/members", nil))
	members := decode[[]map[string]any](t, rec)
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

// assertInviteFailed checks that a rejected invite gets the one generic
// answer, whatever the reason.
func assertInviteFailed(t *testing.T, name string, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusBadRequest {
		t.Errorf("%s: status = %d, want 400", name, rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != "invite failed" {
		t.Errorf("%s: error = %q, want %q", name, body["error"], "invite failed")
	}
}

func TestOpenInviteSendsNoEmail(t *testing.T) {
	env := setup(t)

	rec := serve(env.workspaces.CreateInvite, request(alice, "POST", "/api/invites", map[string]string{}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.mailer.sent) != 0 {
		t.Errorf("open invite should not send email")
	}
}

func TestSetActiveHousehold(t *testing.T) {
	env := setup(t)
	serve(env.workspaces.Get, request(alice, "GET", "/api/workspace", nil))

	rec := serve(env.workspaces.SetActiveHousehold, request(alice, "POST", "/api/households/active", map[string]string{"household_id": "not-mine"}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	bobView := decode[viewJSON](t, serve(env.workspaces.Get, request(bob, "GET", "/api/workspace", nil)))
	rec = serve(env.workspaces.SetActiveHousehold, request(alice, "POST", "/api/households/active", map[string]string{"household_id": bobView.ActiveHouseholdID}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign household: status = %d, want 403", rec.Code)
	}
}

func TestExport(t *testing.T) {
	env := setup(t)
	serve(env.transactions.Create, request(alice, "POST", "/api/transactions", map[string]any{
		"description": "Rent", "amount": 1000, "category": "housing", "date": "2024-02-01",
	}))

	rec := serve(env.transactions.Export, request(alice, "GET", "/api/transactions/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content-type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("content-disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body should be a zip container")
	}
}

func TestSettings(t *testing.T) {
	env := setup(t)
	visitor := principal{deviceID: "dev-visitor"}

	s := decode[settings.Settings](t, serve(env.settings.Get, request(visitor, "GET", "/api/settings", nil)))
	if s != settings.Defaults() {
		t.Errorf("settings = %+v, want defaults", s)
	}

	rec := serve(env.settings.Update, request(visitor, "PUT", "/api/settings", map[string]string{"theme": "dark"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d (%s)", rec.Code, rec.Body.String())
	}
	s = decode[settings.Settings](t, serve(env.settings.Get, request(visitor, "GET", "/api/settings", nil)))
	if s.Theme != "dark" || s.Language != "ua" || s.Currency != "UAH" {
		t.Errorf("settings = %+v, want dark theme with default language and currency", s)
	}

	rec = serve(env.settings.Update, request(visitor, "PUT", "/api/settings", map[string]string{"currency": "GBP"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid currency: status = %d, want 400", rec.Code)
	}

	other := decode[settings.Settings](t, serve(env.settings.Get, request(principal{deviceID: "dev-other"}, "GET", "/api/settings", nil)))
	if other.Theme != "light" {
		t.Errorf("settings should be per device, got %+v", other)
	}
}

type fakeIdentity struct {
	signedOut []string
}

func (f *fakeIdentity) session(email string) *auth.Session {
	return &auth.Session{
		Token:     "signed-token",
		ExpiresAt: time.Now().Add(time.Hour),
		Principal: auth.AuthContext{UserID: "u-" + email, Email: email, SessionID: "s-" + email},
	}
}

func (f *fakeIdentity) SendMagicLink(_ context.Context, email string) error {
	if email == "" {
		return &auth.RejectedError{Reason: "email is required"}
	}
	return nil
}

func (f *fakeIdentity) SignUpWithPassword(context.Context, string, string) error { return nil }

func (f *fakeIdentity) SignInWithPassword(_ context.Context, email, password string) (*auth.Session, error) {
	if password != "secret" {
		return nil, &auth.RejectedError{Reason: "invalid email or password"}
	}
	return f.session(email), nil
}

func (f *fakeIdentity) Verify(_ context.Context, token string) (*auth.Session, error) {
	if token != "good-link" {
		return nil, &auth.RejectedError{Reason: "link is invalid or expired"}
	}
	return f.session("dana@example.com"), nil
}

func (f *fakeIdentity) SignOut(_ context.Context, sessionID string) error {
	f.signedOut = append(f.signedOut, sessionID)
	return nil
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestAuthSignIn(t *testing.T) {
	env := setup(t)
	identity := &fakeIdentity{}
	h := NewAuthHandler(identity, env.registry, testBaseURL, testLogger())
	visitor := principal{deviceID: "dev-1"}

	rec := serve(h.SignIn, request(visitor, "POST", "/auth/password/sign-in", credentials{Email: "erin@example.com", Password: "wrong"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad password: status = %d, want 400", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "invalid email or password" {
		t.Errorf("error = %q", body["error"])
	}

	rec = serve(h.SignIn, request(visitor, "POST", "/auth/password/sign-in", credentials{Email: "erin@example.com", Password: "secret"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in: status = %d (%s)", rec.Code, rec.Body.String())
	}
	c := sessionCookie(rec)
	if c == nil || c.Value != "signed-token" || !c.HttpOnly || !c.Secure {
		t.Errorf("session cookie = %+v", c)
	}
	body := decode[struct {
		Token     string   `json:"token"`
		Workspace viewJSON `json:"workspace"`
	}](t, rec)
	if body.Token != "signed-token" || body.Workspace.State != "ready" {
		t.Errorf("body = %+v", body)
	}
	if env.registry.Len() != 1 {
		t.Errorf("registry len = %d, want 1", env.registry.Len())
	}

	out := principal{userID: "u-erin@example.com", email: "erin@example.com", sessionID: "s-erin@example.com", deviceID: "dev-1"}
	rec = serve(h.SignOut, request(out, "POST", "/auth/sign-out", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("sign out: status = %d", rec.Code)
	}
	if len(identity.signedOut) != 1 || identity.signedOut[0] != "s-erin@example.com" {
		t.Errorf("signed out = %v", identity.signedOut)
	}
	if env.registry.Len() != 0 {
		t.Errorf("workspace should be dropped on sign out")
	}
	if c := sessionCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestAuthVerifyRedirects(t *testing.T) {
	env := setup(t)
	h := NewAuthHandler(&fakeIdentity{}, env.registry, testBaseURL, testLogger())
	visitor := principal{deviceID: "dev-1"}

	rec := serve(h.Verify, request(visitor, "GET", "/auth/verify?token=good-link", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if sessionCookie(rec) == nil {
		t.Error("session cookie should be set")
	}

	rec = serve(h.Verify, request(visitor, "GET", "/auth/verify?token=expired", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expired link: status = %d, want 400", rec.Code)
	}
}

func TestAuthMagicLink(t *testing.T) {
	env := setup(t)
	h := NewAuthHandler(&fakeIdentity{}, env.registry, testBaseURL, testLogger())
	visitor := principal{deviceID: "dev-1"}

	rec := serve(h.MagicLink, request(visitor, "POST", "/auth/magic-link", credentials{Email: "a@example.com"}))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	rec = serve(h.MagicLink, request(visitor, "POST", "/auth/magic-link", credentials{}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty email: status = %d, want 400", rec.Code)
	}
}

func TestCategories(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/categories?description=Uber+home", nil)
	rec := serve(Categories, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Categories []struct {
			ID string `json:"id"`
		} `json:"categories"`
		Default   string `json:"default"`
		Suggested string `json:"suggested"`
	}](t, rec)
	if len(body.Categories) != 7 || body.Categories[0].ID != "housing" {
		t.Errorf("categories = %+v", body.Categories)
	}
	if body.Default != "housing" {
		t.Errorf("default = %q", body.Default)
	}
	if body.Suggested != "transport" {
		t.Errorf("suggested = %q, want transport", body.Suggested)
	}

	rec = serve(Categories, httptest.NewRequest("GET", "/api/categories", nil))
	if strings.Contains(rec.Body.String(), "suggested") {
		t.Errorf("unexpected suggestion without description: %s", rec.Body.String())
	}
}
