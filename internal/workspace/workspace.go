// Package workspace holds the per-session view of a user's budget: who they
// are, which household is active, and that household's members and
// transactions. A Workspace moves through explicit states and serializes its
// own mutations; store calls happen outside the lock.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/budgetcompass/internal/account"
	"github.com/dukerupert/budgetcompass/internal/analytics"
	"github.com/dukerupert/budgetcompass/internal/ledger"
	"github.com/dukerupert/budgetcompass/internal/model"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	Unauthenticated State = iota
	Bootstrapping
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Bootstrapping:
		return "bootstrapping"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrNotReady         = errors.New("workspace not ready")
	ErrUnknownHousehold = errors.New("not a member of household")
)

type Accounts interface {
	Bootstrap(ctx context.Context, id account.Identity) (*account.Bootstrap, error)
	AcceptInvite(ctx context.Context, token, email, profileID string) (*account.Acceptance, error)
	Members(ctx context.Context, householdID string) ([]model.Member, error)
	SetDefaultHousehold(ctx context.Context, profileID, householdID string) error
}

type Ledger interface {
	List(ctx context.Context, householdID string) ([]model.Transaction, error)
	Submit(ctx context.Context, d ledger.Draft) (*model.Transaction, error)
}

// InviteTokens stores the invite token captured for this device.
type InviteTokens interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type Workspace struct {
	accounts Accounts
	ledger   Ledger
	invites  InviteTokens
	logger   *slog.Logger

	mu                  sync.Mutex
	state               State
	identity            account.Identity
	signInGen           uint64
	profile             *model.Profile
	memberships         []model.Membership
	activeHouseholdID   string
	members             []model.Member
	transactions        []model.Transaction
	selectedCategory    string
	loadGen             uint64
	cancelLoad          context.CancelFunc
	loadingTransactions bool
	accountErr          bool
	loadErr             bool
	saveErr             bool
	acceptingInvite     bool
	inviteFailed        bool
	inviteAccepted      bool
	failedInvite        string
}

func New(accounts Accounts, l Ledger, invites InviteTokens, logger *slog.Logger) *Workspace {
	return &Workspace{
		accounts:         accounts,
		ledger:           l,
		invites:          invites,
		logger:           logger,
		selectedCategory: analytics.CategoryAll,
	}
}

func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SignIn bootstraps the account for id, then accepts any pending invite and
// loads the active household. Bootstrap failures leave the workspace in the
// Failed state until Retry.
func (w *Workspace) SignIn(ctx context.Context, id account.Identity) error {
	w.mu.Lock()
	w.resetLocked()
	w.identity = id
	w.state = Bootstrapping
	w.signInGen++
	gen := w.signInGen
	w.mu.Unlock()

	return w.bootstrap(ctx, gen)
}

// Retry reruns the bootstrap after a failure.
func (w *Workspace) Retry(ctx context.Context) error {
	w.mu.Lock()
	if w.state != Failed {
		w.mu.Unlock()
		return nil
	}
	w.state = Bootstrapping
	w.accountErr = false
	w.signInGen++
	gen := w.signInGen
	w.mu.Unlock()

	return w.bootstrap(ctx, gen)
}

func (w *Workspace) bootstrap(ctx context.Context, gen uint64) error {
	w.mu.Lock()
	id := w.identity
	w.mu.Unlock()

	b, err := w.accounts.Bootstrap(ctx, id)

	w.mu.Lock()
	if gen != w.signInGen {
		w.mu.Unlock()
		w.logger.Debug("discarding stale bootstrap", "user_id", id.UserID)
		return nil
	}
	if err != nil {
		w.state = Failed
		w.accountErr = true
		w.mu.Unlock()
		w.logger.Error("bootstrap failed", "user_id", id.UserID, "error", err)
		return err
	}
	w.state = Ready
	w.profile = b.Profile
	w.memberships = b.Memberships
	if w.activeHouseholdID == "" || !w.isMemberLocked(w.activeHouseholdID) {
		w.activeHouseholdID = b.ActiveHouseholdID
	}
	w.mu.Unlock()

	w.logger.Debug("bootstrap complete", "user_id", id.UserID, "memberships", len(b.Memberships))

	if _, err := w.AcceptPendingInvite(ctx); err != nil {
		w.logger.Debug("pending invite not accepted", "error", err)
	}
	return w.reload(ctx)
}

// SignOut drops all session state and cancels in-flight loads.
func (w *Workspace) SignOut() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.signInGen++
}

func (w *Workspace) resetLocked() {
	if w.cancelLoad != nil {
		w.cancelLoad()
		w.cancelLoad = nil
	}
	w.loadGen++
	w.state = Unauthenticated
	w.identity = account.Identity{}
	w.profile = nil
	w.memberships = nil
	w.activeHouseholdID = ""
	w.members = nil
	w.transactions = nil
	w.selectedCategory = analytics.CategoryAll
	w.loadingTransactions = false
	w.accountErr = false
	w.loadErr = false
	w.saveErr = false
	w.acceptingInvite = false
	w.inviteFailed = false
	w.inviteAccepted = false
	w.failedInvite = ""
}

func (w *Workspace) isMemberLocked(householdID string) bool {
	for _, m := range w.memberships {
		if m.HouseholdID == householdID {
			return true
		}
	}
	return false
}

// SwitchHousehold makes householdID active, remembers it as the profile's
// default and reloads. Persisting the default is best effort.
func (w *Workspace) SwitchHousehold(ctx context.Context, householdID string) error {
	w.mu.Lock()
	if w.state != Ready {
		w.mu.Unlock()
		return ErrNotReady
	}
	if !w.isMemberLocked(householdID) {
		w.mu.Unlock()
		return ErrUnknownHousehold
	}
	w.setActiveLocked(householdID)
	profileID := w.profile.ID
	w.mu.Unlock()

	if err := w.accounts.SetDefaultHousehold(ctx, profileID, householdID); err != nil {
		w.logger.Error("update default household", "profile_id", profileID, "error", err)
	} else {
		w.mu.Lock()
		if w.profile != nil && w.profile.ID == profileID {
			p := *w.profile
			p.DefaultHouseholdID = &householdID
			w.profile = &p
		}
		w.mu.Unlock()
	}
	return w.reload(ctx)
}

func (w *Workspace) setActiveLocked(householdID string) {
	if w.activeHouseholdID == householdID {
		return
	}
	w.activeHouseholdID = householdID
	w.members = nil
	w.transactions = nil
	w.selectedCategory = analytics.CategoryAll
}

// CaptureInvite stores an invite token for this device and accepts it right
// away when the account is ready.
func (w *Workspace) CaptureInvite(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := w.invites.Set(ctx, token); err != nil {
		return err
	}
	w.mu.Lock()
	w.failedInvite = ""
	w.mu.Unlock()
	if w.State() != Ready {
		return nil
	}
	accepted, err := w.AcceptPendingInvite(ctx)
	if err != nil || !accepted {
		return err
	}
	return w.reload(ctx)
}

// AcceptPendingInvite accepts the device's stored invite token, if any, and
// reports whether an invite was accepted. On success the invite's household
// becomes active and the token is cleared; on failure the token is kept and
// the invite-failed flag is raised.
func (w *Workspace) AcceptPendingInvite(ctx context.Context) (bool, error) {
	token, err := w.invites.Get(ctx)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	w.mu.Lock()
	if w.state != Ready || w.profile == nil || w.identity.Email == "" || w.acceptingInvite || token == w.failedInvite {
		w.mu.Unlock()
		return false, nil
	}
	w.acceptingInvite = true
	w.inviteFailed = false
	w.inviteAccepted = false
	email := w.identity.Email
	profileID := w.profile.ID
	gen := w.signInGen
	w.mu.Unlock()

	acc, err := w.accounts.AcceptInvite(ctx, token, email, profileID)

	w.mu.Lock()
	w.acceptingInvite = false
	if gen != w.signInGen {
		w.mu.Unlock()
		return false, nil
	}
	if err != nil {
		w.inviteFailed = true
		w.failedInvite = token
		w.mu.Unlock()
		w.logger.Warn("invite accept failed", "profile_id", profileID, "error", err)
		return false, err
	}
	w.memberships = acc.Memberships
	w.setActiveLocked(acc.HouseholdID)
	w.inviteAccepted = true
	w.mu.Unlock()

	if err := w.invites.Clear(ctx); err != nil {
		w.logger.Error("clear pending invite", "error", err)
	}
	return true, nil
}

// RefreshTransactions reloads the active household's members and
// transactions.
func (w *Workspace) RefreshTransactions(ctx context.Context) error {
	if w.State() != Ready {
		return ErrNotReady
	}
	return w.reload(ctx)
}

// reload fetches members and transactions for the active household
// concurrently. Each call supersedes and cancels the previous one; a result
// arriving after a newer load started, or after the active household
// changed, is dropped.
func (w *Workspace) reload(ctx context.Context) error {
	w.mu.Lock()
	if w.state != Ready {
		w.mu.Unlock()
		return ErrNotReady
	}
	if w.cancelLoad != nil {
		w.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.cancelLoad = cancel
	w.loadGen++
	gen := w.loadGen
	householdID := w.activeHouseholdID
	w.loadingTransactions = householdID != ""
	w.loadErr = false
	w.mu.Unlock()

	var (
		members    []model.Member
		membersOK  bool
		txns       []model.Transaction
		loadedTxns bool
	)
	g, gctx := errgroup.WithContext(loadCtx)
	if householdID != "" {
		g.Go(func() error {
			m, err := w.accounts.Members(gctx, householdID)
			if err != nil {
				w.logger.Error("load members", "household_id", householdID, "error", err)
				return nil
			}
			members, membersOK = m, true
			return nil
		})
	}
	g.Go(func() error {
		t, err := w.ledger.List(gctx, householdID)
		if err != nil {
			return err
		}
		txns, loadedTxns = t, true
		return nil
	})
	err := g.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.loadGen || householdID != w.activeHouseholdID {
		w.logger.Debug("discarding stale load", "household_id", householdID)
		return nil
	}
	w.cancelLoad = nil
	w.loadingTransactions = false
	if membersOK {
		w.members = members
	} else if householdID == "" {
		w.members = nil
	}
	if err != nil || !loadedTxns {
		w.loadErr = true
		w.logger.Error("load transactions", "household_id", householdID, "error", err)
		return err
	}
	w.transactions = txns
	w.logger.Debug("transactions loaded", "household_id", householdID, "count", len(txns))
	return nil
}

// Draft is a transaction form submission.
type Draft struct {
	Description string
	Amount      string
	Category    string
	Date        string
}

// SubmitTransaction saves a transaction to the active household and prepends
// it to the local list. The list is reconciled with the store on the next
// full load.
func (w *Workspace) SubmitTransaction(ctx context.Context, d Draft) (*model.Transaction, error) {
	w.mu.Lock()
	if w.state != Ready {
		w.mu.Unlock()
		return nil, ErrNotReady
	}
	householdID := w.activeHouseholdID
	var createdBy *string
	if w.profile != nil {
		id := w.profile.ID
		createdBy = &id
	} else if w.identity.UserID != "" {
		id := w.identity.UserID
		createdBy = &id
	}
	w.mu.Unlock()

	txn, err := w.ledger.Submit(ctx, ledger.Draft{
		HouseholdID: householdID,
		CreatedBy:   createdBy,
		Description: d.Description,
		Amount:      d.Amount,
		Category:    d.Category,
		Date:        d.Date,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if errors.Is(err, ledger.ErrRejected) {
			return nil, err
		}
		w.saveErr = true
		w.logger.Error("save transaction", "household_id", householdID, "error", err)
		return nil, err
	}
	w.saveErr = false
	if householdID == w.activeHouseholdID {
		w.transactions = append([]model.Transaction{*txn}, w.transactions...)
		w.selectedCategory = analytics.CategoryAll
	}
	return txn, nil
}

// SelectCategory sets the transaction list filter. Unknown categories are
// ignored.
func (w *Workspace) SelectCategory(category string) {
	if category != analytics.CategoryAll && !model.IsCategory(category) {
		return
	}
	w.mu.Lock()
	w.selectedCategory = category
	w.mu.Unlock()
}

// ActiveHouseholdID returns the household the workspace is showing.
func (w *Workspace) ActiveHouseholdID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeHouseholdID
}
