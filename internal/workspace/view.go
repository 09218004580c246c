package workspace

import (
	"github.com/dukerupert/budgetcompass/internal/analytics"
	"github.com/dukerupert/budgetcompass/internal/model"
)

// Flags are the user-visible outcome markers of the last operations.
type Flags struct {
	AccountError         bool `json:"account_error"`
	TransactionLoadError bool `json:"transaction_load_error"`
	TransactionSaveError bool `json:"transaction_save_error"`
	LoadingTransactions  bool `json:"loading_transactions"`
	AcceptingInvite      bool `json:"accepting_invite"`
	InviteFailed         bool `json:"invite_failed"`
	InviteAccepted       bool `json:"invite_accepted"`
}

// View is an immutable copy of the workspace with derived analytics.
type View struct {
	State               State                  `json:"state"`
	Email               string                 `json:"email,omitempty"`
	Profile             *model.Profile         `json:"profile"`
	Memberships         []model.Membership     `json:"memberships"`
	ActiveHouseholdID   string                 `json:"active_household_id"`
	Members             []model.Member         `json:"members"`
	Transactions        []model.Transaction    `json:"transactions"`
	SelectedCategory    string                 `json:"selected_category"`
	Filtered            []model.Transaction    `json:"filtered_transactions"`
	Summary             analytics.Summary      `json:"summary"`
	MonthlyTrend        []analytics.MonthTotal `json:"monthly_trend"`
	HighestMonthlyTotal model.Money            `json:"highest_monthly_total"`
	Flags               Flags                  `json:"flags"`
}

// ActiveHousehold returns the active membership's household, or nil.
func (v View) ActiveHousehold() *model.Household {
	for _, m := range v.Memberships {
		if m.HouseholdID == v.ActiveHouseholdID {
			return m.Household
		}
	}
	return nil
}

func (w *Workspace) Snapshot() View {
	w.mu.Lock()
	v := View{
		State:             w.state,
		Email:             w.identity.Email,
		ActiveHouseholdID: w.activeHouseholdID,
		SelectedCategory:  w.selectedCategory,
		Memberships:       append([]model.Membership{}, w.memberships...),
		Members:           append([]model.Member{}, w.members...),
		Transactions:      append([]model.Transaction{}, w.transactions...),
		Flags: Flags{
			AccountError:         w.accountErr,
			TransactionLoadError: w.loadErr,
			TransactionSaveError: w.saveErr,
			LoadingTransactions:  w.loadingTransactions,
			AcceptingInvite:      w.acceptingInvite,
			InviteFailed:         w.inviteFailed,
			InviteAccepted:       w.inviteAccepted,
		},
	}
	if w.profile != nil {
		p := *w.profile
		v.Profile = &p
	}
	w.mu.Unlock()

	v.Filtered = analytics.Filter(v.Transactions, v.SelectedCategory)
	v.Summary = analytics.Summarize(v.Transactions)
	v.MonthlyTrend = analytics.MonthlyTrend(v.Transactions)
	v.HighestMonthlyTotal = analytics.HighestMonthlyTotal(v.MonthlyTrend)
	return v
}
