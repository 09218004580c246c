// Package ledger validates and records household transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/dukerupert/budgetcompass/internal/store"
)

var (
	// ErrRejected marks a draft that failed validation. It never reaches the
	// store.
	ErrRejected = errors.New("transaction rejected")
	ErrLoad     = errors.New("load transactions")
	ErrSave     = errors.New("save transaction")
)

// Store is the persistence the ledger needs. *store.TransactionStore
// satisfies it.
type Store interface {
	ListByHousehold(ctx context.Context, householdID string) ([]model.Transaction, error)
	Create(ctx context.Context, nt store.NewTransaction) (*model.Transaction, error)
}

// Events receives newly saved transactions.
type Events interface {
	TransactionCreated(ctx context.Context, t *model.Transaction) error
}

// Draft is an unvalidated transaction as entered by a user.
type Draft struct {
	HouseholdID string
	CreatedBy   *string
	Description string
	Amount      string
	Category    string
	Date        string
}

// ParseDraft validates a draft. An empty date means today.
func ParseDraft(d Draft) (store.NewTransaction, error) {
	if d.HouseholdID == "" {
		return store.NewTransaction{}, fmt.Errorf("%w: no active household", ErrRejected)
	}
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		return store.NewTransaction{}, fmt.Errorf("%w: description is required", ErrRejected)
	}
	amount, err := model.ParseMoney(d.Amount)
	if err != nil {
		return store.NewTransaction{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	category := d.Category
	if category == "" {
		category = model.DefaultCategory
	}
	if !model.IsCategory(category) {
		return store.NewTransaction{}, fmt.Errorf("%w: unknown category %q", ErrRejected, category)
	}
	date := model.Today()
	if strings.TrimSpace(d.Date) != "" {
		date, err = model.ParseDate(d.Date)
		if err != nil {
			return store.NewTransaction{}, fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}

	return store.NewTransaction{
		HouseholdID: d.HouseholdID,
		Description: desc,
		Amount:      amount,
		Category:    category,
		Date:        date,
		CreatedBy:   d.CreatedBy,
	}, nil
}

type Ledger struct {
	store  Store
	events Events
	logger *slog.Logger
}

func New(s Store, events Events, logger *slog.Logger) *Ledger {
	return &Ledger{store: s, events: events, logger: logger}
}

// List returns the household's transactions, newest first. An empty
// household ID yields an empty list without touching the store.
func (l *Ledger) List(ctx context.Context, householdID string) ([]model.Transaction, error) {
	if householdID == "" {
		return []model.Transaction{}, nil
	}
	txns, err := l.store.ListByHousehold(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	return txns, nil
}

// Submit validates the draft and saves it. Event publication failures are
// logged and do not fail the save.
func (l *Ledger) Submit(ctx context.Context, d Draft) (*model.Transaction, error) {
	nt, err := ParseDraft(d)
	if err != nil {
		return nil, err
	}
	return l.Create(ctx, nt)
}

func (l *Ledger) Create(ctx context.Context, nt store.NewTransaction) (*model.Transaction, error) {
	txn, err := l.store.Create(ctx, nt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSave, err)
	}
	l.logger.Debug("transaction saved", "transaction_id", txn.ID, "household_id", txn.HouseholdID)

	if l.events != nil {
		if err := l.events.TransactionCreated(ctx, txn); err != nil {
			l.logger.Error("publish transaction event", "transaction_id", txn.ID, "error", err)
		}
	}
	return txn, nil
}
