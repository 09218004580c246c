package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/model"
)

type TransactionStore struct {
	db *database.DB
}

func NewTransactionStore(db *database.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// NewTransaction holds the validated fields of a transaction to insert.
type NewTransaction struct {
	HouseholdID string
	Description string
	Amount      model.Money
	Category    string
	Date        model.Date
	CreatedBy   *string
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var t model.Transaction
	var cents int64
	var occurredOn string
	var createdBy, authorID, authorEmail sql.NullString
	err := row.Scan(
		&t.ID, &t.HouseholdID, &t.Description, &cents, &t.Category, &occurredOn,
		&createdBy, &t.CreatedAt, &authorID, &authorEmail,
	)
	if err != nil {
		return nil, err
	}
	t.Amount = model.Money(cents)
	t.Date, err = model.ParseDate(occurredOn)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.CreatedBy = stringPtr(createdBy)
	if authorID.Valid {
		t.Author = &model.Author{ID: authorID.String, Email: stringPtr(authorEmail)}
	}
	return &t, nil
}

// Author is resolved with a join on the creating profile.
const transactionSelect = `SELECT t.id, t.household_id, t.description, t.amount_cents, t.category, t.occurred_on,
	t.created_by, t.created_at, p.id, p.email
	FROM transactions t
	LEFT JOIN profiles p ON p.id = t.created_by`

func (s *TransactionStore) Create(ctx context.Context, nt NewTransaction) (*model.Transaction, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, household_id, description, amount_cents, category, occurred_on, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nt.HouseholdID, nt.Description, nt.Amount.Cents(), nt.Category, nt.Date.String(), nullString(nt.CreatedBy), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("transaction %s vanished after insert", id)
	}
	return t, nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	row := s.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListByHousehold returns the household's transactions, newest date first.
func (s *TransactionStore) ListByHousehold(ctx context.Context, householdID string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		transactionSelect+` WHERE t.household_id = ? ORDER BY t.occurred_on DESC, t.created_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}
