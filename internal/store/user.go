package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/model"
)

type UserStore struct {
	db *database.DB
}

func NewUserStore(db *database.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var hash sql.NullString
	var confirmed sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &hash, &confirmed, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.PasswordHash = stringPtr(hash)
	u.ConfirmedAt = timePtr(confirmed)
	return &u, nil
}

const userCols = `id, email, password_hash, confirmed_at, created_at`

// Create inserts an unconfirmed user. passwordHash is nil for passwordless
// accounts.
func (s *UserStore) Create(ctx context.Context, email string, passwordHash *string) (*model.User, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, nullString(passwordHash), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ClearPassword drops the password of a user that has not been confirmed
// yet. Confirmed users are left alone.
func (s *UserStore) ClearPassword(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = NULL WHERE id = ? AND confirmed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("clear password: %w", err)
	}
	return nil
}

// Confirm stamps confirmed_at the first time it is called.
func (s *UserStore) Confirm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET confirmed_at = ? WHERE id = ? AND confirmed_at IS NULL`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("confirm user: %w", err)
	}
	return nil
}
