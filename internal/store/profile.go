package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/model"
)

type ProfileStore struct {
	db *database.DB
}

func NewProfileStore(db *database.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(row scanner) (*model.Profile, error) {
	var p model.Profile
	var email, householdID sql.NullString
	if err := row.Scan(&p.ID, &email, &householdID, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Email = stringPtr(email)
	p.DefaultHouseholdID = stringPtr(householdID)
	return &p, nil
}

const profileCols = `id, email, default_household_id, created_at`

// GetByID returns nil, nil when the profile does not exist.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) Create(ctx context.Context, id string, email *string) (*model.Profile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, created_at) VALUES (?, ?, ?)`,
		id, nullString(email), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.mustGet(ctx, id)
}

func (s *ProfileStore) SetDefaultHousehold(ctx context.Context, id, householdID string) (*model.Profile, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET default_household_id = ? WHERE id = ?`,
		householdID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update default household: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("update default household: profile %s not found", id)
	}
	return s.mustGet(ctx, id)
}

func (s *ProfileStore) mustGet(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s vanished after write", id)
	}
	return p, nil
}
