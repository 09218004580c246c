package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/model"
)

type HouseholdStore struct {
	db *database.DB
}

func NewHouseholdStore(db *database.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(row scanner) (*model.Household, error) {
	var h model.Household
	if err := row.Scan(&h.ID, &h.Name, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMembership(row scanner) (*model.Membership, error) {
	var m model.Membership
	if err := row.Scan(&m.HouseholdID, &m.ProfileID, &m.Role, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, created_at`
const householdMemberCols = `household_id, profile_id, role, created_at`

func (s *HouseholdStore) Create(ctx context.Context, name string) (*model.Household, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO households (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	h, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("household %s vanished after insert", id)
	}
	return h, nil
}

func (s *HouseholdStore) GetByID(ctx context.Context, id string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// AddMember inserts a membership and fails if the pair already exists.
func (s *HouseholdStore) AddMember(ctx context.Context, householdID, profileID, role string) (*model.Membership, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_members (household_id, profile_id, role, created_at) VALUES (?, ?, ?, ?)`,
		householdID, profileID, role, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.GetMember(ctx, householdID, profileID)
}

// UpsertMember inserts a membership keyed on (household, profile). An existing
// row keeps its role and creation time.
func (s *HouseholdStore) UpsertMember(ctx context.Context, householdID, profileID, role string) (*model.Membership, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_members (household_id, profile_id, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (household_id, profile_id) DO NOTHING`,
		householdID, profileID, role, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert member: %w", err)
	}
	return s.GetMember(ctx, householdID, profileID)
}

func (s *HouseholdStore) GetMember(ctx context.Context, householdID, profileID string) (*model.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND profile_id = ?`,
		householdID, profileID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMemberships returns the profile's memberships, oldest first, with the
// household row attached.
func (s *HouseholdStore) ListMemberships(ctx context.Context, profileID string) ([]model.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hm.household_id, hm.profile_id, hm.role, hm.created_at, h.id, h.name, h.created_at
		 FROM household_members hm
		 JOIN households h ON h.id = hm.household_id
		 WHERE hm.profile_id = ?
		 ORDER BY hm.created_at ASC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []model.Membership
	for rows.Next() {
		var m model.Membership
		var h model.Household
		if err := rows.Scan(&m.HouseholdID, &m.ProfileID, &m.Role, &m.CreatedAt, &h.ID, &h.Name, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Household = &h
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListMembers returns the household roster ordered by role name ascending.
func (s *HouseholdStore) ListMembers(ctx context.Context, householdID string) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hm.profile_id, hm.role, p.email
		 FROM household_members hm
		 LEFT JOIN profiles p ON p.id = hm.profile_id
		 WHERE hm.household_id = ?
		 ORDER BY hm.role ASC, hm.created_at ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		var email sql.NullString
		if err := rows.Scan(&m.ProfileID, &m.Role, &email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Email = stringPtr(email)
		members = append(members, m)
	}
	return members, rows.Err()
}
