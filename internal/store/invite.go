package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/model"
)

type InviteStore struct {
	db *database.DB
}

func NewInviteStore(db *database.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(row scanner) (*model.Invite, error) {
	var inv model.Invite
	var email, status, accepted sql.NullString
	var acceptedAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.HouseholdID, &email, &inv.Token, &status, &accepted, &inv.CreatedAt, &acceptedAt)
	if err != nil {
		return nil, err
	}
	inv.Email = stringPtr(email)
	inv.Status = stringPtr(status)
	inv.AcceptedProfileID = stringPtr(accepted)
	inv.AcceptedAt = timePtr(acceptedAt)
	return &inv, nil
}

const inviteCols = `id, household_id, email, token, status, accepted_profile, created_at, accepted_at`

func (s *InviteStore) Create(ctx context.Context, householdID string, email *string, token string) (*model.Invite, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_invites (id, household_id, email, token, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, householdID, nullString(email), token, model.InviteStatusPending, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteCols+` FROM household_invites WHERE id = ?`, id)
	inv, err := scanInvite(row)
	if err != nil {
		return nil, fmt.Errorf("read invite: %w", err)
	}
	return inv, nil
}

// GetByToken returns nil, nil when no invite carries the token.
func (s *InviteStore) GetByToken(ctx context.Context, token string) (*model.Invite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteCols+` FROM household_invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

// MarkAccepted records the accepting profile. It does not check the current
// status.
func (s *InviteStore) MarkAccepted(ctx context.Context, id, profileID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE household_invites SET status = ?, accepted_profile = ?, accepted_at = ? WHERE id = ?`,
		model.InviteStatusAccepted, profileID, now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark invite accepted: %w", err)
	}
	return nil
}
