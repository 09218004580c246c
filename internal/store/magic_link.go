package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/budgetcompass/internal/database"
	"github.com/dukerupert/budgetcompass/internal/model"
)

type MagicLinkStore struct {
	db *database.DB
}

func NewMagicLinkStore(db *database.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func scanMagicLink(row scanner) (*model.MagicLink, error) {
	var ml model.MagicLink
	var usedAt sql.NullTime
	err := row.Scan(&ml.ID, &ml.Token, &ml.Email, &ml.Purpose, &ml.ExpiresAt, &usedAt, &ml.CreatedAt)
	if err != nil {
		return nil, err
	}
	ml.UsedAt = timePtr(usedAt)
	return &ml, nil
}

const magicLinkCols = `id, token, email, purpose, expires_at, used_at, created_at`

// generateToken returns 32 random bytes, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create issues a single-use link token for the email. Any previous unused
// links for the same email are invalidated first.
func (s *MagicLinkStore) Create(ctx context.Context, email, purpose string, ttl time.Duration) (*model.MagicLink, error) {
	created := now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE magic_links SET used_at = ? WHERE email = ? AND used_at IS NULL AND expires_at > ?`,
		created, email, created,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous links: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO magic_links (id, token, email, purpose, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, token, email, purpose, created.Add(ttl), created,
	)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+magicLinkCols+` FROM magic_links WHERE id = ?`, id)
	ml, err := scanMagicLink(row)
	if err != nil {
		return nil, fmt.Errorf("read magic link: %w", err)
	}
	return ml, nil
}

// GetValid returns the link for token, or nil if it is unknown, used or expired.
func (s *MagicLinkStore) GetValid(ctx context.Context, token string) (*model.MagicLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+magicLinkCols+` FROM magic_links WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		token, now(),
	)
	ml, err := scanMagicLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic link: %w", err)
	}
	return ml, nil
}

// MarkUsed consumes the link. It reports false if another request consumed it
// first.
func (s *MagicLinkStore) MarkUsed(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE magic_links SET used_at = ? WHERE id = ? AND used_at IS NULL`, now(), id)
	if err != nil {
		return false, fmt.Errorf("mark magic link used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *MagicLinkStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM magic_links WHERE expires_at <= ?`, now())
	if err != nil {
		return 0, fmt.Errorf("delete expired magic links: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
