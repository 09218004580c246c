package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrAuth wraps every identity failure.
var ErrAuth = errors.New("authentication failed")

const (
	linkTTL           = 15 * time.Minute
	minPasswordLength = 6
)

type Users interface {
	Create(ctx context.Context, email string, passwordHash *string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Confirm(ctx context.Context, id string) error
	ClearPassword(ctx context.Context, id string) error
}

type Sessions interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error)
	GetActive(ctx context.Context, id string) (*model.Session, error)
	Revoke(ctx context.Context, id string) error
}

type Links interface {
	Create(ctx context.Context, email, purpose string, ttl time.Duration) (*model.MagicLink, error)
	GetValid(ctx context.Context, token string) (*model.MagicLink, error)
	MarkUsed(ctx context.Context, id string) (bool, error)
}

type Mailer interface {
	Configured() bool
	SendMagicLink(ctx context.Context, toEmail, token, purpose string) error
}

// Claims are the JWT claims of a session token. Subject is the user ID.
type Claims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Session is an opened session and its signed token.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Principal AuthContext `json:"-"`
}

type Service struct {
	users      Users
	sessions   Sessions
	links      Links
	mailer     Mailer
	secret     []byte
	sessionTTL time.Duration
	baseURL    string
	logger     *slog.Logger
}

type Config struct {
	Secret     string
	SessionTTL time.Duration
	BaseURL    string
}

func NewService(users Users, sessions Sessions, links Links, mailer Mailer, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		links:      links,
		mailer:     mailer,
		secret:     []byte(cfg.Secret),
		sessionTTL: cfg.SessionTTL,
		baseURL:    cfg.BaseURL,
		logger:     logger,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RejectedError is an identity failure caused by the caller's input, such
// as a wrong password. Reason is safe to show to the user.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return ErrAuth.Error() + ": " + e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrAuth }

func authErr(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// SendMagicLink emails a passwordless sign-in link. Unknown addresses get an
// account when the link is verified.
func (s *Service) SendMagicLink(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return authErr("email is required")
	}
	return s.sendLink(ctx, email, model.LinkPurposeLogin)
}

// SignUpWithPassword registers an unconfirmed user and emails a
// confirmation link.
func (s *Service) SignUpWithPassword(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return authErr("email is required")
	}
	if len(password) < minPasswordLength {
		return authErr("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if existing != nil {
		return authErr("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", ErrAuth, err)
	}
	hashStr := string(hash)
	if _, err := s.users.Create(ctx, email, &hashStr); err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}

	return s.sendLink(ctx, email, model.LinkPurposeSignup)
}

func (s *Service) sendLink(ctx context.Context, email, purpose string) error {
	link, err := s.links.Create(ctx, email, purpose, linkTTL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}

	if s.mailer == nil || !s.mailer.Configured() {
		s.logger.Warn("email not configured, link not sent",
			"email", email,
			"purpose", purpose,
			"link", s.baseURL+"/auth/verify?token="+link.Token,
		)
		return nil
	}
	if err := s.mailer.SendMagicLink(ctx, email, link.Token, purpose); err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	s.logger.Info("link sent", "email", email, "purpose", purpose)
	return nil
}

// SignInWithPassword opens a session for a confirmed user with a matching
// password.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if user == nil || user.PasswordHash == nil {
		return nil, authErr("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, authErr("invalid credentials")
	}
	if user.ConfirmedAt == nil {
		return nil, authErr("email not confirmed")
	}
	return s.openSession(ctx, user)
}

// Verify consumes a link token, confirming the user and opening a session.
func (s *Service) Verify(ctx context.Context, token string) (*Session, error) {
	link, err := s.links.GetValid(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if link == nil {
		return nil, authErr("link invalid or expired")
	}
	ok, err := s.links.MarkUsed(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if !ok {
		return nil, authErr("link already used")
	}

	user, err := s.users.GetByEmail(ctx, link.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if user == nil {
		user, err = s.users.Create(ctx, link.Email, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		s.logger.Info("user created from link", "user_id", user.ID)
	}
	// Only a sign-up link may activate the password stored at sign-up.
	if link.Purpose != model.LinkPurposeSignup && user.ConfirmedAt == nil && user.PasswordHash != nil {
		if err := s.users.ClearPassword(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		s.logger.Warn("dropped unconfirmed password on login link", "user_id", user.ID)
	}
	if err := s.users.Confirm(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return s.openSession(ctx, user)
}

func (s *Service) openSession(ctx context.Context, user *model.User) (*Session, error) {
	sess, err := s.sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	claims := Claims{
		Email:     user.Email,
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %w", ErrAuth, err)
	}

	s.logger.Debug("session opened", "user_id", user.ID, "session_id", sess.ID)
	return &Session{
		Token:     signed,
		ExpiresAt: sess.ExpiresAt,
		Principal: AuthContext{UserID: user.ID, Email: user.Email, SessionID: sess.ID},
	}, nil
}

// Authenticate validates a session token and checks that its session row is
// still live.
func (s *Service) Authenticate(ctx context.Context, token string) (AuthContext, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	sess, err := s.sessions.GetActive(ctx, claims.SessionID)
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if sess == nil || sess.UserID != claims.Subject {
		return AuthContext{}, authErr("session revoked or expired")
	}

	return AuthContext{UserID: claims.Subject, Email: claims.Email, SessionID: sess.ID}, nil
}

func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return nil
}
