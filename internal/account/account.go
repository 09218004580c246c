// Package account bootstraps a signed-in user's profile and household and
// handles household invites.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/google/uuid"
)

var (
	ErrProfile             = errors.New("profile lookup failed")
	ErrHouseholdBootstrap  = errors.New("household bootstrap failed")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteConsumed      = errors.New("invite already used")
	ErrInviteEmailMismatch = errors.New("invite email mismatch")
)

const fallbackHouseholdName = "Family budget"

type Profiles interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	Create(ctx context.Context, id string, email *string) (*model.Profile, error)
	SetDefaultHousehold(ctx context.Context, id, householdID string) (*model.Profile, error)
}

type Households interface {
	Create(ctx context.Context, name string) (*model.Household, error)
	AddMember(ctx context.Context, householdID, profileID, role string) (*model.Membership, error)
	UpsertMember(ctx context.Context, householdID, profileID, role string) (*model.Membership, error)
	ListMemberships(ctx context.Context, profileID string) ([]model.Membership, error)
	ListMembers(ctx context.Context, householdID string) ([]model.Member, error)
}

type Invites interface {
	Create(ctx context.Context, householdID string, email *string, token string) (*model.Invite, error)
	GetByToken(ctx context.Context, token string) (*model.Invite, error)
	MarkAccepted(ctx context.Context, id, profileID string) error
}

// Identity is the authenticated user as the identity service reports it.
type Identity struct {
	UserID string
	Email  string
}

type Bootstrap struct {
	Profile           *model.Profile     `json:"profile"`
	ActiveHouseholdID string             `json:"active_household_id"`
	Memberships       []model.Membership `json:"memberships"`
}

type Acceptance struct {
	HouseholdID string             `json:"household_id"`
	Memberships []model.Membership `json:"memberships"`
}

type Service struct {
	profiles   Profiles
	households Households
	invites    Invites
	logger     *slog.Logger
}

func NewService(profiles Profiles, households Households, invites Invites, logger *slog.Logger) *Service {
	return &Service{
		profiles:   profiles,
		households: households,
		invites:    invites,
		logger:     logger,
	}
}

// HouseholdName is the name given to a new user's first household.
func HouseholdName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if email == "" || local == "" {
		return fallbackHouseholdName
	}
	return local + " family"
}

// Bootstrap ensures the user has a profile and a default household, then
// loads their memberships. Running it again for the same user creates
// nothing new.
func (s *Service) Bootstrap(ctx context.Context, id Identity) (*Bootstrap, error) {
	s.logger.Debug("bootstrapping account", "user_id", id.UserID)

	profile, err := s.loadOrCreateProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	profile, err = s.ensureDefaultHousehold(ctx, id, profile)
	if err != nil {
		return nil, err
	}

	memberships, err := s.households.ListMemberships(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHouseholdBootstrap, err)
	}

	return &Bootstrap{
		Profile:           profile,
		ActiveHouseholdID: ChooseActive(profile, memberships),
		Memberships:       memberships,
	}, nil
}

func (s *Service) loadOrCreateProfile(ctx context.Context, id Identity) (*model.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	if profile != nil {
		return profile, nil
	}

	s.logger.Debug("profile missing, creating", "user_id", id.UserID)
	var email *string
	if id.Email != "" {
		email = &id.Email
	}
	profile, err = s.profiles.Create(ctx, id.UserID, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	return profile, nil
}

// ensureDefaultHousehold runs three independent writes. A failure part way
// leaves the earlier rows in place; the next attempt creates a fresh
// household.
func (s *Service) ensureDefaultHousehold(ctx context.Context, id Identity, profile *model.Profile) (*model.Profile, error) {
	if profile.HasDefaultHousehold() {
		return profile, nil
	}

	name := HouseholdName(id.Email)
	household, err := s.households.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHouseholdBootstrap, err)
	}
	s.logger.Debug("household created", "household_id", household.ID, "name", name)

	if _, err := s.households.AddMember(ctx, household.ID, profile.ID, model.RoleOwner); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHouseholdBootstrap, err)
	}

	profile, err = s.profiles.SetDefaultHousehold(ctx, profile.ID, household.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHouseholdBootstrap, err)
	}
	return profile, nil
}

// ChooseActive picks the profile's default household if it is still a
// member, otherwise the oldest membership, otherwise "".
func ChooseActive(profile *model.Profile, memberships []model.Membership) string {
	if profile != nil && profile.DefaultHouseholdID != nil {
		for _, m := range memberships {
			if m.HouseholdID == *profile.DefaultHouseholdID {
				return m.HouseholdID
			}
		}
	}
	if len(memberships) > 0 {
		return memberships[0].HouseholdID
	}
	return ""
}

// AcceptInvite joins profileID to the invite's household. An existing
// membership is kept with its role. Accepting the same pending invite twice
// is harmless.
func (s *Service) AcceptInvite(ctx context.Context, token, email, profileID string) (*Acceptance, error) {
	s.logger.Debug("accepting invite", "profile_id", profileID)

	invite, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if invite == nil {
		return nil, ErrInviteNotFound
	}
	if invite.Status != nil && *invite.Status != model.InviteStatusPending {
		return nil, ErrInviteConsumed
	}
	if invite.Email != nil && *invite.Email != "" && !strings.EqualFold(*invite.Email, email) {
		return nil, ErrInviteEmailMismatch
	}

	if _, err := s.households.UpsertMember(ctx, invite.HouseholdID, profileID, model.RoleMember); err != nil {
		return nil, fmt.Errorf("join household: %w", err)
	}

	if err := s.invites.MarkAccepted(ctx, invite.ID, profileID); err != nil {
		s.logger.Warn("invite status update skipped", "invite_id", invite.ID, "error", err)
	}

	memberships, err := s.households.ListMemberships(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("refresh memberships: %w", err)
	}

	s.logger.Info("invite accepted", "household_id", invite.HouseholdID, "profile_id", profileID)
	return &Acceptance{HouseholdID: invite.HouseholdID, Memberships: memberships}, nil
}

// CreateInvite issues a pending invite for householdID. An empty email
// creates an invite anyone holding the link can accept.
func (s *Service) CreateInvite(ctx context.Context, householdID, email string) (*model.Invite, error) {
	if householdID == "" {
		return nil, errors.New("create invite: no active household")
	}
	var emailPtr *string
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		emailPtr = &e
	}
	invite, err := s.invites.Create(ctx, householdID, emailPtr, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}
	s.logger.Debug("invite created", "household_id", householdID, "invite_id", invite.ID)
	return invite, nil
}

func (s *Service) Memberships(ctx context.Context, profileID string) ([]model.Membership, error) {
	memberships, err := s.households.ListMemberships(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

func (s *Service) Members(ctx context.Context, householdID string) ([]model.Member, error) {
	members, err := s.households.ListMembers(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// SetDefaultHousehold remembers the household the user switched to.
func (s *Service) SetDefaultHousehold(ctx context.Context, profileID, householdID string) error {
	if _, err := s.profiles.SetDefaultHousehold(ctx, profileID, householdID); err != nil {
		return fmt.Errorf("set default household: %w", err)
	}
	return nil
}
