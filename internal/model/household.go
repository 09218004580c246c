package model

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a profile to a household. Household is populated when
// the membership was loaded together with the household row.
type Membership struct {
	HouseholdID string     `json:"household_id"`
	ProfileID   string     `json:"profile_id"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	Household   *Household `json:"household,omitempty"`
}

// Member is a roster entry of a single household.
type Member struct {
	ProfileID string  `json:"profile_id"`
	Role      string  `json:"role"`
	Email     *string `json:"email"`
}
