package model

import "time"

type Profile struct {
	ID                 string    `json:"id"`
	Email              *string   `json:"email"`
	DefaultHouseholdID *string   `json:"default_household_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasDefaultHousehold reports whether the profile points at a household.
func (p *Profile) HasDefaultHousehold() bool {
	return p.DefaultHouseholdID != nil && *p.DefaultHouseholdID != ""
}
