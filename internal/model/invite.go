package model

import "time"

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
)

type Invite struct {
	ID                string     `json:"id"`
	HouseholdID       string     `json:"household_id"`
	Email             *string    `json:"email"`
	Token             string     `json:"token"`
	Status            *string    `json:"status"`
	AcceptedProfileID *string    `json:"accepted_profile"`
	CreatedAt         time.Time  `json:"created_at"`
	AcceptedAt        *time.Time `json:"accepted_at"`
}
