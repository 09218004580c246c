package model

import "time"

type Author struct {
	ID    string  `json:"id"`
	Email *string `json:"email"`
}

type Transaction struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Description string    `json:"description"`
	Amount      Money     `json:"amount"`
	Category    string    `json:"category"`
	Date        Date      `json:"date"`
	CreatedBy   *string   `json:"created_by"`
	Author      *Author   `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}
