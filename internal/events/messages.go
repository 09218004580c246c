package events

import (
	"encoding/json"
	"time"

	"github.com/dukerupert/budgetcompass/internal/model"
)

// RoutingTransactionCreated is the routing key for new transaction events.
const RoutingTransactionCreated = "transaction.created"

// TransactionCreatedMessage carries enough of a new transaction for
// consumers to update their own views without reading the database.
type TransactionCreatedMessage struct {
	TransactionID string    `json:"transaction_id"`
	HouseholdID   string    `json:"household_id"`
	Category      string    `json:"category"`
	AmountCents   int64     `json:"amount_cents"`
	Date          string    `json:"date"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(t *model.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		TransactionID: t.ID,
		HouseholdID:   t.HouseholdID,
		Category:      t.Category,
		AmountCents:   t.Amount.Cents(),
		Date:          t.Date.String(),
		CreatedBy:     t.CreatedBy,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
