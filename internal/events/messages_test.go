package events

import (
	"context"
	"testing"

	"github.com/dukerupert/budgetcompass/internal/model"
)

func TestTransactionCreatedMessage(t *testing.T) {
	author := "p1"
	txn := &model.Transaction{
		ID:          "t1",
		HouseholdID: "h1",
		Category:    "food",
		Amount:      model.Money(1999),
		Date:        model.NewDate(2024, 3, 12),
		CreatedBy:   &author,
	}

	body, err := NewTransactionCreatedMessage(txn).ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := TransactionCreatedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if msg.TransactionID != "t1" || msg.HouseholdID != "h1" {
		t.Errorf("ids = %q, %q; want t1, h1", msg.TransactionID, msg.HouseholdID)
	}
	if msg.AmountCents != 1999 {
		t.Errorf("amount_cents = %d, want 1999", msg.AmountCents)
	}
	if msg.Date != "2024-03-12" {
		t.Errorf("date = %q, want %q", msg.Date, "2024-03-12")
	}
	if msg.CreatedBy == nil || *msg.CreatedBy != "p1" {
		t.Errorf("created_by = %v, want p1", msg.CreatedBy)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestMessageFromInvalidJSON(t *testing.T) {
	if _, err := TransactionCreatedMessageFromJSON([]byte("{")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.TransactionCreated(context.Background(), &model.Transaction{}); err != nil {
		t.Errorf("noop publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("noop close: %v", err)
	}
}
