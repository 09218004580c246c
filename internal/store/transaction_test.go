package store

import (
	"context"
	"testing"

	"github.com/dukerupert/budgetcompass/internal/model"
)

func TestTransactionCreateWithAuthor(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTransactionStore(db)
	hs := NewHouseholdStore(db)
	ctx := context.Background()
	createProfile(t, db, "p1", "alice@example.com")

	h, _ := hs.Create(ctx, "Home")
	txn, err := ts.Create(ctx, NewTransaction{
		HouseholdID: h.ID,
		Description: "Groceries",
		Amount:      model.Money(4250),
		Category:    "food",
		Date:        model.NewDate(2024, 3, 12),
		CreatedBy:   strPtr("p1"),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if txn.Amount != 4250 {
		t.Errorf("amount = %d, want 4250", txn.Amount)
	}
	if txn.Date.String() != "2024-03-12" {
		t.Errorf("date = %q, want %q", txn.Date.String(), "2024-03-12")
	}
	if txn.Author == nil || txn.Author.Email == nil || *txn.Author.Email != "alice@example.com" {
		t.Errorf("author = %+v, want alice@example.com", txn.Author)
	}
}

func TestTransactionWithoutAuthor(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTransactionStore(db)
	hs := NewHouseholdStore(db)
	ctx := context.Background()

	h, _ := hs.Create(ctx, "Home")
	txn, err := ts.Create(ctx, NewTransaction{
		HouseholdID: h.ID, Description: "Rent", Amount: 100000, Category: "housing", Date: model.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if txn.Author != nil {
		t.Errorf("author = %+v, want nil", txn.Author)
	}
}

func TestTransactionListOrder(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTransactionStore(db)
	hs := NewHouseholdStore(db)
	ctx := context.Background()

	h, _ := hs.Create(ctx, "Home")
	other, _ := hs.Create(ctx, "Other")
	dates := []model.Date{model.NewDate(2024, 1, 5), model.NewDate(2024, 3, 1), model.NewDate(2024, 2, 10)}
	for _, d := range dates {
		if _, err := ts.Create(ctx, NewTransaction{
			HouseholdID: h.ID, Description: "x", Amount: 100, Category: "food", Date: d,
		}); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}
	if _, err := ts.Create(ctx, NewTransaction{
		HouseholdID: other.ID, Description: "elsewhere", Amount: 100, Category: "food", Date: model.NewDate(2024, 4, 1),
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	txns, err := ts.ListByHousehold(ctx, h.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("len = %d, want 3", len(txns))
	}
	want := []string{"2024-03-01", "2024-02-10", "2024-01-05"}
	for i, w := range want {
		if got := txns[i].Date.String(); got != w {
			t.Errorf("txns[%d].Date = %q, want %q", i, got, w)
		}
	}
}

func TestTransactionRejectsNonPositiveAmount(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTransactionStore(db)
	hs := NewHouseholdStore(db)
	ctx := context.Background()

	h, _ := hs.Create(ctx, "Home")
	_, err := ts.Create(ctx, NewTransaction{
		HouseholdID: h.ID, Description: "x", Amount: 0, Category: "food", Date: model.NewDate(2024, 1, 1),
	})
	if err == nil {
		t.Error("expected check constraint error for zero amount")
	}
}
