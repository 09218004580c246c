package store

import (
	"context"
	"testing"

	"github.com/dukerupert/budgetcompass/internal/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func createProfile(t *testing.T, db *database.DB, id, email string) {
	t.Helper()
	if _, err := NewProfileStore(db).Create(context.Background(), id, strPtr(email)); err != nil {
		t.Fatalf("create profile: %v", err)
	}
}
