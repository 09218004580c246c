package ledger

import (
	"testing"

	"github.com/dukerupert/budgetcompass/internal/database"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
