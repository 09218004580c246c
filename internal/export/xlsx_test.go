package export

import (
	"bytes"
	"testing"

	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	email := "alice@example.com"
	txns := []model.Transaction{
		{Description: "Groceries", Amount: 4250, Category: "food", Date: model.NewDate(2024, 3, 12),
			Author: &model.Author{ID: "u1", Email: &email}},
		{Description: "Rent", Amount: 100000, Category: "housing", Date: model.NewDate(2024, 2, 1)},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, txns); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetTransactions)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("transaction rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "2024-03-12" || rows[1][1] != "Groceries" || rows[1][3] != "42.5" {
		t.Errorf("row 2 = %v, want 2024-03-12 Groceries 42.5", rows[1])
	}
	if rows[1][4] != email {
		t.Errorf("author = %q, want %q", rows[1][4], email)
	}

	cats, err := f.GetRows(SheetCategories)
	if err != nil {
		t.Fatalf("get category rows: %v", err)
	}
	// header, seven categories, total, average
	if len(cats) != 1+len(model.Categories)+2 {
		t.Fatalf("category rows = %d, want %d", len(cats), 1+len(model.Categories)+2)
	}
	if cats[1][0] != "housing" || cats[1][1] != "1000" {
		t.Errorf("housing row = %v, want housing 1000", cats[1])
	}
	if last := cats[len(cats)-1]; last[0] != "Average" || last[1] != "521.25" {
		t.Errorf("average row = %v, want Average 521.25", last)
	}

	months, err := f.GetRows(SheetMonthly)
	if err != nil {
		t.Fatalf("get monthly rows: %v", err)
	}
	if len(months) != 3 || months[1][0] != "2024-02" || months[2][0] != "2024-03" {
		t.Errorf("monthly rows = %v, want 2024-02 then 2024-03", months)
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(SheetTransactions)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
