// Package export renders a household's transactions and analytics as an
// XLSX workbook.
package export

import (
	"fmt"
	"io"

	"github.com/dukerupert/budgetcompass/internal/analytics"
	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	SheetTransactions = "Transactions"
	SheetCategories   = "Categories"
	SheetMonthly      = "Monthly"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteXLSX writes three sheets: the transactions newest first, the category
// summary and the monthly trend.
func WriteXLSX(w io.Writer, txns []model.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeTransactions(f, txns); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetCategories); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeCategories(f, analytics.Summarize(txns)); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetMonthly); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeMonthly(f, analytics.MonthlyTrend(txns)); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func writeTransactions(f *excelize.File, txns []model.Transaction) error {
	if err := setRow(f, SheetTransactions, 1, "Date", "Description", "Category", "Amount", "Author"); err != nil {
		return err
	}
	for i, t := range txns {
		author := ""
		if t.Author != nil && t.Author.Email != nil {
			author = *t.Author.Email
		}
		if err := setRow(f, SheetTransactions, i+2, t.Date.String(), t.Description, t.Category, t.Amount.Float(), author); err != nil {
			return err
		}
	}
	f.SetColWidth(SheetTransactions, "A", "A", 12)
	f.SetColWidth(SheetTransactions, "B", "B", 30)
	f.SetColWidth(SheetTransactions, "C", "C", 12)
	f.SetColWidth(SheetTransactions, "D", "D", 12)
	f.SetColWidth(SheetTransactions, "E", "E", 25)
	return nil
}

func writeCategories(f *excelize.File, s analytics.Summary) error {
	if err := setRow(f, SheetCategories, 1, "Category", "Total", "Count"); err != nil {
		return err
	}
	row := 2
	for _, c := range s.Categories {
		if err := setRow(f, SheetCategories, row, c.ID, c.Total.Float(), c.Count); err != nil {
			return err
		}
		row++
	}
	if err := setRow(f, SheetCategories, row, "Total", s.TotalSpent.Float()); err != nil {
		return err
	}
	return setRow(f, SheetCategories, row+1, "Average", s.Average.Float())
}

func writeMonthly(f *excelize.File, trend []analytics.MonthTotal) error {
	if err := setRow(f, SheetMonthly, 1, "Month", "Total"); err != nil {
		return err
	}
	for i, m := range trend {
		if err := setRow(f, SheetMonthly, i+2, m.Month.Format("2006-01"), m.Total.Float()); err != nil {
			return err
		}
	}
	return nil
}
