// Package analytics derives spending summaries from a household's
// transactions. Every function is pure and recomputed from the full list.
package analytics

import (
	"sort"

	"github.com/dukerupert/budgetcompass/internal/model"
)

// CategoryAll is the filter value that disables category filtering.
const CategoryAll = "all"

// trendMonths is how many of the most recent months MonthlyTrend keeps.
const trendMonths = 6

type CategoryTotal struct {
	ID    string      `json:"id"`
	Color string      `json:"color"`
	Total model.Money `json:"total"`
	Count int         `json:"count"`
}

type Summary struct {
	Categories  []CategoryTotal `json:"categories"`
	TotalSpent  model.Money     `json:"total_spent"`
	Average     model.Money     `json:"average"`
	TopCategory *CategoryTotal  `json:"top_category"`
}

type MonthTotal struct {
	Month model.Date  `json:"month"`
	Total model.Money `json:"total"`
}

// Summarize builds one row per category in enumeration order, including
// categories with no spending. Transactions with an unknown category count
// toward no row.
func Summarize(txns []model.Transaction) Summary {
	rows := make([]CategoryTotal, len(model.Categories))
	index := make(map[string]int, len(model.Categories))
	for i, c := range model.Categories {
		rows[i] = CategoryTotal{ID: c.ID, Color: c.Color}
		index[c.ID] = i
	}

	for _, t := range txns {
		i, ok := index[t.Category]
		if !ok {
			continue
		}
		rows[i].Total += t.Amount
		rows[i].Count++
	}

	var total model.Money
	for _, r := range rows {
		total += r.Total
	}

	s := Summary{
		Categories: rows,
		TotalSpent: total,
		Average:    total.DivRound(len(txns)),
	}

	if len(txns) > 0 {
		top := 0
		for i := 1; i < len(rows); i++ {
			if rows[i].Total > rows[top].Total {
				top = i
			}
		}
		t := rows[top]
		s.TopCategory = &t
	}
	return s
}

// MonthlyTrend sums spending per calendar month and returns the last six
// months that have data, oldest first. Months without transactions are
// omitted rather than reported as zero.
func MonthlyTrend(txns []model.Transaction) []MonthTotal {
	byMonth := make(map[model.Date]model.Money)
	for _, t := range txns {
		byMonth[t.Date.MonthStart()] += t.Amount
	}

	trend := make([]MonthTotal, 0, len(byMonth))
	for month, total := range byMonth {
		trend = append(trend, MonthTotal{Month: month, Total: total})
	}
	sort.Slice(trend, func(i, j int) bool {
		return trend[i].Month.Before(trend[j].Month.Time)
	})

	if len(trend) > trendMonths {
		trend = trend[len(trend)-trendMonths:]
	}
	return trend
}

// HighestMonthlyTotal returns the largest total in the trend, or 0. It is the
// scale for trend bars.
func HighestMonthlyTotal(trend []MonthTotal) model.Money {
	var highest model.Money
	for _, m := range trend {
		if m.Total > highest {
			highest = m.Total
		}
	}
	return highest
}

// Filter returns the transactions in category. CategoryAll returns txns
// unchanged.
func Filter(txns []model.Transaction, category string) []model.Transaction {
	if category == CategoryAll || category == "" {
		return txns
	}
	filtered := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Category == category {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
