// Package categorize suggests a spending category from a transaction
// description.
package categorize

import (
	"strings"
	"unicode"
)

const fallback = "other"

// Suggest returns the category ID for a description. Matching is
// case-insensitive: the whole description first, then individual words,
// then word stems. Falls back to "other".
func Suggest(description string) string {
	text := strings.ToLower(strings.TrimSpace(description))
	if text == "" {
		return fallback
	}

	// Phase 1: whole description
	if cat, ok := exactMatch[text]; ok {
		return cat
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	// Phase 2: whole words, in the order they appear
	for _, tok := range tokens {
		if cat, ok := wordMatch[tok]; ok {
			return cat
		}
	}

	// Phase 3: stems (ordered longer/more-specific first)
	for _, entry := range stemMatches {
		for _, tok := range tokens {
			if strings.HasPrefix(tok, entry.stem) {
				return entry.category
			}
		}
	}

	return fallback
}

var exactMatch = map[string]string{
	"rent":          "housing",
	"mortgage":      "housing",
	"groceries":     "food",
	"supermarket":   "food",
	"taxi":          "transport",
	"fuel":          "transport",
	"cinema":        "fun",
	"netflix":       "fun",
	"pharmacy":      "health",
	"dentist":       "health",
	"internet":      "utilities",
	"electricity":   "utilities",
	"phone bill":    "utilities",
	"mobile plan":   "utilities",
	"car insurance": "transport",
	"оренда":        "housing",
	"продукти":      "food",
	"таксі":         "transport",
	"кіно":          "fun",
	"аптека":        "health",
	"інтернет":      "utilities",
}

var wordMatch = map[string]string{
	// Housing
	"rent":      "housing",
	"landlord":  "housing",
	"furniture": "housing",
	"plumber":   "housing",
	"repair":    "housing",
	"repairs":   "housing",
	"квартира":  "housing",

	// Food
	"lunch":     "food",
	"dinner":    "food",
	"breakfast": "food",
	"coffee":    "food",
	"cafe":      "food",
	"bakery":    "food",
	"pizza":     "food",
	"groceries": "food",
	"кава":      "food",
	"обід":      "food",
	"вечеря":    "food",

	// Transport
	"bus":     "transport",
	"metro":   "transport",
	"subway":  "transport",
	"train":   "transport",
	"uber":    "transport",
	"bolt":    "transport",
	"taxi":    "transport",
	"parking": "transport",
	"petrol":  "transport",
	"gas":     "transport",
	"fuel":    "transport",
	"метро":   "transport",
	"автобус": "transport",
	"бензин":  "transport",

	// Fun
	"cinema":  "fun",
	"movie":   "fun",
	"movies":  "fun",
	"concert": "fun",
	"theatre": "fun",
	"theater": "fun",
	"game":    "fun",
	"games":   "fun",
	"bar":     "fun",
	"кіно":    "fun",
	"концерт": "fun",

	// Health
	"doctor":     "health",
	"dentist":    "health",
	"pharmacy":   "health",
	"medicine":   "health",
	"gym":        "health",
	"vitamins":   "health",
	"hospital":   "health",
	"лікар":      "health",
	"аптека":     "health",
	"спортзал":   "health",
	"стоматолог": "health",

	// Utilities
	"electricity": "utilities",
	"water":       "utilities",
	"heating":     "utilities",
	"internet":    "utilities",
	"phone":       "utilities",
	"utilities":   "utilities",
	"світло":      "utilities",
	"опалення":    "utilities",
	"комуналка":   "utilities",
}

var stemMatches = []struct {
	stem     string
	category string
}{
	// Housing
	{"mortgag", "housing"},
	{"apartment", "housing"},
	{"оренд", "housing"},
	{"квартир", "housing"},
	{"ремонт", "housing"},

	// Food
	{"restaurant", "food"},
	{"grocer", "food"},
	{"supermarket", "food"},
	{"ресторан", "food"},
	{"продукт", "food"},
	{"супермаркет", "food"},

	// Transport
	{"airline", "transport"},
	{"flight", "transport"},
	{"ticket", "transport"},
	{"квиток", "transport"},
	{"квитк", "transport"},
	{"таксі", "transport"},

	// Fun
	{"netflix", "fun"},
	{"spotify", "fun"},
	{"vacation", "fun"},
	{"подорож", "fun"},

	// Health
	{"medic", "health"},
	{"clinic", "health"},
	{"pharm", "health"},
	{"лік", "health"},

	// Utilities
	{"electric", "utilities"},
	{"subscription", "utilities"},
	{"комунал", "utilities"},
}
