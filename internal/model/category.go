package model

type Category struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

// Categories is the fixed, ordered category enumeration. Aggregations walk it
// in this order, so the order decides tie-breaks.
var Categories = []Category{
	{ID: "housing", Color: "#a78bfa"},
	{ID: "food", Color: "#fb7185"},
	{ID: "transport", Color: "#34d399"},
	{ID: "fun", Color: "#fcd34d"},
	{ID: "health", Color: "#60a5fa"},
	{ID: "utilities", Color: "#f472b6"},
	{ID: "other", Color: "#f97316"},
}

// DefaultCategory is preselected on new transaction forms.
const DefaultCategory = "housing"

func IsCategory(id string) bool {
	for _, c := range Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
