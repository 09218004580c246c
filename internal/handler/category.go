package handler

import (
	"net/http"

	"github.com/dukerupert/budgetcompass/internal/categorize"
	"github.com/dukerupert/budgetcompass/internal/model"
)

// Categories lists the category enumeration. With ?description= it also
// suggests one for the new-transaction form.
func Categories(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"categories": model.Categories,
		"default":    model.DefaultCategory,
	}
	if desc := r.URL.Query().Get("description"); desc != "" {
		resp["suggested"] = categorize.Suggest(desc)
	}
	writeJSON(w, http.StatusOK, resp)
}
