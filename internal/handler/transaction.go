package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/budgetcompass/internal/export"
	"github.com/dukerupert/budgetcompass/internal/ledger"
	"github.com/dukerupert/budgetcompass/internal/model"
	"github.com/dukerupert/budgetcompass/internal/websocket"
	"github.com/dukerupert/budgetcompass/internal/workspace"
)

type TransactionHandler struct {
	workspaces Workspaces
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewTransactionHandler(workspaces Workspaces, hub *websocket.Hub, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{workspaces: workspaces, hub: hub, logger: logger}
}

// amountText accepts an amount sent either as a JSON number or a string.
type amountText string

func (a *amountText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountText(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = amountText(n.String())
	}
	return nil
}

// List returns the active household's transactions. ?category= filters
// the list and is remembered for the session.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ws := currentWorkspace(h.workspaces, r)
	if c := r.URL.Query().Get("category"); c != "" {
		ws.SelectCategory(c)
	}
	v := ws.Snapshot()
	if v.State != workspace.Ready {
		writeError(w, http.StatusConflict, "account is not ready")
		return
	}
	if v.Flags.TransactionLoadError {
		writeError(w, http.StatusBadGateway, "failed to load transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"selected_category": v.SelectedCategory,
		"transactions":      v.Filtered,
	})
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string     `json:"description"`
		Amount      amountText `json:"amount"`
		Category    string     `json:"category"`
		Date        string     `json:"date"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ws := currentWorkspace(h.workspaces, r)
	txn, err := ws.SubmitTransaction(r.Context(), workspace.Draft{
		Description: req.Description,
		Amount:      string(req.Amount),
		Category:    strings.TrimSpace(req.Category),
		Date:        req.Date,
	})
	switch {
	case errors.Is(err, workspace.ErrNotReady):
		writeError(w, http.StatusConflict, "account is not ready")
		return
	case errors.Is(err, ledger.ErrRejected):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ledger.ErrRejected.Error()+": "))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	broadcast(h.hub, websocket.NewMessage(txn.HouseholdID, "transaction", "created", txn.ID, map[string]any{
		"category": txn.Category,
		"amount":   txn.Amount,
	}))
	writeJSON(w, http.StatusCreated, txn)
}

// Refresh reloads the transaction list from the store.
func (h *TransactionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ws := currentWorkspace(h.workspaces, r)
	err := ws.RefreshTransactions(r.Context())
	switch {
	case errors.Is(err, workspace.ErrNotReady):
		writeError(w, http.StatusConflict, "account is not ready")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "failed to load transactions")
		return
	}
	writeJSON(w, http.StatusOK, ws.Snapshot())
}

func (h *TransactionHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	v := currentWorkspace(h.workspaces, r).Snapshot()
	if v.State != workspace.Ready {
		writeError(w, http.StatusConflict, "account is not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":               v.Summary,
		"monthly_trend":         v.MonthlyTrend,
		"highest_monthly_total": v.HighestMonthlyTotal,
	})
}

// Export streams the active household's transactions as an XLSX workbook.
func (h *TransactionHandler) Export(w http.ResponseWriter, r *http.Request) {
	v := currentWorkspace(h.workspaces, r).Snapshot()
	if v.State != workspace.Ready {
		writeError(w, http.StatusConflict, "account is not ready")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, v.Transactions); err != nil {
		h.logger.Error("export transactions", "household_id", v.ActiveHouseholdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export transactions")
		return
	}

	filename := fmt.Sprintf("transactions-%s.xlsx", model.Today())
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
