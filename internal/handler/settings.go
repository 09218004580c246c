package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/budgetcompass/internal/auth"
	"github.com/dukerupert/budgetcompass/internal/settings"
)

// SettingsHandler serves the display preferences of the calling device.
// It works for signed-out visitors too.
type SettingsHandler struct {
	stateOf func(deviceID string) settings.KeyValue
	logger  *slog.Logger
}

func NewSettingsHandler(stateOf func(deviceID string) settings.KeyValue, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{stateOf: stateOf, logger: logger}
}

func (h *SettingsHandler) repo(r *http.Request) *settings.Repository {
	return settings.NewRepository(h.stateOf(auth.DeviceID(r.Context())))
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo(r).Load(r.Context())
	if err != nil {
		h.logger.Error("load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Update merges the posted fields into the stored settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	repo := h.repo(r)
	s, err := repo.Load(r.Context())
	if err != nil {
		h.logger.Error("load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	if err := decodeJSON(w, r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := repo.Save(r.Context(), s); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), settings.ErrInvalid.Error()+": "))
			return
		}
		h.logger.Error("save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
