package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dvloznov/smart-finance/internal/api/middleware"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/settings"
	"github.com/rs/zerolog"
)

// SettingsService reads and writes user settings.
type SettingsService interface {
	Load(ctx context.Context, user string) (settings.Settings, error)
	SetRate(ctx context.Context, user, value string) (float64, error)
	SetMonobank(ctx context.Context, user, token, accountID string, autoSync bool) error
}

// SettingsHandler handles settings endpoints.
type SettingsHandler struct {
	settings SettingsService
	log      zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(s SettingsService, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: s, log: log}
}

type settingsView struct {
	USDRate   float64 `json:"usdRate"`
	HasToken  bool    `json:"hasToken"`
	AccountID string  `json:"accountId,omitempty"`
	AutoSync  bool    `json:"autoSync"`
}

func viewOf(s settings.Settings) settingsView {
	return settingsView{USDRate: s.USDRate, HasToken: s.HasToken(), AccountID: s.AccountID, AutoSync: s.AutoSync}
}

// GetSettings handles GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to load settings", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(s))
}

type rateRequest struct {
	// Rate is a number or a string such as "41,5".
	Rate interface{} `json:"rate"`
}

// SetRate handles PUT /api/settings/rate
func (h *SettingsHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	req, ok := middleware.DecodeAndValidate[rateRequest](w, r)
	if !ok {
		return
	}

	rate, err := h.settings.SetRate(r.Context(), identity.FromContext(r.Context()), rateString(req.Rate))
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to save rate", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]float64{"usdRate": rate})
}

func rateString(v interface{}) string {
	switch rate := v.(type) {
	case string:
		return rate
	case float64:
		return strconv.FormatFloat(rate, 'f', -1, 64)
	}
	return ""
}

type monobankRequest struct {
	Token     string `json:"token" validate:"omitempty,min=8"`
	AccountID string `json:"accountId"`
	AutoSync  bool   `json:"autoSync"`
}

// SetMonobank handles PUT /api/settings/monobank. An empty token removes the
// saved one.
func (h *SettingsHandler) SetMonobank(w http.ResponseWriter, r *http.Request) {
	req, ok := middleware.DecodeAndValidate[monobankRequest](w, r)
	if !ok {
		return
	}

	user := identity.FromContext(r.Context())
	if err := h.settings.SetMonobank(r.Context(), user, req.Token, req.AccountID, req.AutoSync); err != nil {
		writeDomainError(w, r, h.log, "Failed to save Monobank settings", err)
		return
	}

	s, err := h.settings.Load(r.Context(), user)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to load settings", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(s))
}
