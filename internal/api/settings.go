package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// SettingsHandler exposes the policy knobs to admins.
type SettingsHandler struct {
	DB *sql.DB
}

type settingsResponse struct {
	LowStockThreshold int `json:"low_stock_threshold"`
	LoanPeriodDays    int `json:"loan_period_days"`
	PickupWindowDays  int `json:"pickup_window_days"`
}

type updateSettingsRequest struct {
	LowStockThreshold *int `json:"low_stock_threshold,omitempty"`
	LoanPeriodDays    *int `json:"loan_period_days,omitempty"`
	PickupWindowDays  *int `json:"pickup_window_days,omitempty"`
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.current(r)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Update handles PUT /api/settings. Only the provided knobs change.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := map[string]*int{
		store.SettingLowStockThreshold: req.LowStockThreshold,
		store.SettingLoanPeriodDays:    req.LoanPeriodDays,
		store.SettingPickupWindowDays:  req.PickupWindowDays,
	}

	for key, value := range updates {
		if value == nil {
			continue
		}
		if *value <= 0 {
			jsonError(w, http.StatusBadRequest, key+" must be positive")
			return
		}
		if err := store.SetSettingInt(r.Context(), h.DB, key, *value); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to update settings")
			return
		}
	}

	resp, err := h.current(r)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (h *SettingsHandler) current(r *http.Request) (*settingsResponse, error) {
	threshold, err := store.GetSettingInt(r.Context(), h.DB, store.SettingLowStockThreshold, store.DefaultLowStockThreshold)
	if err != nil {
		return nil, err
	}
	period, err := store.GetSettingInt(r.Context(), h.DB, store.SettingLoanPeriodDays, store.DefaultLoanPeriodDays)
	if err != nil {
		return nil, err
	}
	window, err := store.GetSettingInt(r.Context(), h.DB, store.SettingPickupWindowDays, store.DefaultPickupWindowDays)
	if err != nil {
		return nil, err
	}
	return &settingsResponse{
		LowStockThreshold: threshold,
		LoanPeriodDays:    period,
		PickupWindowDays:  window,
	}, nil
}

// ActionsHandler exposes the audit log to admins.
type ActionsHandler struct {
	DB *sql.DB
}

// List handles GET /api/actions with an optional ?limit= parameter.
func (h *ActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	actions, err := store.ListActions(r.Context(), h.DB, limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	if actions == nil {
		actions = []model.Action{}
	}
	jsonResponse(w, http.StatusOK, actions)
}
