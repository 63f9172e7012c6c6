package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/notify"
	"github.com/erazemk/knjiznica/internal/store"
)

// AlertsHandler handles stock alerts and manual announcements.
type AlertsHandler struct {
	DB       *sql.DB
	Notifier notify.Dispatcher
}

type createAlertRequest struct {
	BookID     *int64 `json:"book_id,omitempty"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	Visibility string `json:"visibility"`
	PublishAt  string `json:"publish_at,omitempty"` // RFC 3339
	ExpireAt   string `json:"expire_at,omitempty"`  // RFC 3339
}

// List handles GET /api/alerts. Staff see all open alerts, everyone else
// only published, public ones.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := store.ListAlerts(r.Context(), h.DB, isStaff(r.Context()), time.Now())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	jsonResponse(w, http.StatusOK, alerts)
}

// Create handles POST /api/alerts (staff only, manual alerts).
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Subject == "" || req.Message == "" {
		jsonError(w, http.StatusBadRequest, "subject and message required")
		return
	}
	if req.Severity == "" {
		req.Severity = model.SeverityInfo
	}
	if !model.ValidSeverity(req.Severity) {
		jsonError(w, http.StatusBadRequest, "invalid severity")
		return
	}
	if req.Visibility == "" {
		req.Visibility = model.VisibilityStaff
	}
	if req.Visibility != model.VisibilityStaff && req.Visibility != model.VisibilityPublic {
		jsonError(w, http.StatusBadRequest, "invalid visibility")
		return
	}

	alert := &model.Alert{
		BookID:     req.BookID,
		Subject:    req.Subject,
		Message:    req.Message,
		Severity:   req.Severity,
		Visibility: req.Visibility,
	}

	if req.PublishAt != "" {
		t, err := time.Parse(time.RFC3339, req.PublishAt)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "publish_at must be RFC 3339")
			return
		}
		alert.PublishAt = &t
	}
	if req.ExpireAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpireAt)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "expire_at must be RFC 3339")
			return
		}
		alert.ExpireAt = &t
	}
	if alert.PublishAt != nil && alert.ExpireAt != nil && !alert.ExpireAt.After(*alert.PublishAt) {
		jsonError(w, http.StatusBadRequest, "expire_at must be after publish_at")
		return
	}

	created, err := store.CreateAlert(r.Context(), h.DB, alert)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}

	jsonResponse(w, http.StatusCreated, created)
}

// Resolve handles POST /api/alerts/{id}/resolve (staff only).
func (h *AlertsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := store.ResolveAlert(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "failed to resolve alert")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "alert resolved"})
}

// Sweep handles POST /api/alerts/sweep (admin only): resolves alerts past
// their expiry window and dispatches staff notifications for open alerts
// that have not been announced yet.
func (h *AlertsHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	expired, err := store.ExpireAlerts(r.Context(), h.DB, time.Now())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to expire alerts")
		return
	}

	pending, err := store.UnnotifiedAlerts(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	staff, err := store.StaffEmails(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list staff")
		return
	}

	notified := 0
	for _, a := range pending {
		data := map[string]string{
			"AlertTitle": a.Subject,
			"Category":   a.Category,
			"Severity":   a.Severity,
			"Message":    a.Message,
		}
		if a.BookID != nil {
			if book, err := store.GetBook(r.Context(), h.DB, *a.BookID); err == nil && book != nil {
				data["Title"] = book.Title
			}
		}

		var intents []notify.Intent
		for _, email := range staff {
			intents = append(intents, notify.NewIntent(notify.TemplateStaffAlert, email, data))
		}
		notify.Send(r.Context(), h.Notifier, intents...)

		if err := store.MarkAlertNotified(r.Context(), h.DB, a.ID); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to mark alert notified")
			return
		}
		notified++
	}

	jsonResponse(w, http.StatusOK, map[string]int64{
		"expired":  expired,
		"notified": int64(notified),
	})
}
