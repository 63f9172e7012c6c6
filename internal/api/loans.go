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

// LoansHandler handles loan endpoints.
type LoansHandler struct {
	DB       *sql.DB
	Notifier notify.Dispatcher
}

type createLoanRequest struct {
	BookID     int64 `json:"book_id"`
	BorrowerID int64 `json:"borrower_id"`
}

const dateFormat = "2006-01-02"

// Create handles POST /api/loans (staff only).
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.BookID == 0 || req.BorrowerID == 0 {
		jsonError(w, http.StatusBadRequest, "book_id and borrower_id required")
		return
	}

	borrower, err := store.GetUser(r.Context(), h.DB, req.BorrowerID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if borrower == nil || borrower.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "borrower not found")
		return
	}

	claims := GetClaims(r.Context())
	var actorID *int64
	if claims != nil {
		actorID = &claims.UserID
	}

	loan, err := store.CreateLoan(r.Context(), h.DB, req.BookID, req.BorrowerID, actorID)
	if err != nil {
		storeError(w, err, "failed to create loan")
		return
	}

	notify.Send(r.Context(), h.Notifier, notify.NewIntent(notify.TemplateLoanCreated, loan.BorrowerEmail, map[string]string{
		"Name":     loan.BorrowerName,
		"Title":    loan.BookTitle,
		"LoanDate": loan.LoanedAt.Format(dateFormat),
		"DueDate":  loan.DueAt.Format(dateFormat),
	}))

	jsonResponse(w, http.StatusCreated, loan)
}

// Return handles POST /api/loans/{id}/return (staff only).
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	claims := GetClaims(r.Context())
	var actorID *int64
	if claims != nil {
		actorID = &claims.UserID
	}

	loan, promoted, err := store.ReturnLoan(r.Context(), h.DB, id, actorID)
	if err != nil {
		storeError(w, err, "failed to return loan")
		return
	}

	intents := []notify.Intent{
		notify.NewIntent(notify.TemplateLoanReturned, loan.BorrowerEmail, map[string]string{
			"Name":       loan.BorrowerName,
			"Title":      loan.BookTitle,
			"ReturnDate": time.Now().Format(dateFormat),
		}),
	}
	if promoted != nil {
		intents = append(intents, reservationReadyIntent(r, h.DB, promoted))
	}
	notify.Send(r.Context(), h.Notifier, intents...)

	jsonResponse(w, http.StatusOK, loan)
}

// Get handles GET /api/loans/{id}. Staff can fetch any loan, students only
// their own.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := store.GetLoan(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get loan")
		return
	}
	if loan == nil {
		jsonError(w, http.StatusNotFound, "loan not found")
		return
	}

	claims := GetClaims(r.Context())
	if !isStaff(r.Context()) && (claims == nil || claims.UserID != loan.BorrowerID) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	jsonResponse(w, http.StatusOK, loan)
}

// List handles GET /api/loans. Staff see all loans (optionally filtered by
// ?borrower_id=); students see only their own.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var borrowerID int64
	if isStaff(r.Context()) {
		if v := r.URL.Query().Get("borrower_id"); v != "" {
			borrowerID, _ = strconv.ParseInt(v, 10, 64)
		}
	} else {
		borrowerID = claims.UserID
	}

	openOnly := r.URL.Query().Get("open") == "true"

	loans, err := store.ListLoans(r.Context(), h.DB, borrowerID, openOnly)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// SendReminders handles POST /api/loans/reminders (admin only). It sends
// return reminders for loans due within the next three days and overdue
// notices for loans past due.
func (h *LoansHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	dueSoon, err := store.DueSoonLoans(r.Context(), h.DB, now, 3*24*time.Hour)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list due loans")
		return
	}

	overdue, err := store.ListLoans(r.Context(), h.DB, 0, true)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}

	var intents []notify.Intent
	for _, l := range dueSoon {
		intents = append(intents, notify.NewIntent(notify.TemplateReturnReminder, l.BorrowerEmail, map[string]string{
			"Name":    l.BorrowerName,
			"Title":   l.BookTitle,
			"DueDate": l.DueAt.Format(dateFormat),
		}))
	}
	for _, l := range overdue {
		if !l.IsOverdue(now) {
			continue
		}
		intents = append(intents, notify.NewIntent(notify.TemplateLoanOverdue, l.BorrowerEmail, map[string]string{
			"Name":    l.BorrowerName,
			"Title":   l.BookTitle,
			"DueDate": l.DueAt.Format(dateFormat),
		}))
	}
	notify.Send(r.Context(), h.Notifier, intents...)

	jsonResponse(w, http.StatusOK, map[string]int{"reminders": len(intents)})
}

// reservationReadyIntent builds the pickup notification for a reservation
// just promoted to awaiting_pickup.
func reservationReadyIntent(r *http.Request, db *sql.DB, res *model.Reservation) notify.Intent {
	window, err := store.GetSettingInt(r.Context(), db, store.SettingPickupWindowDays, store.DefaultPickupWindowDays)
	if err != nil {
		window = store.DefaultPickupWindowDays
	}

	deadline := ""
	if d, ok := res.PickupDeadline(time.Duration(window) * 24 * time.Hour); ok {
		deadline = d.Format(dateFormat)
	}

	return notify.NewIntent(notify.TemplateReservationReady, res.RequesterEmail, map[string]string{
		"Name":           res.RequesterName,
		"Title":          res.BookTitle,
		"PickupDeadline": deadline,
	})
}
