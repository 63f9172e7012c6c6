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

// ReservationsHandler handles reservation endpoints.
type ReservationsHandler struct {
	DB       *sql.DB
	Notifier notify.Dispatcher
}

type createReservationRequest struct {
	BookID      int64  `json:"book_id"`
	RequesterID int64  `json:"requester_id,omitempty"` // staff only, defaults to caller
	PickupAt    string `json:"pickup_at,omitempty"`    // RFC 3339, staff only
}

// Create handles POST /api/reservations.
func (h *ReservationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID == 0 {
		jsonError(w, http.StatusBadRequest, "book_id required")
		return
	}

	requesterID := claims.UserID
	if req.RequesterID != 0 && req.RequesterID != claims.UserID {
		if !isStaff(r.Context()) {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		requesterID = req.RequesterID
	}

	var pickupAt *time.Time
	if req.PickupAt != "" {
		if !isStaff(r.Context()) {
			jsonError(w, http.StatusForbidden, "only staff can schedule pickups")
			return
		}
		t, err := time.Parse(time.RFC3339, req.PickupAt)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "pickup_at must be RFC 3339")
			return
		}
		pickupAt = &t
	}

	res, err := store.CreateReservation(r.Context(), h.DB, req.BookID, requesterID, pickupAt)
	if err != nil {
		storeError(w, err, "failed to create reservation")
		return
	}

	if res.Status == model.ReservationAwaitingPickup {
		notify.Send(r.Context(), h.Notifier, notify.NewIntent(notify.TemplateReservationScheduled, res.RequesterEmail, map[string]string{
			"Name":       res.RequesterName,
			"Title":      res.BookTitle,
			"PickupDate": res.PickupAt.Format(dateFormat),
		}))
	} else {
		notify.Send(r.Context(), h.Notifier, notify.NewIntent(notify.TemplateReservationQueued, res.RequesterEmail, map[string]string{
			"Name":     res.RequesterName,
			"Title":    res.BookTitle,
			"Position": strconv.Itoa(res.QueuePosition),
		}))
	}

	jsonResponse(w, http.StatusCreated, res)
}

// Get handles GET /api/reservations/{id}. Staff can fetch any reservation,
// students only their own.
func (h *ReservationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	res, err := store.GetReservation(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get reservation")
		return
	}
	if res == nil {
		jsonError(w, http.StatusNotFound, "reservation not found")
		return
	}

	claims := GetClaims(r.Context())
	if !isStaff(r.Context()) && (claims == nil || claims.UserID != res.RequesterID) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	jsonResponse(w, http.StatusOK, res)
}

// List handles GET /api/reservations. Staff see all (optionally filtered by
// ?requester_id=); students see only their own.
func (h *ReservationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var requesterID int64
	if isStaff(r.Context()) {
		if v := r.URL.Query().Get("requester_id"); v != "" {
			requesterID, _ = strconv.ParseInt(v, 10, 64)
		}
	} else {
		requesterID = claims.UserID
	}

	activeOnly := r.URL.Query().Get("active") == "true"

	reservations, err := store.ListReservations(r.Context(), h.DB, requesterID, activeOnly)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	jsonResponse(w, http.StatusOK, reservations)
}

// Effectuate handles POST /api/reservations/{id}/effectuate (staff only):
// the requester picks up the book and the reservation becomes a loan.
func (h *ReservationsHandler) Effectuate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	claims := GetClaims(r.Context())
	var actorID *int64
	if claims != nil {
		actorID = &claims.UserID
	}

	loan, err := store.EffectuateReservation(r.Context(), h.DB, id, actorID)
	if err != nil {
		storeError(w, err, "failed to effectuate reservation")
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

// Cancel handles DELETE /api/reservations/{id}. Students can cancel their
// own reservations, staff can cancel any.
func (h *ReservationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	res, err := store.GetReservation(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get reservation")
		return
	}
	if res == nil {
		jsonError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if !isStaff(r.Context()) && claims.UserID != res.RequesterID {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	promoted, err := store.CancelReservation(r.Context(), h.DB, id, &claims.UserID)
	if err != nil {
		storeError(w, err, "failed to cancel reservation")
		return
	}

	intents := []notify.Intent{
		notify.NewIntent(notify.TemplateReservationCancelled, res.RequesterEmail, map[string]string{
			"Name":  res.RequesterName,
			"Title": res.BookTitle,
		}),
	}
	if promoted != nil {
		intents = append(intents, reservationReadyIntent(r, h.DB, promoted))
	}
	notify.Send(r.Context(), h.Notifier, intents...)

	jsonResponse(w, http.StatusOK, map[string]string{"message": "reservation cancelled"})
}

// Sweep handles POST /api/reservations/sweep (admin only): expires
// awaiting_pickup reservations past their deadline and promotes the next
// queued requesters.
func (h *ReservationsHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	expired, promoted, err := store.ExpireReservations(r.Context(), h.DB, time.Now())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to expire reservations")
		return
	}

	var intents []notify.Intent
	for _, res := range expired {
		intents = append(intents, notify.NewIntent(notify.TemplateReservationCancelled, res.RequesterEmail, map[string]string{
			"Name":  res.RequesterName,
			"Title": res.BookTitle,
		}))
	}
	for i := range promoted {
		intents = append(intents, reservationReadyIntent(r, h.DB, &promoted[i]))
	}
	notify.Send(r.Context(), h.Notifier, intents...)

	jsonResponse(w, http.StatusOK, map[string]int{
		"expired":  len(expired),
		"promoted": len(promoted),
	})
}
