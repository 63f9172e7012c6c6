package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("error encoding response: %v", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonCodedError writes a JSON error response with a machine-readable code.
func jsonCodedError(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]string{"code": code, "error": message})
}

// storeError maps sentinel errors from the store layer to HTTP responses.
// Unknown errors become a generic 500 with the fallback message.
func storeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		jsonCodedError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, model.ErrUnavailable):
		jsonCodedError(w, http.StatusConflict, "unavailable", "no copies available")
	case errors.Is(err, model.ErrAlreadyReturned):
		jsonCodedError(w, http.StatusConflict, "already_returned", "loan already returned")
	case errors.Is(err, model.ErrInvalidTransition):
		jsonCodedError(w, http.StatusConflict, "invalid_transition", "reservation is not in a state that allows this")
	case errors.Is(err, model.ErrDuplicateReservation):
		jsonCodedError(w, http.StatusConflict, "duplicate_reservation", "an active reservation for this book already exists")
	case errors.Is(err, model.ErrBookAvailable):
		jsonCodedError(w, http.StatusConflict, "book_available", "copies are available, borrow directly instead of reserving")
	case errors.Is(err, model.ErrInvalidSchedule):
		jsonCodedError(w, http.StatusUnprocessableEntity, "invalid_schedule", "pickup slot is in the past or already taken")
	case errors.Is(err, model.ErrInvariantViolation):
		jsonCodedError(w, http.StatusConflict, "invariant_violation", "change would violate copy accounting")
	default:
		jsonError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
