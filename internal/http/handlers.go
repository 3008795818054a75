package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/iwaseano/iino-yogatest/internal/domain"
	"github.com/iwaseano/iino-yogatest/internal/reservations"
)

type Handlers struct {
	svc *reservations.Service
}

func NewHandlers(svc *reservations.Service) *Handlers {
	return &Handlers{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   verr.Message,
			"field":   verr.Field,
		})
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, message = http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrDuplicateBooking):
		status, message = http.StatusConflict, "a confirmed reservation already exists for this class and date"
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, "reservation not found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusForbidden, "email does not match the reservation"
	case errors.Is(err, domain.ErrAlreadyCancelled):
		status, message = http.StatusConflict, "reservation is already cancelled"
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		status, message = http.StatusConflict, "cancellation is closed within 24 hours of the class"
	case errors.Is(err, domain.ErrStoreUnavailable):
		// Backing store details stay internal.
		status, message = http.StatusServiceUnavailable, "service temporarily unavailable"
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	created, err := h.svc.CreateReservation(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"reservation": created,
	})
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.svc.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"reservation": res,
	})
}

func (h *Handlers) SearchReservations(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "email parameter is required",
		})
		return
	}

	results, err := h.svc.SearchByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"reservations": results,
		"count":        len(results),
	})
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	cancelled, err := h.svc.CancelReservation(r.Context(), id, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"reservation": cancelled,
	})
}

func (h *Handlers) GetClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"schedules": h.svc.Schedules(),
	})
}

func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	date := r.URL.Query().Get("date")

	avail, err := h.svc.Availability(r.Context(), classID, date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"availability": avail,
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"status":  "unhealthy",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  "healthy",
	})
}
