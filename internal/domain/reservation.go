package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for booking dates. Dates carry no time
// component; business rules interpret them in the deployment time zone.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Draft is the caller-supplied portion of a reservation, before any
// identifier or timestamps exist.
type Draft struct {
	ClassID       string `json:"class_id"`
	BookingDate   string `json:"booking_date"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes,omitempty"`
}

type Reservation struct {
	ID            string     `json:"id"`
	ClassID       string     `json:"class_id"`
	BookingDate   string     `json:"booking_date"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	CustomerPhone string     `json:"customer_phone"`
	Notes         string     `json:"notes,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func NewReservation(d Draft, now time.Time) Reservation {
	return Reservation{
		ID:            uuid.New().String(),
		ClassID:       d.ClassID,
		BookingDate:   d.BookingDate,
		CustomerName:  strings.TrimSpace(d.CustomerName),
		CustomerEmail: strings.TrimSpace(d.CustomerEmail),
		CustomerPhone: strings.TrimSpace(d.CustomerPhone),
		Notes:         d.Notes,
		Status:        StatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Cancel is the only legal status transition. It stamps cancelled_at and
// updated_at; callers must have checked the window and authorization first.
func (r *Reservation) Cancel(now time.Time) {
	r.Status = StatusCancelled
	r.UpdatedAt = now
	r.CancelledAt = &now
}

// BookingDay parses the booking date at midnight in loc. The date is
// validated at creation, so a parse failure here means a corrupt document.
func (r *Reservation) BookingDay(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, r.BookingDate, loc)
}

// UniquenessKey identifies the (class, date, customer) slot a confirmed
// reservation occupies. Keyed on the stable class id, never the display name.
func UniquenessKey(classID, bookingDate, email string) string {
	return classID + "|" + bookingDate + "|" + strings.ToLower(strings.TrimSpace(email))
}
