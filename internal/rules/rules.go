// Package rules validates booking drafts against the catalog and the current
// date. The engine is pure: no I/O, no mutation, safe for concurrent use.
package rules

import (
	"regexp"
	"strings"
	"time"

	"github.com/iwaseano/iino-yogatest/internal/catalog"
	"github.com/iwaseano/iino-yogatest/internal/domain"
)

// BookingHorizonDays bounds how far ahead a class may be booked. The
// boundary is inclusive: exactly 90 days out is still bookable.
const BookingHorizonDays = 90

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// Either a bare 10-11 digit number or the hyphenated grouping common
	// for Japanese numbers (e.g. 090-1234-5678).
	phonePattern    = regexp.MustCompile(`^(\d{2,4}-\d{2,4}-\d{4}|\d{10,11})$`)
	phoneStripChars = regexp.MustCompile(`[^\d-]`)
)

type Engine struct {
	catalog catalog.Provider
}

func NewEngine(c catalog.Provider) *Engine {
	return &Engine{catalog: c}
}

// ValidateDraft checks contact fields first, then the class and its date
// window. now supplies both "today" and the zone dates are evaluated in.
// Failures are *domain.ValidationError carrying the offending field.
func (e *Engine) ValidateDraft(d domain.Draft, now time.Time) error {
	if err := ValidateName(d.CustomerName); err != nil {
		return err
	}
	if err := ValidateEmail(d.CustomerEmail); err != nil {
		return err
	}
	if err := ValidatePhone(d.CustomerPhone); err != nil {
		return err
	}

	entry, ok := e.catalog.Lookup(d.ClassID)
	if !ok {
		return domain.NewValidationError("class_id", "unknown class")
	}

	booking, err := time.ParseInLocation(domain.DateLayout, d.BookingDate, now.Location())
	if err != nil {
		return domain.NewValidationError("booking_date", "date must be in YYYY-MM-DD format")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if booking.Before(today) {
		return domain.NewValidationError("booking_date", "date is in the past")
	}
	if booking.After(today.AddDate(0, 0, BookingHorizonDays)) {
		return domain.NewValidationError("booking_date", "bookings are limited to 90 days ahead")
	}
	if !entry.AllowsWeekday(booking.Weekday()) {
		return domain.NewValidationError("booking_date", entry.Name+" is held on "+entry.Schedule)
	}

	return nil
}

func ValidateName(name string) error {
	if len([]rune(strings.TrimSpace(name))) < 2 {
		return domain.NewValidationError("customer_name", "name must be at least 2 characters")
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return domain.NewValidationError("customer_email", "must be a valid email address")
	}
	return nil
}

func ValidatePhone(phone string) error {
	cleaned := phoneStripChars.ReplaceAllString(phone, "")
	if !phonePattern.MatchString(cleaned) {
		return domain.NewValidationError("customer_phone", "must be a valid phone number")
	}
	return nil
}
