package reservations

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iwaseano/iino-yogatest/internal/catalog"
	"github.com/iwaseano/iino-yogatest/internal/clock"
	"github.com/iwaseano/iino-yogatest/internal/domain"
	"github.com/iwaseano/iino-yogatest/internal/observability"
	"github.com/iwaseano/iino-yogatest/internal/rules"
)

// cancellationNotice is the minimum lead time before a class during which
// cancellation is refused.
const cancellationNotice = 24 * time.Hour

// UniquenessLocker atomically claims a class|date|email slot, closing the
// window between the duplicate scan and the document write. A nil locker
// leaves duplicate detection scan-based and best-effort.
type UniquenessLocker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Service orchestrates validation, duplicate detection and store calls. It
// holds no mutable state of its own; all consistency concerns live in the
// shared external store.
type Service struct {
	store   *Store
	rules   *rules.Engine
	catalog catalog.Provider
	locker  UniquenessLocker
	clock   clock.Clock
	logger  observability.Logger
}

func NewService(store *Store, engine *rules.Engine, cat catalog.Provider, locker UniquenessLocker, clk clock.Clock, logger observability.Logger) *Service {
	return &Service{
		store:   store,
		rules:   engine,
		catalog: cat,
		locker:  locker,
		clock:   clk,
		logger:  logger,
	}
}

// CreateReservation validates, checks for duplicates, then writes. Rule and
// duplicate failures short-circuit before any write, so a caller never
// observes partial state from a rejected request.
func (s *Service) CreateReservation(ctx context.Context, d domain.Draft) (*domain.Reservation, error) {
	now := s.clock.Now()
	if err := s.rules.ValidateDraft(d, now); err != nil {
		return nil, err
	}

	dup, err := s.store.FindActiveDuplicate(ctx, d.ClassID, d.BookingDate, d.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, domain.ErrDuplicateBooking
	}

	key := domain.UniquenessKey(d.ClassID, d.BookingDate, d.CustomerEmail)
	locked := false
	if s.locker != nil {
		owner := strings.ToLower(strings.TrimSpace(d.CustomerEmail))
		ok, lerr := s.locker.Acquire(ctx, key, owner, s.lockTTL(d.BookingDate, now))
		switch {
		case lerr != nil:
			s.logger.WithError(lerr).Warn("uniqueness lock unavailable; relying on scan-based duplicate check")
		case !ok:
			return nil, domain.ErrDuplicateBooking
		default:
			locked = true
		}
	}

	r, err := s.store.Create(ctx, d)
	if err != nil {
		if locked {
			if lerr := s.locker.Release(ctx, key); lerr != nil {
				s.logger.WithError(lerr).Warn("failed to release uniqueness lock after aborted create")
			}
		}
		return nil, err
	}

	observability.ReservationsCreated.Inc()
	s.logger.WithField("reservation_id", r.ID).
		WithField("class_id", r.ClassID).
		WithField("booking_date", r.BookingDate).
		Info("reservation created")
	return r, nil
}

func (s *Service) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.store.GetByID(ctx, id)
}

// CancelReservation authorizes by case-insensitive email match and enforces
// the 24-hour notice: a class whose date (at local midnight) is not strictly
// more than 24 hours away can no longer be cancelled.
func (s *Service) CancelReservation(ctx context.Context, id, requesterEmail string) (*domain.Reservation, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(strings.TrimSpace(requesterEmail), r.CustomerEmail) {
		return nil, domain.ErrUnauthorized
	}
	if r.Status == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	day, err := r.BookingDay(now.Location())
	if err != nil {
		return nil, errors.Wrapf(err, "reservation %s has a malformed booking date", id)
	}
	if !day.After(now.Add(cancellationNotice)) {
		return nil, domain.ErrCancellationWindowClosed
	}

	updated, err := s.store.UpdateStatus(ctx, id, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key := domain.UniquenessKey(r.ClassID, r.BookingDate, r.CustomerEmail)
		if lerr := s.locker.Release(ctx, key); lerr != nil {
			s.logger.WithError(lerr).Warn("failed to release uniqueness lock after cancellation")
		}
	}

	observability.ReservationsCancelled.Inc()
	s.logger.WithField("reservation_id", id).Info("reservation cancelled")
	return updated, nil
}

// EnrichedReservation is a reservation joined with the catalog's display
// fields for its class.
type EnrichedReservation struct {
	domain.Reservation
	ClassName     string `json:"class_name,omitempty"`
	ClassSchedule string `json:"class_schedule,omitempty"`
}

// SearchByEmail lists a customer's reservations, newest first, enriched with
// catalog display fields. A class id missing from the catalog yields an
// empty enrichment, never an error.
func (s *Service) SearchByEmail(ctx context.Context, email string) ([]EnrichedReservation, error) {
	if err := rules.ValidateEmail(email); err != nil {
		return nil, err
	}

	list, err := s.store.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedReservation, 0, len(list))
	for _, r := range list {
		er := EnrichedReservation{Reservation: *r}
		if entry, ok := s.catalog.Lookup(r.ClassID); ok {
			er.ClassName = entry.Name
			er.ClassSchedule = entry.Schedule
		}
		out = append(out, er)
	}
	return out, nil
}

func (s *Service) Schedules() []catalog.Entry {
	return s.catalog.All()
}

type Availability struct {
	ClassID   string `json:"class_id"`
	Date      string `json:"date"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Available bool   `json:"available"`
}

// Availability reports the static capacity for a class and date. Seat-level
// occupancy accounting is deferred, so Booked is always zero.
func (s *Service) Availability(ctx context.Context, classID, date string) (*Availability, error) {
	entry, ok := s.catalog.Lookup(classID)
	if !ok {
		return nil, domain.NewValidationError("class_id", "unknown class")
	}
	if _, err := time.ParseInLocation(domain.DateLayout, date, s.clock.Now().Location()); err != nil {
		return nil, domain.NewValidationError("date", "date must be in YYYY-MM-DD format")
	}

	return &Availability{
		ClassID:   classID,
		Date:      date,
		Capacity:  entry.Capacity,
		Booked:    0,
		Remaining: entry.Capacity,
		Available: true,
	}, nil
}

func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// lockTTL keeps the uniqueness claim alive until well past the class date,
// after which a new booking for the slot is moot anyway.
func (s *Service) lockTTL(bookingDate string, now time.Time) time.Duration {
	day, err := time.ParseInLocation(domain.DateLayout, bookingDate, now.Location())
	if err != nil {
		return cancellationNotice
	}
	ttl := day.AddDate(0, 0, 2).Sub(now)
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return ttl
}
