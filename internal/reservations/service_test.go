package reservations_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwaseano/iino-yogatest/internal/blob"
	"github.com/iwaseano/iino-yogatest/internal/catalog"
	"github.com/iwaseano/iino-yogatest/internal/clock"
	"github.com/iwaseano/iino-yogatest/internal/domain"
	"github.com/iwaseano/iino-yogatest/internal/observability"
	"github.com/iwaseano/iino-yogatest/internal/reservations"
	"github.com/iwaseano/iino-yogatest/internal/rules"
)

// memLocker is an in-process stand-in for the Redis uniqueness lock.
type memLocker struct {
	mu         sync.Mutex
	held       map[string]string
	acquireErr error
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (l *memLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if _, taken := l.held[key]; taken {
		return false, nil
	}
	l.held[key] = owner
	return true, nil
}

func (l *memLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type serviceFixture struct {
	svc    *reservations.Service
	store  *reservations.Store
	mem    *blob.MemoryStore
	locker *memLocker
}

func newServiceFixture(t *testing.T, clk clock.Clock, locker *memLocker) serviceFixture {
	t.Helper()
	mem := blob.NewMemoryStore()
	cat := catalog.Default()
	store := reservations.NewStore(mem, clk, observability.NopLogger())

	var ul reservations.UniquenessLocker
	if locker != nil {
		ul = locker
	}
	svc := reservations.NewService(store, rules.NewEngine(cat), cat, ul, clk, observability.NopLogger())
	return serviceFixture{svc: svc, store: store, mem: mem, locker: locker}
}

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // a Monday

func TestServiceCreateReservation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	created, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StatusConfirmed, created.Status)

	got, err := f.svc.GetReservation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestServiceCreateReservationValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	_, err := f.svc.CreateReservation(ctx, draftFor("not-an-email", "2026-03-04", "hatha"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))

	objs, err := f.mem.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestServiceCreateReservationDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	_, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)

	// Same slot, different email casing.
	_, err = f.svc.CreateReservation(ctx, draftFor("TANAKA@example.com", "2026-03-04", "hatha"))
	assert.True(t, errors.Is(err, domain.ErrDuplicateBooking))

	// A different date is not a duplicate.
	_, err = f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-06", "hatha"))
	assert.NoError(t, err)
}

func TestServiceCreateReservationAllowedAfterCancellation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), newMemLocker())

	created, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, created.ID, "tanaka@example.com")
	require.NoError(t, err)

	// The slot is free again: the lock was released and the cancelled
	// document no longer counts as a duplicate.
	_, err = f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	assert.NoError(t, err)
}

func TestServiceCreateReservationLockContention(t *testing.T) {
	ctx := context.Background()
	locker := newMemLocker()
	f := newServiceFixture(t, clock.Fixed(testNow), locker)

	// Another instance claimed the slot but its document is not visible yet.
	key := domain.UniquenessKey("hatha", "2026-03-04", "tanaka@example.com")
	ok, err := locker.Acquire(ctx, key, "other", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	assert.True(t, errors.Is(err, domain.ErrDuplicateBooking))
}

func TestServiceCreateReservationLockerOutage(t *testing.T) {
	ctx := context.Background()
	locker := newMemLocker()
	locker.acquireErr = errors.New("redis unreachable")
	f := newServiceFixture(t, clock.Fixed(testNow), locker)

	// Lock failures degrade to the scan-based duplicate check instead of
	// refusing the booking.
	created, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, created.Status)
}

func TestServiceCancelReservation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	created, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)

	cancelled, err := f.svc.CancelReservation(ctx, created.ID, "Tanaka@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.CancelReservation(ctx, created.ID, "tanaka@example.com")
	assert.True(t, errors.Is(err, domain.ErrAlreadyCancelled))
}

func TestServiceCancelReservationNotFound(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	_, err := f.svc.CancelReservation(ctx, "no-such-id", "tanaka@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestServiceCancelReservationWrongEmail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	created, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, created.ID, "suzuki@example.com")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	got, err := f.svc.GetReservation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestServiceCancelReservationNoticeWindow(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{
			name: "more than 24h before class midnight",
			now:  time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC),
		},
		{
			name:    "exactly 24h before class midnight",
			now:     time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			wantErr: domain.ErrCancellationWindowClosed,
		},
		{
			name:    "less than 24h before class midnight",
			now:     time.Date(2026, 3, 3, 0, 1, 0, 0, time.UTC),
			wantErr: domain.ErrCancellationWindowClosed,
		},
		{
			name:    "on the class day",
			now:     time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
			wantErr: domain.ErrCancellationWindowClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, clock.Fixed(testNow), nil)
			created, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
			require.NoError(t, err)

			// Re-dial the clock for the cancellation attempt, reusing the
			// same backing store.
			atCancel := reservations.NewService(
				f.store, rules.NewEngine(catalog.Default()), catalog.Default(),
				nil, clock.Fixed(tt.now), observability.NopLogger(),
			)

			_, err = atCancel.CancelReservation(ctx, created.ID, "tanaka@example.com")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceSearchByEmail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	_, err := f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-05", "power"))
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, draftFor("tanaka@example.com", "2026-03-08", "restorative"))
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, draftFor("suzuki@example.com", "2026-03-04", "hatha"))
	require.NoError(t, err)

	results, err := f.svc.SearchByEmail(ctx, "tanaka@example.com")
	require.NoError(t, err)
	require.Len(t, results, 3)

	names := make(map[string]string, len(results))
	for _, r := range results {
		names[r.ClassID] = r.ClassName
	}
	assert.Equal(t, "Hatha Yoga", names["hatha"])
	assert.Equal(t, "Power Yoga", names["power"])
	assert.Equal(t, "Restorative Yoga", names["restorative"])
}

func TestServiceSearchByEmailInvalid(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	_, err := f.svc.SearchByEmail(ctx, "not-an-email")
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

func TestServiceSearchByEmailUnknownClass(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	// A reservation for a class that has since left the catalog still lists,
	// just without display fields.
	_, err := f.store.Create(ctx, draftFor("tanaka@example.com", "2026-03-04", "retired-class"))
	require.NoError(t, err)

	results, err := f.svc.SearchByEmail(ctx, "tanaka@example.com")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "retired-class", results[0].ClassID)
	assert.Empty(t, results[0].ClassName)
	assert.Empty(t, results[0].ClassSchedule)
}

func TestServiceSchedules(t *testing.T) {
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	schedules := f.svc.Schedules()
	require.Len(t, schedules, 3)
	assert.Equal(t, "hatha", schedules[0].ID)
	assert.Equal(t, "power", schedules[1].ID)
	assert.Equal(t, "restorative", schedules[2].ID)
}

func TestServiceAvailability(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	avail, err := f.svc.Availability(ctx, "hatha", "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 12, avail.Capacity)
	assert.Equal(t, 12, avail.Remaining)
	assert.True(t, avail.Available)

	_, err = f.svc.Availability(ctx, "aerial", "2026-03-04")
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))

	_, err = f.svc.Availability(ctx, "hatha", "03/04/2026")
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

func TestServiceHealthCheck(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, clock.Fixed(testNow), nil)

	assert.NoError(t, f.svc.HealthCheck(ctx))
}
