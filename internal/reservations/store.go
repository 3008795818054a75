// Package reservations implements booking persistence on top of a primitive
// object store. Reservation documents are the source of truth; a month-sharded
// index accelerates lookups and is advisory only. Index drift is skipped or
// repaired on read, never allowed to fail a document-level operation.
package reservations

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/iwaseano/iino-yogatest/internal/blob"
	"github.com/iwaseano/iino-yogatest/internal/clock"
	"github.com/iwaseano/iino-yogatest/internal/domain"
	"github.com/iwaseano/iino-yogatest/internal/observability"
)

const (
	docPrefix   = "reservations/"
	indexPrefix = "index/"

	// Upper bound on concurrent document fetches during index scans.
	fetchConcurrency = 8
)

func docPath(id string) string {
	return docPrefix + id + ".json"
}

// The index is sharded by booking month. A date-scoped lookup touches one
// shard, and concurrent creates for different months never contend on the
// same blob. Within a shard, updates remain read-modify-write and resolve
// last-writer-wins.
func indexShardPath(month string) string {
	return indexPrefix + month + ".json"
}

func shardMonth(bookingDate string) string {
	if len(bookingDate) >= 7 {
		return bookingDate[:7]
	}
	return bookingDate
}

// IndexEntry is the denormalized projection of a reservation held in its
// month shard.
type IndexEntry struct {
	ID            string        `json:"id"`
	CustomerEmail string        `json:"customer_email"`
	ClassID       string        `json:"class_id"`
	BookingDate   string        `json:"booking_date"`
	Status        domain.Status `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

type indexShard struct {
	Reservations []IndexEntry `json:"reservations"`
	LastUpdated  time.Time    `json:"last_updated"`
}

func indexEntryOf(r *domain.Reservation) IndexEntry {
	return IndexEntry{
		ID:            r.ID,
		CustomerEmail: r.CustomerEmail,
		ClassID:       r.ClassID,
		BookingDate:   r.BookingDate,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
	}
}

type Store struct {
	objects blob.Store
	clock   clock.Clock
	logger  observability.Logger
}

func NewStore(objects blob.Store, clk clock.Clock, logger observability.Logger) *Store {
	return &Store{objects: objects, clock: clk, logger: logger}
}

// Create persists the reservation document and then appends its index entry.
// The document write is the commit point: an index failure is logged and
// counted but the create still succeeds, because reads by id never consult
// the index and list operations tolerate missing entries.
func (s *Store) Create(ctx context.Context, d domain.Draft) (*domain.Reservation, error) {
	r := domain.NewReservation(d, s.clock.Now())

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode reservation")
	}

	meta := map[string]string{
		"customer_email": strings.ToLower(r.CustomerEmail),
		"class_id":       r.ClassID,
		"booking_date":   r.BookingDate,
	}

	start := time.Now()
	err = s.objects.Put(ctx, docPath(r.ID), data, meta)
	observability.StoreOpDuration.WithLabelValues("put_doc").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "write reservation document"), domain.ErrStoreUnavailable)
	}

	if err := s.appendIndex(ctx, indexEntryOf(&r)); err != nil {
		observability.IndexDrift.Inc()
		s.logger.WithError(err).
			WithField("reservation_id", r.ID).
			Warn("index append failed; document remains authoritative")
	}

	return &r, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	start := time.Now()
	data, err := s.objects.Get(ctx, docPath(id))
	observability.StoreOpDuration.WithLabelValues("get_doc").Observe(time.Since(start).Seconds())
	if errors.Is(err, blob.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read reservation %s", id), domain.ErrStoreUnavailable)
	}

	var r domain.Reservation
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode reservation %s", id), domain.ErrStoreUnavailable)
	}
	return &r, nil
}

// UpdateStatus is a read-modify-write of the single document. The backing
// store offers no conditional put, so two racing updates to the same id
// resolve last-writer-wins.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Reservation, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if status == domain.StatusCancelled {
		r.Cancel(now)
	} else {
		r.Status = status
		r.UpdatedAt = now
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode reservation")
	}

	meta := map[string]string{
		"customer_email": strings.ToLower(r.CustomerEmail),
		"class_id":       r.ClassID,
		"booking_date":   r.BookingDate,
	}

	start := time.Now()
	err = s.objects.Put(ctx, docPath(r.ID), data, meta)
	observability.StoreOpDuration.WithLabelValues("put_doc").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "write reservation document"), domain.ErrStoreUnavailable)
	}

	if err := s.updateIndexStatus(ctx, r); err != nil {
		observability.IndexDrift.Inc()
		s.logger.WithError(err).
			WithField("reservation_id", r.ID).
			Warn("index status update failed; document remains authoritative")
	}

	return r, nil
}

// ListByEmail returns the customer's reservations, newest first. Discovery
// goes through the index; documents are fetched individually and entries
// whose document cannot be read are skipped. An unreadable or absent index
// degrades to a full document scan.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]*domain.Reservation, error) {
	norm := strings.ToLower(strings.TrimSpace(email))
	byEmail := func(r *domain.Reservation) bool {
		return strings.ToLower(r.CustomerEmail) == norm
	}

	entries, ok := s.loadIndex(ctx)
	if !ok {
		return s.scanDocuments(ctx, byEmail)
	}

	var matched []IndexEntry
	for _, e := range entries {
		if strings.ToLower(e.CustomerEmail) == norm {
			matched = append(matched, e)
		}
	}
	return s.fetchEntries(ctx, matched, nil)
}

// ListByDate only touches the booking month's shard.
func (s *Store) ListByDate(ctx context.Context, date string) ([]*domain.Reservation, error) {
	byDate := func(r *domain.Reservation) bool {
		return r.BookingDate == date
	}

	shard, found, err := s.readShard(ctx, indexShardPath(shardMonth(date)))
	if err != nil || !found {
		if err != nil {
			s.logger.WithError(err).Warn("index shard unreadable; falling back to document scan")
		}
		return s.scanDocuments(ctx, byDate)
	}

	var matched []IndexEntry
	for _, e := range shard.Reservations {
		if e.BookingDate == date {
			matched = append(matched, e)
		}
	}
	return s.fetchEntries(ctx, matched, nil)
}

// ListByStatus re-checks the fetched document's status: the index copy can
// be stale when a cancellation's index write was lost.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Reservation, error) {
	byStatus := func(r *domain.Reservation) bool {
		return r.Status == status
	}

	entries, ok := s.loadIndex(ctx)
	if !ok {
		return s.scanDocuments(ctx, byStatus)
	}

	var matched []IndexEntry
	for _, e := range entries {
		if e.Status == status {
			matched = append(matched, e)
		}
	}
	return s.fetchEntries(ctx, matched, byStatus)
}

// FindActiveDuplicate reports whether a confirmed reservation already exists
// for the slot. Candidates discovered in the index are verified against their
// document before being counted, since the document is authoritative.
func (s *Store) FindActiveDuplicate(ctx context.Context, classID, date, email string) (bool, error) {
	norm := strings.ToLower(strings.TrimSpace(email))

	shard, found, err := s.readShard(ctx, indexShardPath(shardMonth(date)))
	if err != nil || !found {
		if err != nil {
			s.logger.WithError(err).Warn("index shard unreadable; falling back to document scan")
		}
		matches, serr := s.scanDocuments(ctx, func(r *domain.Reservation) bool {
			return r.ClassID == classID &&
				r.BookingDate == date &&
				strings.ToLower(r.CustomerEmail) == norm &&
				r.Status == domain.StatusConfirmed
		})
		if serr != nil {
			return false, serr
		}
		return len(matches) > 0, nil
	}

	for _, e := range shard.Reservations {
		if e.ClassID != classID || e.BookingDate != date || strings.ToLower(e.CustomerEmail) != norm {
			continue
		}
		if e.Status != domain.StatusConfirmed {
			continue
		}
		r, gerr := s.GetByID(ctx, e.ID)
		if gerr != nil {
			observability.IndexDrift.Inc()
			s.logger.WithError(gerr).
				WithField("reservation_id", e.ID).
				Warn("index entry without readable document; treating as absent")
			continue
		}
		if r.Status == domain.StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

// Ping probes the backing store for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.objects.List(ctx, indexPrefix); err != nil {
		return errors.Mark(errors.Wrap(err, "list index"), domain.ErrStoreUnavailable)
	}
	return nil
}

func (s *Store) appendIndex(ctx context.Context, entry IndexEntry) error {
	path := indexShardPath(shardMonth(entry.BookingDate))
	shard, _, err := s.readShard(ctx, path)
	if err != nil {
		return err
	}
	shard.Reservations = append(shard.Reservations, entry)
	return s.writeShard(ctx, path, shard)
}

// updateIndexStatus mutates the entry in place, or re-appends it when a
// previous index write was lost.
func (s *Store) updateIndexStatus(ctx context.Context, r *domain.Reservation) error {
	path := indexShardPath(shardMonth(r.BookingDate))
	shard, _, err := s.readShard(ctx, path)
	if err != nil {
		return err
	}

	found := false
	for i := range shard.Reservations {
		if shard.Reservations[i].ID == r.ID {
			shard.Reservations[i].Status = r.Status
			found = true
		}
	}
	if !found {
		shard.Reservations = append(shard.Reservations, indexEntryOf(r))
	}
	return s.writeShard(ctx, path, shard)
}

func (s *Store) readShard(ctx context.Context, path string) (indexShard, bool, error) {
	var shard indexShard

	data, err := s.objects.Get(ctx, path)
	if errors.Is(err, blob.ErrNotFound) {
		return shard, false, nil
	}
	if err != nil {
		return shard, false, errors.Wrapf(err, "read index shard %s", path)
	}
	if err := json.Unmarshal(data, &shard); err != nil {
		return shard, false, errors.Mark(errors.Wrapf(err, "decode index shard %s", path), domain.ErrInconsistentIndex)
	}
	return shard, true, nil
}

func (s *Store) writeShard(ctx context.Context, path string, shard indexShard) error {
	shard.LastUpdated = s.clock.Now()
	data, err := json.MarshalIndent(shard, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode index shard")
	}

	start := time.Now()
	err = s.objects.Put(ctx, path, data, nil)
	observability.StoreOpDuration.WithLabelValues("put_index").Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.Wrapf(err, "write index shard %s", path)
	}
	return nil
}

// loadIndex reads every shard. ok is false when the index cannot serve
// discovery (list failure, unreadable shard, or no shards at all) and the
// caller should fall back to a document scan.
func (s *Store) loadIndex(ctx context.Context) ([]IndexEntry, bool) {
	objs, err := s.objects.List(ctx, indexPrefix)
	if err != nil {
		s.logger.WithError(err).Warn("index listing failed; falling back to document scan")
		return nil, false
	}
	if len(objs) == 0 {
		return nil, false
	}

	var entries []IndexEntry
	for _, obj := range objs {
		shard, found, err := s.readShard(ctx, obj.Path)
		if err != nil {
			s.logger.WithError(err).Warn("index shard unreadable; falling back to document scan")
			return nil, false
		}
		if found {
			entries = append(entries, shard.Reservations...)
		}
	}
	return entries, true
}

// fetchEntries resolves index entries to documents with bounded concurrency.
// Entries whose document is missing or unreadable are skipped: transient
// store lag must not fail a list operation. An optional verify predicate
// re-checks the authoritative document against the index projection.
func (s *Store) fetchEntries(ctx context.Context, entries []IndexEntry, verify func(*domain.Reservation) bool) ([]*domain.Reservation, error) {
	seen := make(map[string]struct{}, len(entries))
	fetched := make([]*domain.Reservation, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		g.Go(func() error {
			r, err := s.GetByID(gctx, e.ID)
			if err != nil {
				observability.IndexDrift.Inc()
				s.logger.WithError(err).
					WithField("reservation_id", e.ID).
					Warn("index entry without readable document; skipping")
				return nil
			}
			if verify != nil && !verify(r) {
				return nil
			}
			fetched[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*domain.Reservation, 0, len(fetched))
	for _, r := range fetched {
		if r != nil {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// scanDocuments is the authority-level fallback: read every reservation
// document and filter. Individual unreadable documents are skipped.
func (s *Store) scanDocuments(ctx context.Context, match func(*domain.Reservation) bool) ([]*domain.Reservation, error) {
	start := time.Now()
	objs, err := s.objects.List(ctx, docPrefix)
	observability.StoreOpDuration.WithLabelValues("list_docs").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "list reservation documents"), domain.ErrStoreUnavailable)
	}

	fetched := make([]*domain.Reservation, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, obj := range objs {
		g.Go(func() error {
			data, err := s.objects.Get(gctx, obj.Path)
			if err != nil {
				s.logger.WithError(err).WithField("path", obj.Path).Warn("unreadable document during scan; skipping")
				return nil
			}
			var r domain.Reservation
			if err := json.Unmarshal(data, &r); err != nil {
				s.logger.WithError(err).WithField("path", obj.Path).Warn("undecodable document during scan; skipping")
				return nil
			}
			if match(&r) {
				fetched[i] = &r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*domain.Reservation, 0, len(fetched))
	for _, r := range fetched {
		if r != nil {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(list []*domain.Reservation) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
