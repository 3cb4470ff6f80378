// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovuhq/partnergate"
	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/partner"
	gatestore "github.com/ovuhq/partnergate/store"
	"github.com/ovuhq/partnergate/tracker"
)

// compile-time interface check.
var _ gatestore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	partners        map[string]*partner.Partner       // keyed by ID string
	partnersByCode  map[string]*partner.Partner       // keyed by code
	credentials     map[string]*credential.Credential // keyed by ID string
	credsByPublicID map[string]*credential.Credential // keyed by public ID
	events          map[string]*event.Event           // keyed by ID string
	eventsByIdemKey map[string]*event.Event           // keyed by idempotency key
	deliveries      map[string]*dispatch.Delivery     // keyed by ID string
	attempts        []*tracker.Attempt                // append-only
	requestCounts   map[string]map[string]int64       // partner ID → day → count

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		partners:        make(map[string]*partner.Partner),
		partnersByCode:  make(map[string]*partner.Partner),
		credentials:     make(map[string]*credential.Credential),
		credsByPublicID: make(map[string]*credential.Credential),
		events:          make(map[string]*event.Event),
		eventsByIdemKey: make(map[string]*event.Event),
		deliveries:      make(map[string]*dispatch.Delivery),
		requestCounts:   make(map[string]map[string]int64),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return partnergate.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// partner.Store
// ──────────────────────────────────────────────────

// CreatePartner persists a new partner.
func (s *Store) CreatePartner(_ context.Context, p *partner.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partners[p.ID.String()] = p
	s.partnersByCode[p.Code] = p
	return nil
}

// GetPartner returns a partner by ID.
func (s *Store) GetPartner(_ context.Context, partnerID id.ID) (*partner.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partners[partnerID.String()]
	if !ok {
		return nil, partner.ErrNotFound
	}
	return p, nil
}

// GetPartnerByCode returns a partner by its public code.
func (s *Store) GetPartnerByCode(_ context.Context, code string) (*partner.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partnersByCode[code]
	if !ok {
		return nil, partner.ErrNotFound
	}
	return p, nil
}

// UpdatePartner modifies an existing partner.
func (s *Store) UpdatePartner(_ context.Context, p *partner.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[p.ID.String()]; !ok {
		return partner.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.partners[p.ID.String()] = p
	s.partnersByCode[p.Code] = p
	return nil
}

// TerminatePartner soft-deletes a partner. The record is retained.
func (s *Store) TerminatePartner(_ context.Context, partnerID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partners[partnerID.String()]
	if !ok {
		return partner.ErrNotFound
	}
	now := time.Now().UTC()
	p.Status = partner.StatusTerminated
	p.TerminatedAt = &now
	p.UpdatedAt = now
	return nil
}

// PartnerEntitlements returns the scopes a partner may grant.
func (s *Store) PartnerEntitlements(_ context.Context, partnerID id.ID) ([]credential.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partners[partnerID.String()]
	if !ok {
		return nil, partner.ErrNotFound
	}
	return p.Entitlements, nil
}

// ──────────────────────────────────────────────────
// credential.Store
// ──────────────────────────────────────────────────

// CreateCredential persists a new credential.
func (s *Store) CreateCredential(_ context.Context, c *credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[c.ID.String()] = c
	s.credsByPublicID[c.PublicID] = c
	return nil
}

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(_ context.Context, credID id.ID) (*credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[credID.String()]
	if !ok {
		return nil, credential.ErrNotFound
	}
	return c, nil
}

// GetCredentialByPublicID returns a credential by its public identifier.
func (s *Store) GetCredentialByPublicID(_ context.Context, publicID string) (*credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credsByPublicID[publicID]
	if !ok {
		return nil, credential.ErrNotFound
	}
	return c, nil
}

// UpdateCredential modifies an existing credential.
func (s *Store) UpdateCredential(_ context.Context, c *credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[c.ID.String()]; !ok {
		return credential.ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	s.credentials[c.ID.String()] = c
	s.credsByPublicID[c.PublicID] = c
	return nil
}

// RotateCredential atomically revokes old and persists issued. Both changes
// land under one lock so no reader observes the intermediate state.
func (s *Store) RotateCredential(_ context.Context, old *credential.Credential, issued *credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[old.ID.String()]; !ok {
		return credential.ErrNotFound
	}

	old.UpdatedAt = time.Now().UTC()
	s.credentials[old.ID.String()] = old
	s.credsByPublicID[old.PublicID] = old

	s.credentials[issued.ID.String()] = issued
	s.credsByPublicID[issued.PublicID] = issued
	return nil
}

// ListCredentialsByPartner returns all credentials owned by a partner.
func (s *Store) ListCredentialsByPartner(_ context.Context, partnerID id.ID) ([]*credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credential.Credential, 0)
	for _, c := range s.credentials {
		if c.PartnerID.String() == partnerID.String() {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event. Returns ErrDuplicateIdempotencyKey on conflict.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.IdempotencyKey != "" {
		if _, ok := s.eventsByIdemKey[evt.IdempotencyKey]; ok {
			return event.ErrDuplicateIdempotencyKey
		}
		s.eventsByIdemKey[evt.IdempotencyKey] = evt
	}

	s.events[evt.ID.String()] = evt
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, event.ErrNotFound
	}
	return evt, nil
}

// ListEventsByPartner returns events targeting a specific partner.
func (s *Store) ListEventsByPartner(_ context.Context, partnerID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0)
	for _, evt := range s.events {
		if evt.PartnerID.String() != partnerID.String() {
			continue
		}
		if opts.Type != "" && evt.Type != opts.Type {
			continue
		}
		if opts.From != nil && evt.OccurredAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.OccurredAt.After(*opts.To) {
			continue
		}
		result = append(result, evt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// dispatch.Store
// ──────────────────────────────────────────────────

// copyDelivery returns a shallow copy of the delivery.
func copyDelivery(d *dispatch.Delivery) *dispatch.Delivery {
	cp := *d
	return &cp
}

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(_ context.Context, d *dispatch.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = d
	return nil
}

// Claim fetches due deliveries and marks them in_flight under one lock, so
// concurrent claimers never see the same delivery twice.
func (s *Store) Claim(_ context.Context, now time.Time, limit int) ([]*dispatch.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*dispatch.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.State != dispatch.StatePending && d.State != dispatch.StateRetryScheduled {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*dispatch.Delivery, 0, len(candidates))
	for _, d := range candidates {
		d.State = dispatch.StateInFlight
		cp := copyDelivery(d)
		result = append(result, cp)
	}
	return result, nil
}

// UpdateDelivery persists a delivery's state after an attempt.
func (s *Store) UpdateDelivery(_ context.Context, d *dispatch.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return dispatch.ErrDeliveryNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*dispatch.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, dispatch.ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// ListDeliveriesByEvent returns all deliveries for a specific event.
func (s *Store) ListDeliveriesByEvent(_ context.Context, evtID id.ID) ([]*dispatch.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dispatch.Delivery, 0)
	for _, d := range s.deliveries {
		if d.EventID.String() == evtID.String() {
			result = append(result, copyDelivery(d))
		}
	}
	return result, nil
}

// ListDeliveriesByPartner returns delivery history for a partner.
func (s *Store) ListDeliveriesByPartner(_ context.Context, partnerID id.ID, opts dispatch.ListOpts) ([]*dispatch.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dispatch.Delivery, 0)
	for _, d := range s.deliveries {
		if d.PartnerID.String() != partnerID.String() {
			continue
		}
		if opts.State != nil && d.State != *opts.State {
			continue
		}
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// CountDue returns the number of deliveries due at or before now.
func (s *Store) CountDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.deliveries {
		if d.State != dispatch.StatePending && d.State != dispatch.StateRetryScheduled {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// tracker.Store
// ──────────────────────────────────────────────────

// RecordAttempt appends a delivery attempt.
func (s *Store) RecordAttempt(_ context.Context, a *tracker.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, a)
	return nil
}

// ListAttemptsByDelivery returns attempts for a delivery in attempt order.
func (s *Store) ListAttemptsByDelivery(_ context.Context, deliveryID id.ID) ([]*tracker.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tracker.Attempt, 0)
	for _, a := range s.attempts {
		if a.DeliveryID.String() == deliveryID.String() {
			result = append(result, a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})
	return result, nil
}

// ListAttemptsByPartnerSince returns a partner's attempts recorded at or
// after since.
func (s *Store) ListAttemptsByPartnerSince(_ context.Context, partnerID id.ID, since time.Time) ([]*tracker.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tracker.Attempt, 0)
	for _, a := range s.attempts {
		if a.PartnerID.String() != partnerID.String() {
			continue
		}
		if a.CreatedAt.Before(since) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// IncrRequestCount bumps the partner's admitted-request counter for the day
// containing at.
func (s *Store) IncrRequestCount(_ context.Context, partnerID id.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days, ok := s.requestCounts[partnerID.String()]
	if !ok {
		days = make(map[string]int64)
		s.requestCounts[partnerID.String()] = days
	}
	days[at.UTC().Format("2006-01-02")]++
	return nil
}

// RequestCountSince sums the partner's admitted-request counters from since
// to now.
func (s *Store) RequestCountSince(_ context.Context, partnerID id.ID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sinceDay := since.UTC().Format("2006-01-02")
	var total int64
	for day, n := range s.requestCounts[partnerID.String()] {
		if day >= sinceDay {
			total += n
		}
	}
	return total, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
