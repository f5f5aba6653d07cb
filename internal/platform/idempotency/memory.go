package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It backs tests and local runs
// where no Firestore project is configured.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]Record
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Record)}
}

func expired(record Record, now time.Time) bool {
	return !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt)
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.byID[id]
	if !found || expired(record, now) {
		record = Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		s.byID[id] = record
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}

	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	state := ReservationStatePending
	if record.Status == StatusCompleted {
		state = ReservationStateCompleted
	}
	return Reservation{State: state, Record: record}, nil
}

// SaveResponse implements Store.
func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.byID[id]
	switch {
	case found && record.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	case !found:
		record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	case record.CreatedAt.IsZero():
		record.CreatedAt = now
	}

	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = storableHeaders(resp.Headers)
	record.ResponseBody = nil
	if len(resp.Body) > 0 {
		record.ResponseBody = append([]byte(nil), resp.Body...)
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	s.byID[id] = record
	return nil
}

// Release drops the reservation so a later attempt can retry the key.
func (s *MemoryStore) Release(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, recordID(key))
	return nil
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.byID) {
		limit = len(s.byID)
	}
	removed := 0
	for id, record := range s.byID {
		if removed >= limit {
			break
		}
		if expired(record, now) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed, nil
}
