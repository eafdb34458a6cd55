package domainbinding

import (
	"context"
	"sync"
	"time"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// memoryStore mirrors the unique constraints of the domain_reservations table.
type memoryStore struct {
	mu            sync.Mutex
	byDomain      map[string]*data.DomainReservation
	databaseNames map[string]bool
	reserveCalls  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byDomain: map[string]*data.DomainReservation{}, databaseNames: map[string]bool{}}
}

func (s *memoryStore) Reserve(_ context.Context, domain, databaseName, owner string) (*data.DomainReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reserveCalls++
	if s.byDomain[domain] != nil || s.databaseNames[databaseName] {
		return nil, data.ErrDomainTaken
	}
	r := &data.DomainReservation{Domain: domain, DatabaseName: databaseName, OwnerKey: owner, ReservedAt: time.Now()}
	s.byDomain[domain] = r
	s.databaseNames[databaseName] = true
	return r, nil
}

func (s *memoryStore) GetHeldByOwner(_ context.Context, owner string) (*data.DomainReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.byDomain {
		if r.OwnerKey == owner && !r.Bound && r.ReleasedAt == nil {
			copied := *r
			return &copied, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (s *memoryStore) Release(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.byDomain[domain]
	if r == nil || r.Bound || r.ReleasedAt != nil {
		return data.ErrRecordNotFound
	}
	now := time.Now()
	r.ReleasedAt = &now
	return nil
}

func (s *memoryStore) Retire(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.byDomain[domain]
	if r == nil || r.Bound {
		return data.ErrReservationInUse
	}
	if r.ReleasedAt == nil {
		now := time.Now()
		r.ReleasedAt = &now
	}
	return nil
}
