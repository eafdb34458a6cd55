package domainbinding

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/db/router"
	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// DefaultMaxRetries is how many suffixed candidates are tried after the bare slug collides.
const DefaultMaxRetries = 20

// AllocationExhaustedError is returned when every candidate derived from a seed was already reserved.
type AllocationExhaustedError struct {
	Seed     string
	Attempts int
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("no free domain derived from %q after %d attempts", e.Seed, e.Attempts)
}

// ReservationStore persists reservations. Reserve must fail with data.ErrDomainTaken when either the domain or the
// database name is already reserved.
type ReservationStore interface {
	Reserve(ctx context.Context, domain, databaseName, owner string) (*data.DomainReservation, error)
	GetHeldByOwner(ctx context.Context, owner string) (*data.DomainReservation, error)
	Release(ctx context.Context, domain string) error
	// Retire must fail with data.ErrReservationInUse when a tenant or school is bound to the reservation.
	Retire(ctx context.Context, domain string) error
}

var _ ReservationStore = (*data.DomainReservationModel)(nil)

// Allocation is a reserved domain and its tenant schema name.
type Allocation struct {
	Domain       string
	DatabaseName string
	// Reused is set when the owner already held the reservation from an earlier attempt.
	Reused bool
	// Attempts counts the candidates tried, zero when the reservation was reused.
	Attempts int
}

type Binder struct {
	store      ReservationStore
	maxRetries int
}

func NewBinder(store ReservationStore, maxRetries int) (*Binder, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if maxRetries < 0 {
		return nil, fmt.Errorf("maxRetries must not be negative, got %d", maxRetries)
	}
	return &Binder{store: store, maxRetries: maxRetries}, nil
}

// OwnerKey namespaces reservation owners, e.g. "admin:<id>".
func OwnerKey(kind, id string) string {
	return kind + ":" + id
}

// ReserveDomain tries to reserve candidate for owner. A collision is reported as accepted=false, not as an error.
func (b *Binder) ReserveDomain(ctx context.Context, candidate, owner string) (bool, error) {
	databaseName := DatabaseNameFor(candidate)
	if err := router.ValidateSchoolDatabaseName(databaseName); err != nil {
		return false, err
	}

	if _, err := b.store.Reserve(ctx, candidate, databaseName, owner); err != nil {
		if errors.Is(err, data.ErrDomainTaken) {
			return false, nil
		}
		return false, fmt.Errorf("reserving %s: %w", candidate, err)
	}
	return true, nil
}

var errCandidateTaken = errors.New("candidate already reserved")

// Allocate returns the reservation the owner already holds, or reserves the first free candidate derived from seed.
func (b *Binder) Allocate(ctx context.Context, owner, seed string) (Allocation, error) {
	held, err := b.store.GetHeldByOwner(ctx, owner)
	if err == nil {
		log.Ctx(ctx).Infof("reusing reservation %s held by %s", held.Domain, owner)
		return Allocation{Domain: held.Domain, DatabaseName: held.DatabaseName, Reused: true}, nil
	}
	if !errors.Is(err, data.ErrRecordNotFound) {
		return Allocation{}, fmt.Errorf("looking up reservation held by %s: %w", owner, err)
	}

	slug, err := Slugify(seed)
	if err != nil {
		return Allocation{}, err
	}

	attempt := 0
	var allocation Allocation
	err = retry.Do(
		func() error {
			candidate := Candidate(slug, attempt)
			attempt++

			accepted, reserveErr := b.ReserveDomain(ctx, candidate, owner)
			if reserveErr != nil {
				return retry.Unrecoverable(reserveErr)
			}
			if !accepted {
				log.Ctx(ctx).Debugf("domain candidate %s is taken", candidate)
				return errCandidateTaken
			}
			allocation = Allocation{Domain: candidate, DatabaseName: DatabaseNameFor(candidate), Attempts: attempt}
			return nil
		},
		retry.Attempts(uint(b.maxRetries+1)),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, errCandidateTaken) {
			return Allocation{}, &AllocationExhaustedError{Seed: slug, Attempts: attempt}
		}
		return Allocation{}, err
	}
	return allocation, nil
}

// Release gives the owner's unbound reservation up so the next attempt allocates fresh identifiers.
func (b *Binder) Release(ctx context.Context, domain string) error {
	if err := b.store.Release(ctx, domain); err != nil && !errors.Is(err, data.ErrRecordNotFound) {
		return fmt.Errorf("releasing %s: %w", domain, err)
	}
	return nil
}

// Retire gives the reservation up for good, whether or not it was already released. It keeps
// data.ErrReservationInUse in the chain when a tenant or school is bound to it.
func (b *Binder) Retire(ctx context.Context, domain string) error {
	if err := b.store.Retire(ctx, domain); err != nil {
		return fmt.Errorf("retiring %s: %w", domain, err)
	}
	return nil
}
