package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrDomainTaken         = errors.New("domain or database name is already reserved")
	ErrReservationNotBound = errors.New("reservation is not held or already bound")
	ErrReservationInUse    = errors.New("reservation is bound to a tenant or school")
)

// DomainReservation holds a domain and its database name for one owner until a tenant or school is bound to it.
type DomainReservation struct {
	Domain       string     `json:"domain" db:"domain"`
	DatabaseName string     `json:"database_name" db:"database_name"`
	OwnerKey     string     `json:"owner_key" db:"owner_key"`
	Bound        bool       `json:"bound" db:"bound"`
	ReservedAt   time.Time  `json:"reserved_at" db:"reserved_at"`
	ReleasedAt   *time.Time `json:"released_at,omitempty" db:"released_at"`
}

type DomainReservationModel struct {
	dbConnectionPool db.DBConnectionPool
}

const reservationColumns = `domain, database_name, owner_key, bound, reserved_at, released_at`

// Reserve claims the domain and database name for owner. Both are arbitrated by unique constraints, and released
// reservations keep their row so an identifier is never handed out twice.
func (m *DomainReservationModel) Reserve(ctx context.Context, domain, databaseName, owner string) (*DomainReservation, error) {
	query := `
		INSERT INTO domain_reservations (domain, database_name, owner_key)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		RETURNING ` + reservationColumns

	var r DomainReservation
	if err := m.dbConnectionPool.GetContext(ctx, &r, query, domain, databaseName, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDomainTaken
		}
		return nil, fmt.Errorf("reserving domain %s: %w", domain, err)
	}
	return &r, nil
}

// GetHeldByOwner returns the unbound, unreleased reservation owned by owner, if any.
func (m *DomainReservationModel) GetHeldByOwner(ctx context.Context, owner string) (*DomainReservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM domain_reservations
		WHERE owner_key = $1 AND NOT bound AND released_at IS NULL
		ORDER BY reserved_at DESC
		LIMIT 1
	`
	var r DomainReservation
	if err := m.dbConnectionPool.GetContext(ctx, &r, query, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting reservation held by %s: %w", owner, err)
	}
	return &r, nil
}

// Bind marks the reservation as permanently owned. It is meant to run inside the transaction that creates the tenant
// or school row.
func (m *DomainReservationModel) Bind(ctx context.Context, sqlExec db.SQLExecuter, domain, owner string) error {
	res, err := sqlExec.ExecContext(ctx, `
		UPDATE domain_reservations SET bound = true
		WHERE domain = $1 AND owner_key = $2 AND NOT bound AND released_at IS NULL
	`, domain, owner)
	if err != nil {
		return fmt.Errorf("binding reservation %s: %w", domain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting bound reservations: %w", err)
	}
	if n != 1 {
		return ErrReservationNotBound
	}
	return nil
}

// Release gives up an unbound reservation. Released identifiers stay reserved forever.
func (m *DomainReservationModel) Release(ctx context.Context, domain string) error {
	res, err := m.dbConnectionPool.ExecContext(ctx, `
		UPDATE domain_reservations SET released_at = NOW()
		WHERE domain = $1 AND NOT bound AND released_at IS NULL
	`, domain)
	if err != nil {
		return fmt.Errorf("releasing reservation %s: %w", domain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting released reservations: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Retire releases the reservation if it is still held and confirms no tenant or school uses its identifiers. A retired
// reservation can never be bound, so its schema may be dropped afterwards. It fails with ErrReservationInUse otherwise.
func (m *DomainReservationModel) Retire(ctx context.Context, domain string) error {
	res, err := m.dbConnectionPool.ExecContext(ctx, `
		UPDATE domain_reservations r SET released_at = COALESCE(r.released_at, NOW())
		WHERE r.domain = $1
			AND NOT r.bound
			AND NOT EXISTS (SELECT 1 FROM tenants t WHERE t.database_name = r.database_name OR t.domain = r.domain)
			AND NOT EXISTS (SELECT 1 FROM schools s WHERE s.database_name = r.database_name OR s.domain = r.domain)
	`, domain)
	if err != nil {
		return fmt.Errorf("retiring reservation %s: %w", domain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting retired reservations: %w", err)
	}
	if n == 0 {
		return ErrReservationInUse
	}
	return nil
}
