package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/db/migrations"
	"github.com/schoolhub/schoolhub-backend/db/router"
)

type ProvisioningState string

const (
	StateAbsent   ProvisioningState = "absent"
	StatePartial  ProvisioningState = "partial"
	StateComplete ProvisioningState = "complete"
)

const markerTableName = "tenant_provisioning_marker"

// PoolOpener opens a connection pool whose search_path is the given tenant schema.
type PoolOpener func(ctx context.Context, databaseName string) (db.DBConnectionPool, error)

// Migrator applies the tenant schema migrations over a tenant pool.
type Migrator func(ctx context.Context, tenantPool db.DBConnectionPool) (int, error)

// Provisioner creates isolated tenant schemas next to the catalog. It never drops what it created on failure: whether
// a partial schema is still needed by a retry is the caller's decision.
type Provisioner struct {
	catalogPool   db.DBConnectionPool
	openPool      PoolOpener
	migrator      Migrator
	seed          Seed
	schemaVersion string
}

type Option func(p *Provisioner)

func WithPoolOpener(opener PoolOpener) Option {
	return func(p *Provisioner) {
		p.openPool = opener
	}
}

func WithMigrator(migrator Migrator) Option {
	return func(p *Provisioner) {
		p.migrator = migrator
	}
}

func WithSeed(seed Seed) Option {
	return func(p *Provisioner) {
		p.seed = seed
	}
}

func WithSchemaVersion(version string) Option {
	return func(p *Provisioner) {
		p.schemaVersion = version
	}
}

func NewProvisioner(catalogPool db.DBConnectionPool, opts ...Option) (*Provisioner, error) {
	if catalogPool == nil {
		return nil, errors.New("catalogPool cannot be nil")
	}

	p := &Provisioner{
		catalogPool: catalogPool,
		migrator:    migrateTenantSchema,
		seed:        DefaultSeed,
	}
	p.openPool = p.openTenantPool
	for _, opt := range opts {
		opt(p)
	}

	if p.schemaVersion == "" {
		version, err := db.LatestVersion(migrations.TenantMigrationRouter)
		if err != nil {
			return nil, fmt.Errorf("resolving tenant schema version: %w", err)
		}
		p.schemaVersion = version
	}

	return p, nil
}

type marker struct {
	exists        bool
	hasMarker     bool
	State         ProvisioningState `db:"state"`
	SchemaVersion string            `db:"schema_version"`
}

func qualifiedMarkerTable(databaseName string) string {
	return pq.QuoteIdentifier(databaseName) + "." + markerTableName
}

func (p *Provisioner) readMarker(ctx context.Context, databaseName string) (*marker, error) {
	m := &marker{}
	err := p.catalogPool.GetContext(ctx, &m.exists, `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, databaseName)
	if err != nil {
		return nil, fmt.Errorf("checking schema %s: %w", databaseName, err)
	}
	if !m.exists {
		return m, nil
	}

	err = p.catalogPool.GetContext(ctx, &m.hasMarker, `SELECT to_regclass($1) IS NOT NULL`, databaseName+"."+markerTableName)
	if err != nil {
		return nil, fmt.Errorf("checking provisioning marker of %s: %w", databaseName, err)
	}
	if !m.hasMarker {
		return m, nil
	}

	err = p.catalogPool.GetContext(ctx, m, fmt.Sprintf(`SELECT state, schema_version FROM %s LIMIT 1`, qualifiedMarkerTable(databaseName)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			m.hasMarker = false
			return m, nil
		}
		return nil, fmt.Errorf("reading provisioning marker of %s: %w", databaseName, err)
	}
	return m, nil
}

// Status reports whether the tenant schema is absent, partially provisioned or complete. A schema without a marker
// is partial.
func (p *Provisioner) Status(ctx context.Context, databaseName string) (ProvisioningState, error) {
	if err := router.ValidateSchoolDatabaseName(databaseName); err != nil {
		return "", err
	}

	m, err := p.readMarker(ctx, databaseName)
	if err != nil {
		return "", err
	}
	switch {
	case !m.exists:
		return StateAbsent, nil
	case !m.hasMarker:
		return StatePartial, nil
	default:
		return m.State, nil
	}
}

// Provision creates, migrates and seeds the tenant schema. Provisioning a name that is already complete at the
// current schema version is a no-op.
func (p *Provisioner) Provision(ctx context.Context, databaseName string) error {
	if err := router.ValidateSchoolDatabaseName(databaseName); err != nil {
		return err
	}

	m, err := p.readMarker(ctx, databaseName)
	if err != nil {
		return err
	}
	if m.exists {
		return p.checkExisting(ctx, databaseName, m)
	}

	log.Ctx(ctx).Infof("creating tenant schema %s", databaseName)
	if err = p.createSchema(ctx, databaseName); err != nil {
		return err
	}

	tenantPool, err := p.openPool(ctx, databaseName)
	if err != nil {
		return fmt.Errorf("opening connection pool on %s: %w", databaseName, err)
	}
	defer func() {
		if closeErr := tenantPool.Close(); closeErr != nil {
			log.Ctx(ctx).Errorf("closing connection pool on %s: %v", databaseName, closeErr)
		}
	}()

	n, err := p.migrator(ctx, tenantPool)
	if err != nil {
		return &MigrationFailedError{DatabaseName: databaseName, Err: err}
	}
	log.Ctx(ctx).Infof("applied %d tenant migrations on %s", n, databaseName)

	if err = p.seed.Apply(ctx, tenantPool); err != nil {
		return &SeedFailedError{DatabaseName: databaseName, Err: err}
	}

	query := fmt.Sprintf(`UPDATE %s SET state = $1, schema_version = $2, updated_at = NOW()`, qualifiedMarkerTable(databaseName))
	if _, err = p.catalogPool.ExecContext(ctx, query, StateComplete, p.schemaVersion); err != nil {
		return fmt.Errorf("marking %s as provisioned: %w", databaseName, err)
	}

	log.Ctx(ctx).Infof("tenant schema %s provisioned at version %s", databaseName, p.schemaVersion)
	return nil
}

func (p *Provisioner) checkExisting(ctx context.Context, databaseName string, m *marker) error {
	switch {
	case !m.hasMarker:
		return &ProvisioningConflictError{DatabaseName: databaseName, Reason: "schema exists without a provisioning marker"}
	case m.State != StateComplete:
		return &ProvisioningConflictError{DatabaseName: databaseName, Reason: fmt.Sprintf("provisioning marker is %s", m.State)}
	case m.SchemaVersion != p.schemaVersion:
		return &ProvisioningConflictError{
			DatabaseName: databaseName,
			Reason:       fmt.Sprintf("schema version %s does not match %s", m.SchemaVersion, p.schemaVersion),
		}
	}

	log.Ctx(ctx).Infof("tenant schema %s already provisioned at version %s", databaseName, m.SchemaVersion)
	return nil
}

// SyncSchemaVersion stamps the marker of an existing tenant schema with the newest tenant migration applied to it,
// which keeps markers in step after operator migrations. Schemas without a marker are left alone and report "".
func (p *Provisioner) SyncSchemaVersion(ctx context.Context, databaseName string) (string, error) {
	if err := router.ValidateSchoolDatabaseName(databaseName); err != nil {
		return "", err
	}

	m, err := p.readMarker(ctx, databaseName)
	if err != nil {
		return "", err
	}
	if !m.exists || !m.hasMarker {
		log.Ctx(ctx).Warnf("tenant schema %s has no provisioning marker, schema version not recorded", databaseName)
		return "", nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			schema_version = COALESCE((SELECT id FROM %s.%s ORDER BY id DESC LIMIT 1), ''),
			updated_at = NOW()
		RETURNING schema_version
	`, qualifiedMarkerTable(databaseName), pq.QuoteIdentifier(databaseName), migrations.TenantMigrationRouter.TableName)

	var version string
	if err = p.catalogPool.GetContext(ctx, &version, query); err != nil {
		return "", fmt.Errorf("recording schema version of %s: %w", databaseName, err)
	}
	return version, nil
}

// createSchema creates the schema and its partial marker atomically, so a schema never exists without a marker
// because of this provisioner.
func (p *Provisioner) createSchema(ctx context.Context, databaseName string) error {
	return db.RunInTransaction(ctx, p.catalogPool, nil, func(dbTx db.DBTransaction) error {
		if _, err := dbTx.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA %s`, pq.QuoteIdentifier(databaseName))); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "42P06" {
				return &ProvisioningConflictError{DatabaseName: databaseName, Reason: "schema was created concurrently"}
			}
			return fmt.Errorf("creating schema %s: %w", databaseName, err)
		}

		createMarker := fmt.Sprintf(`
			CREATE TABLE %s (
				id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
				state VARCHAR(16) NOT NULL,
				schema_version VARCHAR(64) NOT NULL DEFAULT '',
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, qualifiedMarkerTable(databaseName))
		if _, err := dbTx.ExecContext(ctx, createMarker); err != nil {
			return fmt.Errorf("creating provisioning marker on %s: %w", databaseName, err)
		}

		if _, err := dbTx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (state) VALUES ($1)`, qualifiedMarkerTable(databaseName)), StatePartial); err != nil {
			return fmt.Errorf("writing provisioning marker on %s: %w", databaseName, err)
		}
		return nil
	})
}

// Deprovision drops the tenant schema. It is only reached through the operator cleanup of orphaned schemas.
func (p *Provisioner) Deprovision(ctx context.Context, databaseName string) error {
	if err := router.ValidateSchoolDatabaseName(databaseName); err != nil {
		return err
	}

	if _, err := p.catalogPool.ExecContext(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, pq.QuoteIdentifier(databaseName))); err != nil {
		return fmt.Errorf("dropping schema %s: %w", databaseName, err)
	}
	log.Ctx(ctx).Warnf("tenant schema %s dropped", databaseName)
	return nil
}

func (p *Provisioner) openTenantPool(ctx context.Context, databaseName string) (db.DBConnectionPool, error) {
	catalogDSN, err := p.catalogPool.DSN(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting catalog DSN: %w", err)
	}
	dsn, err := router.GetDSNForSchoolDatabase(catalogDSN, databaseName)
	if err != nil {
		return nil, fmt.Errorf("getting DSN for %s: %w", databaseName, err)
	}

	var tenantPool db.DBConnectionPool
	err = retry.Do(
		func() error {
			var openErr error
			tenantPool, openErr = db.OpenDBConnectionPoolWithConfig(dsn, db.TenantPoolConfig)
			return openErr
		},
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", databaseName, err)
	}
	return tenantPool, nil
}

func migrateTenantSchema(ctx context.Context, tenantPool db.DBConnectionPool) (int, error) {
	return db.MigrateWithPool(ctx, tenantPool, migrate.Up, 0, migrations.TenantMigrationRouter)
}
