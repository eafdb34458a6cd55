package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrConversionInProgress   = errors.New("a conversion is already in progress")
	ErrAlreadyConverted       = errors.New("a completed conversion already exists")
	ErrConversionNotInitiated = errors.New("conversion is no longer in the initiated status")
)

// AbandonedConversionMessage is written on initiated rows that outlived the stale timeout.
const AbandonedConversionMessage = "conversion abandoned: no progress before the stale timeout"

// conversionTable describes one audit table. Both audit tables share the same lifecycle and only differ in naming.
type conversionTable struct {
	table          string
	subjectColumn  string
	resultColumn   string
	snapshotColumn string
	sourceTable    string
	completedIndex string
	initiatedIndex string
	// reconcileQuery completes stale initiated rows whose bind already committed. $1 is the cutoff.
	reconcileQuery string
}

func (t conversionTable) columns() string {
	return fmt.Sprintf(`
		id, %s, %s, %s, conversion_status, error_message, database_name, domain, initiated_by, created_at, converted_at
	`, t.subjectColumn, t.resultColumn, t.snapshotColumn)
}

var adminConversionTable = conversionTable{
	table:          "admin_tenant_conversions",
	subjectColumn:  "admin_id",
	resultColumn:   "tenant_id",
	snapshotColumn: "old_admin_data",
	sourceTable:    "admins",
	completedIndex: "idx_unique_admin_conversion_completed",
	initiatedIndex: "idx_unique_admin_conversion_initiated",
	reconcileQuery: `
		UPDATE admin_tenant_conversions c
		SET conversion_status = 'completed', tenant_id = t.id, converted_at = COALESCE(a.converted_at, NOW())
		FROM tenants t
		JOIN admins a ON a.id = t.owner_admin_id
		WHERE c.conversion_status = 'initiated'
			AND c.created_at < $1
			AND t.owner_admin_id = c.admin_id
			AND t.database_name = c.database_name
	`,
}

var inquiryConversionTable = conversionTable{
	table:          "inquiry_conversions",
	subjectColumn:  "inquiry_id",
	resultColumn:   "school_id",
	snapshotColumn: "old_inquiry_data",
	sourceTable:    "school_inquiries",
	completedIndex: "idx_unique_inquiry_conversion_completed",
	initiatedIndex: "idx_unique_inquiry_conversion_initiated",
	reconcileQuery: `
		UPDATE inquiry_conversions c
		SET conversion_status = 'completed', school_id = s.id, converted_at = COALESCE(s.approved_at, NOW())
		FROM schools s
		JOIN school_inquiries i ON i.converted_school_id = s.id
		WHERE c.conversion_status = 'initiated'
			AND c.created_at < $1
			AND i.id = c.inquiry_id
			AND s.database_name = c.database_name
	`,
}

// OrphanedIdentifiers are identifiers allocated by a failed conversion that no tenant or school ended up owning.
type OrphanedIdentifiers struct {
	DatabaseName string `db:"database_name"`
	Domain       string `db:"domain"`
}

func initiateConversion[T any](ctx context.Context, sqlExec db.SQLExecuter, t conversionTable, subjectID, initiatedBy string) (*T, error) {
	// The snapshot is taken by the database itself so it is the exact row as stored at reservation time.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, initiated_by)
		SELECT s.id, to_jsonb(s), $2 FROM %s s WHERE s.id = $1
		RETURNING %s
	`, t.table, t.subjectColumn, t.snapshotColumn, t.sourceTable, t.columns())

	var conversion T
	if err := sqlExec.GetContext(ctx, &conversion, query, subjectID, initiatedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		mapped := mapConstraintError(err, map[string]error{
			t.initiatedIndex: ErrConversionInProgress,
			t.completedIndex: ErrAlreadyConverted,
		})
		if mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting %s row: %w", t.table, err)
	}
	return &conversion, nil
}

func updateInitiatedConversion(ctx context.Context, sqlExec db.SQLExecuter, t conversionTable, setClause string, args ...any) error {
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 AND conversion_status = 'initiated'`, t.table, setClause)

	res, err := sqlExec.ExecContext(ctx, query, args...)
	if err != nil {
		if mapped := mapConstraintError(err, map[string]error{t.completedIndex: ErrAlreadyConverted}); mapped != nil {
			return mapped
		}
		return fmt.Errorf("updating %s row: %w", t.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting updated %s rows: %w", t.table, err)
	}
	if n != 1 {
		return ErrConversionNotInitiated
	}
	return nil
}

func recordConversionIdentifiers(ctx context.Context, sqlExec db.SQLExecuter, t conversionTable, id, databaseName, domain string) error {
	return updateInitiatedConversion(ctx, sqlExec, t, "database_name = $2, domain = $3", id, databaseName, domain)
}

func failConversion(ctx context.Context, sqlExec db.SQLExecuter, t conversionTable, id, message string) error {
	return updateInitiatedConversion(ctx, sqlExec, t, "conversion_status = 'failed', error_message = $2", id, message)
}

func completeConversion(ctx context.Context, sqlExec db.SQLExecuter, t conversionTable, id, resultID string, at time.Time) error {
	set := fmt.Sprintf("conversion_status = 'completed', %s = $2, converted_at = $3", t.resultColumn)
	return updateInitiatedConversion(ctx, sqlExec, t, set, id, resultID, at)
}

func listConversions[T any](ctx context.Context, sqlExec db.SQLExecuter, t conversionTable, subjectID string) ([]T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, t.columns(), t.table)
	args := []any{}
	if subjectID != "" {
		query += fmt.Sprintf(` WHERE %s = $1`, t.subjectColumn)
		args = append(args, subjectID)
	}
	query += ` ORDER BY created_at DESC, id`

	conversions := []T{}
	if err := sqlExec.SelectContext(ctx, &conversions, query, args...); err != nil {
		return nil, fmt.Errorf("listing %s rows: %w", t.table, err)
	}
	return conversions, nil
}

// StaleConversions counts what a reap did to one audit table.
type StaleConversions struct {
	Completed int64
	Failed    int64
	// Released counts the reservations of failed rows that were still held and unbound.
	Released int64
}

// reapStaleConversions settles initiated rows created before cutoff: rows whose bind committed are completed, the rest
// are failed and the reservations they still hold are released so the next attempt allocates fresh identifiers.
func reapStaleConversions(ctx context.Context, dbConnectionPool db.DBConnectionPool, t conversionTable, cutoff time.Time) (StaleConversions, error) {
	var reaped StaleConversions
	err := db.RunInTransaction(ctx, dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
		res, txErr := dbTx.ExecContext(ctx, t.reconcileQuery, cutoff)
		if txErr != nil {
			return fmt.Errorf("reconciling bound %s rows: %w", t.table, txErr)
		}
		if reaped.Completed, txErr = res.RowsAffected(); txErr != nil {
			return fmt.Errorf("counting reconciled %s rows: %w", t.table, txErr)
		}

		query := fmt.Sprintf(`
			UPDATE %s SET conversion_status = 'failed', error_message = $2
			WHERE conversion_status = 'initiated' AND created_at < $1
			RETURNING domain
		`, t.table)
		var domains []sql.NullString
		if txErr = dbTx.SelectContext(ctx, &domains, query, cutoff, AbandonedConversionMessage); txErr != nil {
			return fmt.Errorf("failing stale %s rows: %w", t.table, txErr)
		}
		reaped.Failed = int64(len(domains))

		held := make([]string, 0, len(domains))
		for _, d := range domains {
			if d.Valid {
				held = append(held, d.String)
			}
		}
		if len(held) == 0 {
			return nil
		}
		res, txErr = dbTx.ExecContext(ctx, `
			UPDATE domain_reservations SET released_at = NOW()
			WHERE domain = ANY($1) AND NOT bound AND released_at IS NULL
		`, pq.Array(held))
		if txErr != nil {
			return fmt.Errorf("releasing reservations of stale %s rows: %w", t.table, txErr)
		}
		if reaped.Released, txErr = res.RowsAffected(); txErr != nil {
			return fmt.Errorf("counting released reservations: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return StaleConversions{}, err
	}
	return reaped, nil
}

func orphanedConversionIdentifiers(ctx context.Context, sqlExec db.SQLExecuter, t conversionTable) ([]OrphanedIdentifiers, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT c.database_name, c.domain
		FROM %[1]s c
		WHERE c.conversion_status = 'failed'
			AND c.database_name IS NOT NULL
			AND c.domain IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM tenants t WHERE t.database_name = c.database_name)
			AND NOT EXISTS (SELECT 1 FROM schools s WHERE s.database_name = c.database_name)
			AND NOT EXISTS (
				SELECT 1 FROM %[1]s o WHERE o.database_name = c.database_name AND o.conversion_status = 'initiated'
			)
		ORDER BY c.database_name
	`, t.table)

	orphans := []OrphanedIdentifiers{}
	if err := sqlExec.SelectContext(ctx, &orphans, query); err != nil {
		return nil, fmt.Errorf("listing orphaned %s identifiers: %w", t.table, err)
	}
	return orphans, nil
}
