package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
)

// SubscriptionSweep is the watermark left by one lifecycle sweep run.
type SubscriptionSweep struct {
	ID           string     `json:"id" db:"id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Examined     int        `json:"examined" db:"examined"`
	Suspended    int        `json:"suspended" db:"suspended"`
	GraceFlagged int        `json:"grace_flagged" db:"grace_flagged"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
}

type SweepResult struct {
	Examined     int `json:"examined"`
	Suspended    int `json:"suspended"`
	GraceFlagged int `json:"grace_flagged"`
}

type SubscriptionSweepModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sweepColumns = `id, started_at, finished_at, examined, suspended, grace_flagged, error_message`

func (m *SubscriptionSweepModel) Start(ctx context.Context, sqlExec db.SQLExecuter, startedAt time.Time) (*SubscriptionSweep, error) {
	var s SubscriptionSweep
	query := `INSERT INTO subscription_sweeps (started_at) VALUES ($1) RETURNING ` + sweepColumns
	if err := sqlExec.GetContext(ctx, &s, query, startedAt); err != nil {
		return nil, fmt.Errorf("starting subscription sweep: %w", err)
	}
	return &s, nil
}

// Finish closes the watermark. A non-nil sweepErr is recorded as the run's error message.
func (m *SubscriptionSweepModel) Finish(ctx context.Context, sqlExec db.SQLExecuter, id string, result SweepResult, sweepErr error) error {
	var errMsg *string
	if sweepErr != nil {
		msg := sweepErr.Error()
		errMsg = &msg
	}

	query := `
		UPDATE subscription_sweeps
		SET finished_at = NOW(), examined = $2, suspended = $3, grace_flagged = $4, error_message = $5
		WHERE id = $1 AND finished_at IS NULL
	`
	if _, err := sqlExec.ExecContext(ctx, query, id, result.Examined, result.Suspended, result.GraceFlagged, errMsg); err != nil {
		return fmt.Errorf("finishing subscription sweep %s: %w", id, err)
	}
	return nil
}

func (m *SubscriptionSweepModel) Latest(ctx context.Context) (*SubscriptionSweep, error) {
	var s SubscriptionSweep
	query := `SELECT ` + sweepColumns + ` FROM subscription_sweeps ORDER BY started_at DESC LIMIT 1`
	if err := m.dbConnectionPool.GetContext(ctx, &s, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting latest subscription sweep: %w", err)
	}
	return &s, nil
}
