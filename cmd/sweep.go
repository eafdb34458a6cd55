package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/lifecycle"
)

type SweepCommand struct{}

type SweepServiceInterface interface {
	SweepSubscriptions(ctx context.Context, databaseURL string, now time.Time) (*data.SweepResult, error)
}

type SweepService struct{}

var _ SweepServiceInterface = (*SweepService)(nil)

func (s *SweepService) SweepSubscriptions(ctx context.Context, databaseURL string, now time.Time) (*data.SweepResult, error) {
	dbConnectionPool, err := db.OpenDBConnectionPool(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening catalog connection pool: %w", err)
	}
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		return nil, fmt.Errorf("creating models: %w", err)
	}

	sweeper, err := lifecycle.NewSweeper(models, nil)
	if err != nil {
		return nil, fmt.Errorf("creating sweeper: %w", err)
	}

	return sweeper.Sweep(ctx, now)
}

func (c *SweepCommand) Command(sweepService SweepServiceInterface) *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:              "sweep",
		Short:            "Subscription lifecycle commands",
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		RunE:             cmdUtils.CallHelpCommand,
	}

	subscriptionsCmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Suspends active schools whose subscription and grace period have lapsed",
		Long:  "Runs a single subscription sweep against the catalog, the same one the scheduler runs periodically when the API is started with --enable-scheduler.",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			result, err := sweepService.SweepSubscriptions(ctx, globalOptions.DatabaseURL, time.Now())
			if err != nil {
				log.Ctx(ctx).Fatalf("Error sweeping subscriptions: %s", err.Error())
			}

			log.Ctx(ctx).Infof("Subscription sweep finished: examined=%d suspended=%d grace_flagged=%d", result.Examined, result.Suspended, result.GraceFlagged)
		},
	}
	sweepCmd.AddCommand(subscriptionsCmd)

	return sweepCmd
}
