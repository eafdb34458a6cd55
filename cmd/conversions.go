package cmd

import (
	"context"
	"errors"
	"fmt"
	"go/types"
	"io"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/provisioning"
)

type ConversionsCommand struct{}

type ConversionsOptions struct {
	DomainMaxRetries       int
	StaleConversionTimeout time.Duration
	SkipConfirmation       bool
}

type ConversionsServiceInterface interface {
	ReapStaleConversions(ctx context.Context, databaseURL string, opts ConversionsOptions) (conversion.ReapResult, error)
	ListOrphans(ctx context.Context, databaseURL string, opts ConversionsOptions) ([]data.OrphanedIdentifiers, error)
	CleanupOrphans(ctx context.Context, databaseURL string, opts ConversionsOptions, orphans []data.OrphanedIdentifiers) (int, error)
}

type ConversionsService struct{}

var _ ConversionsServiceInterface = (*ConversionsService)(nil)

func (s *ConversionsService) withReaper(ctx context.Context, databaseURL string, opts ConversionsOptions, fn func(reaper *conversion.Reaper) error) error {
	dbConnectionPool, err := db.OpenDBConnectionPool(databaseURL)
	if err != nil {
		return fmt.Errorf("opening catalog connection pool: %w", err)
	}
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		return fmt.Errorf("creating models: %w", err)
	}

	binder, err := domainbinding.NewBinder(models.DomainReservations, opts.DomainMaxRetries)
	if err != nil {
		return fmt.Errorf("creating domain binder: %w", err)
	}
	provisioner, err := provisioning.NewProvisioner(models.DBConnectionPool)
	if err != nil {
		return fmt.Errorf("creating tenant provisioner: %w", err)
	}

	reaper, err := conversion.NewReaper(conversion.ReaperOptions{
		Models:        models,
		Deprovisioner: provisioner,
		Retirer:       binder,
	})
	if err != nil {
		return fmt.Errorf("creating stale conversion reaper: %w", err)
	}

	return fn(reaper)
}

func (s *ConversionsService) ReapStaleConversions(ctx context.Context, databaseURL string, opts ConversionsOptions) (conversion.ReapResult, error) {
	var result conversion.ReapResult
	err := s.withReaper(ctx, databaseURL, opts, func(reaper *conversion.Reaper) error {
		var reapErr error
		result, reapErr = reaper.ReapStaleConversions(ctx, opts.StaleConversionTimeout)
		return reapErr
	})
	return result, err
}

func (s *ConversionsService) ListOrphans(ctx context.Context, databaseURL string, opts ConversionsOptions) ([]data.OrphanedIdentifiers, error) {
	var orphans []data.OrphanedIdentifiers
	err := s.withReaper(ctx, databaseURL, opts, func(reaper *conversion.Reaper) error {
		var listErr error
		orphans, listErr = reaper.Orphans(ctx)
		return listErr
	})
	return orphans, err
}

func (s *ConversionsService) CleanupOrphans(ctx context.Context, databaseURL string, opts ConversionsOptions, orphans []data.OrphanedIdentifiers) (int, error) {
	var cleaned int
	err := s.withReaper(ctx, databaseURL, opts, func(reaper *conversion.Reaper) error {
		var cleanupErr error
		cleaned, cleanupErr = reaper.CleanupOrphans(ctx, orphans)
		return cleanupErr
	})
	return cleaned, err
}

func (c *ConversionsCommand) Command(conversionsService ConversionsServiceInterface) *cobra.Command {
	opts := ConversionsOptions{}
	configOpts := config.ConfigOptions{
		cmdUtils.DomainMaxRetriesConfigOption(&opts.DomainMaxRetries),
	}

	conversionsCmd := &cobra.Command{
		Use:   "conversions",
		Short: "Maintenance commands for admin and inquiry conversions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		RunE: cmdUtils.CallHelpCommand,
	}
	if err := configOpts.Init(conversionsCmd); err != nil {
		log.Ctx(conversionsCmd.Context()).Fatalf("Error initializing conversionsCmd config options: %s", err.Error())
	}

	conversionsCmd.AddCommand(c.reapStaleCommand(conversionsService, &opts))
	conversionsCmd.AddCommand(c.cleanupOrphansCommand(conversionsService, &opts))

	return conversionsCmd
}

func (c *ConversionsCommand) reapStaleCommand(conversionsService ConversionsServiceInterface, opts *ConversionsOptions) *cobra.Command {
	configOpts := config.ConfigOptions{
		cmdUtils.StaleConversionTimeoutConfigOption(&opts.StaleConversionTimeout),
	}

	reapCmd := &cobra.Command{
		Use:   "reap-stale",
		Short: "Settles conversions left in progress by a crashed process",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			result, err := conversionsService.ReapStaleConversions(ctx, globalOptions.DatabaseURL, *opts)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error reaping stale conversions: %s", err.Error())
			}

			log.Ctx(ctx).Infof("Stale conversions settled: completed=%d failed=%d released=%d", result.Completed, result.Failed, result.Released)
		},
	}
	if err := configOpts.Init(reapCmd); err != nil {
		log.Ctx(reapCmd.Context()).Fatalf("Error initializing reapCmd config options: %s", err.Error())
	}

	return reapCmd
}

func (c *ConversionsCommand) cleanupOrphansCommand(conversionsService ConversionsServiceInterface, opts *ConversionsOptions) *cobra.Command {
	configOpts := config.ConfigOptions{
		{
			Name:        "yes",
			Usage:       "Drop the orphaned schemas and release the domains without asking for confirmation",
			OptType:     types.Bool,
			ConfigKey:   &opts.SkipConfirmation,
			FlagDefault: false,
			Required:    false,
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup-orphans",
		Short: "Retires domains left behind by failed conversions and drops their school schemas",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			orphans, err := conversionsService.ListOrphans(ctx, globalOptions.DatabaseURL, *opts)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error listing orphaned identifiers: %s", err.Error())
			}
			if len(orphans) == 0 {
				log.Ctx(ctx).Info("No orphaned identifiers found")
				return
			}

			for _, orphan := range orphans {
				log.Ctx(ctx).Infof("Orphan: database_name=%q domain=%q", orphan.DatabaseName, orphan.Domain)
			}

			if !opts.SkipConfirmation {
				confirmed, err := confirmOrphanCleanup(cmd.InOrStdin(), len(orphans))
				if err != nil {
					log.Ctx(ctx).Fatalf("Error reading confirmation: %s", err.Error())
				}
				if !confirmed {
					log.Ctx(ctx).Info("Cleanup cancelled")
					return
				}
			}

			cleaned, err := conversionsService.CleanupOrphans(ctx, globalOptions.DatabaseURL, *opts, orphans)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error cleaning up orphaned identifiers: %s", err.Error())
			}

			log.Ctx(ctx).Infof("Cleaned up %d of %d orphaned identifiers", cleaned, len(orphans))
		},
	}
	if err := configOpts.Init(cleanupCmd); err != nil {
		log.Ctx(cleanupCmd.Context()).Fatalf("Error initializing cleanupCmd config options: %s", err.Error())
	}

	return cleanupCmd
}

func confirmOrphanCleanup(in io.Reader, count int) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Drop %d orphaned school schema(s) and release their domains", count),
		IsConfirm: true,
		Stdin:     io.NopCloser(in),
	}

	_, err := prompt.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	default:
		return false, err
	}
}
