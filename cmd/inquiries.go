package cmd

import (
	"context"
	"errors"
	"fmt"
	"go/types"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dimchansky/utfbom"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/formfields"
	"github.com/schoolhub/schoolhub-backend/internal/serve/validators"
)

const (
	csvColumnSchoolName     = "school_name"
	csvColumnSchoolEmail    = "school_email"
	csvColumnProposedDomain = "proposed_domain"
)

type InquiriesCommand struct{}

type InquiriesImportOptions struct {
	FilePath string
	DryRun   bool
}

type InquiriesServiceInterface interface {
	ImportInquiries(ctx context.Context, databaseURL string, submissions []validators.InquirySubmissionRequest, dryRun bool) (int, error)
}

type InquiriesService struct{}

var _ InquiriesServiceInterface = (*InquiriesService)(nil)

// ImportInquiries checks every submission against the active form fields and only inserts when all of them pass.
func (s *InquiriesService) ImportInquiries(ctx context.Context, databaseURL string, submissions []validators.InquirySubmissionRequest, dryRun bool) (int, error) {
	dbConnectionPool, err := db.OpenDBConnectionPool(databaseURL)
	if err != nil {
		return 0, fmt.Errorf("opening catalog connection pool: %w", err)
	}
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		return 0, fmt.Errorf("creating models: %w", err)
	}

	registry, err := formfields.NewRegistry(models.FormFields, formfields.DefaultCacheTTL)
	if err != nil {
		return 0, fmt.Errorf("creating form field registry: %w", err)
	}

	return importInquiries(ctx, registry, models.Inquiries, submissions, dryRun)
}

type submissionValidator interface {
	ValidateSubmission(ctx context.Context, values map[string]any) (data.JSONMap, error)
}

type inquiryInserter interface {
	Insert(ctx context.Context, ii data.SchoolInquiryInsert) (*data.SchoolInquiry, error)
}

func importInquiries(ctx context.Context, registry submissionValidator, inserter inquiryInserter, submissions []validators.InquirySubmissionRequest, dryRun bool) (int, error) {
	inserts := make([]data.SchoolInquiryInsert, 0, len(submissions))
	var errs []error
	for i, submission := range submissions {
		values := make(map[string]any, len(submission.FormData)+3)
		for name, value := range submission.FormData {
			values[name] = value
		}
		values[csvColumnSchoolName] = submission.SchoolName
		values[csvColumnSchoolEmail] = submission.SchoolEmail
		if submission.ProposedDomain != "" {
			values[csvColumnProposedDomain] = submission.ProposedDomain
		}

		formData, err := registry.ValidateSubmission(ctx, values)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", csvLineNumber(i), err))
			continue
		}
		inserts = append(inserts, data.SchoolInquiryInsert{
			SchoolName:     submission.SchoolName,
			SchoolEmail:    submission.SchoolEmail,
			ProposedDomain: submission.ProposedDomain,
			FormData:       formData,
		})
	}
	if len(errs) > 0 {
		return 0, fmt.Errorf("validating inquiries: %w", errors.Join(errs...))
	}
	if dryRun {
		return 0, nil
	}

	for i, insert := range inserts {
		inquiry, err := inserter.Insert(ctx, insert)
		if err != nil {
			return i, fmt.Errorf("inserting inquiry from line %d: %w", csvLineNumber(i), err)
		}
		log.Ctx(ctx).Debugf("imported school inquiry %s", inquiry.ID)
	}
	return len(inserts), nil
}

// csvLineNumber maps a row index to its line in the file, accounting for the header.
func csvLineNumber(rowIndex int) int {
	return rowIndex + 2
}

// parseInquiriesCSV reads one submission per row. The fixed columns are required, every other column becomes a form
// data value.
func parseInquiriesCSV(reader io.Reader) ([]validators.InquirySubmissionRequest, error) {
	rows, err := gocsv.CSVToMaps(utfbom.SkipOnly(reader))
	if err != nil {
		return nil, fmt.Errorf("parsing csv file: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("no inquiries found in file")
	}
	if _, ok := rows[0][csvColumnSchoolName]; !ok {
		return nil, fmt.Errorf("missing %s column", csvColumnSchoolName)
	}
	if _, ok := rows[0][csvColumnSchoolEmail]; !ok {
		return nil, fmt.Errorf("missing %s column", csvColumnSchoolEmail)
	}

	submissions := make([]validators.InquirySubmissionRequest, 0, len(rows))
	var errs []error
	for i, row := range rows {
		submission := validators.InquirySubmissionRequest{
			SchoolName:     row[csvColumnSchoolName],
			SchoolEmail:    row[csvColumnSchoolEmail],
			ProposedDomain: row[csvColumnProposedDomain],
			FormData:       map[string]interface{}{},
		}
		for column, value := range row {
			if column == csvColumnSchoolName || column == csvColumnSchoolEmail || column == csvColumnProposedDomain {
				continue
			}
			submission.FormData[column] = csvCellValue(value)
		}

		validator := validators.NewInquiryValidator()
		validator.ValidateSubmission(&submission)
		if validator.HasErrors() {
			errs = append(errs, fmt.Errorf("line %d: %s", csvLineNumber(i), formatValidationErrors(validator.Errors)))
			continue
		}
		submissions = append(submissions, submission)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return submissions, nil
}

// csvCellValue turns "true" and "false" into booleans so checkbox fields validate. Everything else stays a string.
func csvCellValue(raw string) any {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	default:
		return value
	}
}

func formatValidationErrors(validationErrors map[string]interface{}) string {
	fields := make([]string, 0, len(validationErrors))
	for field := range validationErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %v", field, validationErrors[field]))
	}
	return strings.Join(msgs, "; ")
}

func (c *InquiriesCommand) Command(inquiriesService InquiriesServiceInterface) *cobra.Command {
	inquiriesCmd := &cobra.Command{
		Use:              "inquiries",
		Short:            "School inquiry related commands",
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		RunE:             cmdUtils.CallHelpCommand,
	}
	inquiriesCmd.AddCommand(c.importCommand(inquiriesService))

	return inquiriesCmd
}

func (c *InquiriesCommand) importCommand(inquiriesService InquiriesServiceInterface) *cobra.Command {
	opts := InquiriesImportOptions{}
	configOpts := config.ConfigOptions{
		{
			Name:      "file",
			Usage:     "Path of the CSV file with a header row. school_name and school_email are required, proposed_domain is optional and every other column is matched against the active form fields.",
			OptType:   types.String,
			ConfigKey: &opts.FilePath,
			Required:  true,
		},
		{
			Name:        "dry-run",
			Usage:       "Validate the file without storing any inquiry",
			OptType:     types.Bool,
			ConfigKey:   &opts.DryRun,
			FlagDefault: false,
			Required:    false,
		},
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Imports school inquiries from a CSV file",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			file, err := os.Open(opts.FilePath)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error opening %s: %s", opts.FilePath, err.Error())
			}
			defer file.Close()

			submissions, err := parseInquiriesCSV(file)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error reading inquiries from %s: %s", opts.FilePath, err.Error())
			}

			imported, err := inquiriesService.ImportInquiries(ctx, globalOptions.DatabaseURL, submissions, opts.DryRun)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error importing inquiries: %s", err.Error())
			}

			if opts.DryRun {
				log.Ctx(ctx).Infof("Dry run: %d inquiries are valid", len(submissions))
				return
			}
			log.Ctx(ctx).Infof("Imported %d inquiries from %s", imported, opts.FilePath)
		},
	}
	if err := configOpts.Init(importCmd); err != nil {
		log.Ctx(importCmd.Context()).Fatalf("Error initializing importCmd config options: %s", err.Error())
	}

	return importCmd
}
