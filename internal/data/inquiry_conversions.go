package data

import (
	"context"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
)

// InquiryConversion is one attempt at approving an inquiry into a provisioned school.
type InquiryConversion struct {
	ID               string           `json:"id" csv:"id" db:"id"`
	InquiryID        string           `json:"inquiry_id" csv:"inquiry_id" db:"inquiry_id"`
	SchoolID         *string          `json:"school_id,omitempty" csv:"school_id" db:"school_id"`
	OldInquiryData   JSONMap          `json:"old_inquiry_data" csv:"-" db:"old_inquiry_data"`
	ConversionStatus ConversionStatus `json:"conversion_status" csv:"conversion_status" db:"conversion_status"`
	ErrorMessage     *string          `json:"error_message,omitempty" csv:"error_message" db:"error_message"`
	DatabaseName     *string          `json:"database_name,omitempty" csv:"database_name" db:"database_name"`
	Domain           *string          `json:"domain,omitempty" csv:"domain" db:"domain"`
	InitiatedBy      string           `json:"initiated_by" csv:"initiated_by" db:"initiated_by"`
	CreatedAt        time.Time        `json:"created_at" csv:"created_at" db:"created_at"`
	ConvertedAt      *time.Time       `json:"converted_at,omitempty" csv:"converted_at" db:"converted_at"`
}

type InquiryConversionModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *InquiryConversionModel) Initiate(ctx context.Context, inquiryID, initiatedBy string) (*InquiryConversion, error) {
	return initiateConversion[InquiryConversion](ctx, m.dbConnectionPool, inquiryConversionTable, inquiryID, initiatedBy)
}

func (m *InquiryConversionModel) RecordIdentifiers(ctx context.Context, id, databaseName, domain string) error {
	return recordConversionIdentifiers(ctx, m.dbConnectionPool, inquiryConversionTable, id, databaseName, domain)
}

func (m *InquiryConversionModel) Fail(ctx context.Context, id, message string) error {
	return failConversion(ctx, m.dbConnectionPool, inquiryConversionTable, id, message)
}

func (m *InquiryConversionModel) Complete(ctx context.Context, id, schoolID string, at time.Time) error {
	return completeConversion(ctx, m.dbConnectionPool, inquiryConversionTable, id, schoolID, at)
}

func (m *InquiryConversionModel) ListByInquiry(ctx context.Context, inquiryID string) ([]InquiryConversion, error) {
	return listConversions[InquiryConversion](ctx, m.dbConnectionPool, inquiryConversionTable, inquiryID)
}

func (m *InquiryConversionModel) ReapStale(ctx context.Context, cutoff time.Time) (StaleConversions, error) {
	return reapStaleConversions(ctx, m.dbConnectionPool, inquiryConversionTable, cutoff)
}

func (m *InquiryConversionModel) Orphans(ctx context.Context) ([]OrphanedIdentifiers, error) {
	return orphanedConversionIdentifiers(ctx, m.dbConnectionPool, inquiryConversionTable)
}
