package data

import (
	"errors"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrRecordAlreadyExists     = errors.New("record already exists")
	ErrMismatchNumRowsAffected = errors.New("mismatch number of rows affected")
	ErrMissingInput            = errors.New("missing input")
)

// Models groups every catalog model. Each model method takes the SQLExecuter it should run on when it can be part of
// a wider transaction.
type Models struct {
	Admins             *AdminModel
	Tenants            *TenantModel
	Schools            *SchoolModel
	Inquiries          *SchoolInquiryModel
	Plans              *SubscriptionPlanModel
	FormFields         *FormFieldModel
	AdminConversions   *AdminConversionModel
	InquiryConversions *InquiryConversionModel
	DomainReservations *DomainReservationModel
	SubscriptionSweeps *SubscriptionSweepModel
	DBConnectionPool   db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}
	return &Models{
		Admins:             &AdminModel{dbConnectionPool: dbConnectionPool},
		Tenants:            &TenantModel{dbConnectionPool: dbConnectionPool},
		Schools:            &SchoolModel{dbConnectionPool: dbConnectionPool},
		Inquiries:          &SchoolInquiryModel{dbConnectionPool: dbConnectionPool},
		Plans:              &SubscriptionPlanModel{dbConnectionPool: dbConnectionPool},
		FormFields:         &FormFieldModel{dbConnectionPool: dbConnectionPool},
		AdminConversions:   &AdminConversionModel{dbConnectionPool: dbConnectionPool},
		InquiryConversions: &InquiryConversionModel{dbConnectionPool: dbConnectionPool},
		DomainReservations: &DomainReservationModel{dbConnectionPool: dbConnectionPool},
		SubscriptionSweeps: &SubscriptionSweepModel{dbConnectionPool: dbConnectionPool},
		DBConnectionPool:   dbConnectionPool,
	}, nil
}
