package validators

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

type CreatePlanRequest struct {
	Name         string            `json:"name"`
	Price        decimal.Decimal   `json:"price"`
	Currency     string            `json:"currency"`
	BillingCycle data.BillingCycle `json:"billing_cycle"`
	Features     []string          `json:"features"`
	MaxUsers     *int              `json:"max_users"`
	MaxStorageMB *int              `json:"max_storage_mb"`
	IsDefault    bool              `json:"is_default"`
}

type PlanValidator struct {
	*Validator
}

func NewPlanValidator() *PlanValidator {
	return &PlanValidator{Validator: NewValidator()}
}

// ValidateCreate returns the insert of a valid request.
func (pv *PlanValidator) ValidateCreate(req *CreatePlanRequest) data.SubscriptionPlanInsert {
	pv.Check(req != nil, "body", "request body is empty")
	if pv.HasErrors() {
		return data.SubscriptionPlanInsert{}
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.BillingCycle = data.BillingCycle(strings.ToLower(strings.TrimSpace(string(req.BillingCycle))))

	features := make([]string, 0, len(req.Features))
	for _, f := range req.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}

	pv.Check(req.Name != "", "name", "name is required")
	pv.Check(!req.Price.IsNegative(), "price", "price must not be negative")
	pv.Check(len(req.Currency) == 3, "currency", "currency must be a 3-letter ISO code")
	pv.CheckError(req.BillingCycle.Validate(), "billing_cycle", "")
	pv.Check(req.MaxUsers == nil || *req.MaxUsers > 0, "max_users", "max_users must be positive")
	pv.Check(req.MaxStorageMB == nil || *req.MaxStorageMB > 0, "max_storage_mb", "max_storage_mb must be positive")

	return data.SubscriptionPlanInsert{
		Name:         req.Name,
		Price:        req.Price,
		Currency:     req.Currency,
		BillingCycle: req.BillingCycle,
		Features:     features,
		MaxUsers:     req.MaxUsers,
		MaxStorageMB: req.MaxStorageMB,
		IsDefault:    req.IsDefault,
	}
}
