package data

type SortOrder string

const (
	SortOrderASC  SortOrder = "ASC"
	SortOrderDESC SortOrder = "DESC"
)

type SortField string

const (
	SortFieldName        SortField = "name"
	SortFieldCreatedAt   SortField = "created_at"
	SortFieldSubmittedAt SortField = "submitted_at"
	SortFieldEndDate     SortField = "subscription_end_date"
)

type FilterKey string

const (
	FilterKeyStatus FilterKey = "status"
	FilterKeyPlanID FilterKey = "subscription_plan_id"
	FilterKeySearch FilterKey = "q"
)

// QueryParams carries the listing options accepted by the list endpoints.
type QueryParams struct {
	Page      int
	PageLimit int
	SortBy    SortField
	SortOrder SortOrder
	Filters   map[FilterKey]string
}

const (
	DefaultPage      = 1
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalized fills the zero values with the listing defaults.
func (qp QueryParams) Normalized(defaultSort SortField) QueryParams {
	if qp.Page < 1 {
		qp.Page = DefaultPage
	}
	if qp.PageLimit < 1 {
		qp.PageLimit = DefaultPageLimit
	}
	if qp.PageLimit > MaxPageLimit {
		qp.PageLimit = MaxPageLimit
	}
	if qp.SortBy == "" {
		qp.SortBy = defaultSort
	}
	if qp.SortOrder != SortOrderASC {
		qp.SortOrder = SortOrderDESC
	}
	return qp
}
