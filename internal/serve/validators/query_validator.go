package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// FilterParser normalizes the raw value of a list filter. A nil parser accepts any trimmed text.
type FilterParser func(raw string) (string, error)

func SchoolStatusFilter(raw string) (string, error) {
	status, err := data.ToSchoolStatus(raw)
	return string(status), err
}

func InquiryStatusFilter(raw string) (string, error) {
	status, err := data.ToInquiryStatus(raw)
	return string(status), err
}

func UUIDFilter(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid id %q", raw)
	}
	return id.String(), nil
}

// QueryValidator parses the pagination, ordering and filters of a list endpoint. Parameters it does not know are
// ignored.
type QueryValidator struct {
	*Validator
	DefaultSortField  data.SortField
	DefaultSortOrder  data.SortOrder
	AllowedSortFields []data.SortField
	AllowedFilters    map[data.FilterKey]FilterParser
}

// ParseParametersFromRequest returns an empty QueryParams when any parameter is invalid. Callers check HasErrors.
func (qv *QueryValidator) ParseParametersFromRequest(r *http.Request) *data.QueryParams {
	query := r.URL.Query()

	page := qv.intParam(query.Get("page"), "page", data.DefaultPage)
	qv.Check(page >= 1, "page", "parameter must be greater than or equal to 1")
	pageLimit := qv.intParam(query.Get("page_limit"), "page_limit", data.DefaultPageLimit)
	qv.Check(pageLimit >= 1 && pageLimit <= data.MaxPageLimit, "page_limit", fmt.Sprintf("parameter must be between 1 and %d", data.MaxPageLimit))

	sortBy := data.SortField(strings.ToLower(query.Get("sort")))
	switch {
	case sortBy == "":
		sortBy = qv.DefaultSortField
	case !slices.Contains(qv.AllowedSortFields, sortBy):
		qv.addError("sort", "invalid sort field name")
	}

	sortOrder := data.SortOrder(strings.ToUpper(query.Get("direction")))
	switch sortOrder {
	case "":
		sortOrder = qv.DefaultSortOrder
	case data.SortOrderASC, data.SortOrderDESC:
	default:
		qv.addError("direction", "invalid sort order. valid values are 'asc' and 'desc'")
	}

	filters := make(map[data.FilterKey]string, len(qv.AllowedFilters))
	for key, parse := range qv.AllowedFilters {
		value := strings.TrimSpace(query.Get(string(key)))
		if value == "" {
			continue
		}
		if parse != nil {
			var err error
			if value, err = parse(value); err != nil {
				qv.CheckError(err, string(key), "")
				continue
			}
		}
		filters[key] = value
	}

	if qv.HasErrors() {
		return &data.QueryParams{}
	}

	return &data.QueryParams{
		Page:      page,
		PageLimit: pageLimit,
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Filters:   filters,
	}
}

func (qv *QueryValidator) intParam(raw, key string, defaultValue int) int {
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		qv.CheckError(err, key, "parameter must be an integer")
		return defaultValue
	}
	return value
}
