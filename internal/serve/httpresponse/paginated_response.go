package httpresponse

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// PaginatedResponse is the envelope of every list endpoint.
type PaginatedResponse[T any] struct {
	Pagination PaginationInfo `json:"pagination"`
	Data       []T            `json:"data"`
}

// PaginationInfo links are relative to the request, with every other query parameter preserved.
type PaginationInfo struct {
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Pages int    `json:"pages"`
	Total int    `json:"total"`
}

// NewEmptyPaginatedResponse renders `data` as an empty list rather than null.
func NewEmptyPaginatedResponse() PaginatedResponse[struct{}] {
	return PaginatedResponse[struct{}]{Data: []struct{}{}}
}

// NewPaginatedResponse builds the page of items selected by qp out of total matching rows. A page past the end gets no
// next link and a prev link to the last page.
func NewPaginatedResponse[T any](r *http.Request, items []T, qp data.QueryParams, total int) (PaginatedResponse[T], error) {
	if qp.PageLimit <= 0 {
		return PaginatedResponse[T]{}, errors.New("page_limit must be a positive integer")
	}
	if items == nil {
		items = []T{}
	}

	pages := (total + qp.PageLimit - 1) / qp.PageLimit
	pagination := PaginationInfo{Pages: pages, Total: total}
	if qp.Page < pages {
		pagination.Next = pageLink(r.URL, qp.Page+1)
	}
	if qp.Page > 1 && pages > 0 {
		pagination.Prev = pageLink(r.URL, min(qp.Page-1, pages))
	}

	return PaginatedResponse[T]{Pagination: pagination, Data: items}, nil
}

func pageLink(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	link := url.URL{Path: u.Path, RawQuery: q.Encode()}
	return link.String()
}
