package utils

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const unknownRoute = "undefined"

// GetRoutePattern labels request metrics with the chi pattern, e.g. /schools/{id}, so school IDs never become label
// values. Requests that reached no route are labeled "undefined".
func GetRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unknownRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	path := r.URL.RawPath
	if path == "" {
		path = r.URL.Path
	}
	matchCtx := chi.NewRouteContext()
	if rctx.Routes == nil || !rctx.Routes.Match(matchCtx, r.Method, path) {
		return unknownRoute
	}
	return matchCtx.RoutePattern()
}

// ParseBoolQueryParam returns nil when the parameter is absent.
func ParseBoolQueryParam(r *http.Request, param string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing query param %s: %w", param, err)
	}
	return &value, nil
}
