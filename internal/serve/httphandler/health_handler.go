package httphandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/data"
)

type Status string

const (
	StatusPass Status = "pass"
	// StatusWarn keeps the instance in rotation while flagging a degraded dependency.
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// worse returns the least healthy of both statuses.
func (s Status) worse(other Status) Status {
	rank := map[Status]int{StatusPass: 0, StatusWarn: 1, StatusFail: 2}
	if rank[other] > rank[s] {
		return other
	}
	return s
}

// HealthResponse follows the health check response format for HTTP APIs.
//
// https://datatracker.ietf.org/doc/html/draft-inadarei-api-health-check-06#name-api-health-response
type HealthResponse struct {
	Status    Status            `json:"status"`
	Version   string            `json:"version,omitempty"`
	ServiceID string            `json:"service_id,omitempty"`
	ReleaseID string            `json:"release_id,omitempty"`
	Services  map[string]Status `json:"services,omitempty"`
}

type latestSweepGetter interface {
	Latest(ctx context.Context) (*data.SubscriptionSweep, error)
}

// HealthHandler pings the catalog. When LatestSweep is set, a failed last subscription sweep is reported as a warning
// because suspensions are late until the next successful run.
type HealthHandler struct {
	Version          string
	ServiceID        string
	ReleaseID        string
	DBConnectionPool db.DBConnectionPool
	LatestSweep      latestSweepGetter
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := map[string]Status{"database": StatusPass}
	if err := h.DBConnectionPool.Ping(ctx); err != nil {
		log.Ctx(ctx).Warnf("catalog database ping failed: %v", err)
		services["database"] = StatusFail
	} else if h.LatestSweep != nil {
		services["subscription_sweep"] = h.sweepStatus(ctx)
	}

	overall := StatusPass
	for _, status := range services {
		overall = overall.worse(status)
	}

	response := HealthResponse{
		Status:    overall,
		Version:   h.Version,
		ServiceID: h.ServiceID,
		ReleaseID: h.ReleaseID,
		Services:  services,
	}

	httpStatus := http.StatusOK
	if overall == StatusFail {
		httpStatus = http.StatusServiceUnavailable
	}
	httpjson.RenderStatus(w, httpStatus, response, httpjson.JSON)
}

func (h HealthHandler) sweepStatus(ctx context.Context) Status {
	sweep, err := h.LatestSweep.Latest(ctx)
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		return StatusPass
	case err != nil:
		log.Ctx(ctx).Warnf("reading the latest subscription sweep: %v", err)
		return StatusWarn
	case sweep.ErrorMessage != nil:
		return StatusWarn
	default:
		return StatusPass
	}
}
