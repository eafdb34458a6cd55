package httphandler

import (
	"net/http"
	"time"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
)

type SweepHandler struct {
	Models  *data.Models
	Sweeper SubscriptionSweeper
}

// PostSubscriptionSweep runs a lifecycle sweep right away instead of waiting for the scheduler.
func (h SweepHandler) PostSubscriptionSweep(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	result, err := h.Sweeper.Sweep(ctx, time.Now())
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.Render(rw, result, httpjson.JSON)
}

func (h SweepHandler) GetLatestSubscriptionSweep(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	sweep, err := h.Models.SubscriptionSweeps.Latest(ctx)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.Render(rw, sweep, httpjson.JSON)
}
