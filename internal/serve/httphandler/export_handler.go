package httphandler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
)

const (
	exportKindAdmin   = "admin"
	exportKindInquiry = "inquiry"
)

type ExportHandler struct {
	Models *data.Models
}

// ExportConversions writes the conversion audit trail as CSV. ?kind selects the admin (default) or the inquiry trail.
func (e ExportHandler) ExportConversions(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		kind = exportKindAdmin
	}

	var rows interface{}
	switch kind {
	case exportKindAdmin:
		conversions, err := e.Models.AdminConversions.ListByAdmin(ctx, "")
		if err != nil {
			httperror.InternalError(ctx, "Failed to get admin conversions", err, nil).Render(rw)
			return
		}
		rows = conversions
	case exportKindInquiry:
		conversions, err := e.Models.InquiryConversions.ListByInquiry(ctx, "")
		if err != nil {
			httperror.InternalError(ctx, "Failed to get inquiry conversions", err, nil).Render(rw)
			return
		}
		rows = conversions
	default:
		extras := map[string]interface{}{"kind": "kind must be 'admin' or 'inquiry'"}
		httperror.BadRequest("Request invalid", nil, extras).WithErrorCode(httperror.Code400_2).Render(rw)
		return
	}

	fileName := fmt.Sprintf("%s_conversions_%s.csv", kind, time.Now().Format("2006-01-02-15-04-05"))
	rw.Header().Set("Content-Type", "text/csv")
	rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))

	if err := gocsv.Marshal(rows, rw); err != nil {
		httperror.InternalError(ctx, "Failed to write CSV", err, nil).Render(rw)
		return
	}
}
