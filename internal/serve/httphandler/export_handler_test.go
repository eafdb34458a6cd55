package httphandler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var conversionTestColumns = []string{"id", "conversion_status", "error_message", "database_name", "domain", "initiated_by", "created_at"}

func Test_ExportHandler_ExportConversions(t *testing.T) {
	createdAt := time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)

	t.Run("unknown kind", func(t *testing.T) {
		handler := ExportHandler{}

		rr := serveRequest(t, http.MethodGet, "/conversions/export", "/conversions/export?kind=tenant", "", testSuperadmin, handler.ExportConversions)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "Request invalid",
			"error_code": "400_2",
			"extras": {"kind": "kind must be 'admin' or 'inquiry'"}
		}`, rr.Body.String())
	})

	t.Run("🎉 admin conversions by default", func(t *testing.T) {
		models, sqlMock := newMockedModels(t)
		sqlMock.ExpectQuery("SELECT (.+) FROM admin_tenant_conversions ORDER BY").
			WillReturnRows(sqlmock.NewRows(append([]string{"admin_id", "tenant_id"}, conversionTestColumns...)).
				AddRow("adm-1", "ten-1", "conv-2", "completed", nil, "school_greenwood", "greenwood", "sa-1", createdAt).
				AddRow("adm-2", nil, "conv-1", "failed", "domain allocation exhausted", nil, nil, "sa-1", createdAt))
		handler := ExportHandler{Models: models}

		rr := serveRequest(t, http.MethodGet, "/conversions/export", "/conversions/export", "", testSuperadmin, handler.ExportConversions)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment; filename=admin_conversions_"))

		lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "id,admin_id,tenant_id,conversion_status,error_message,database_name,domain,initiated_by,created_at,converted_at", lines[0])
		assert.Equal(t, "conv-2,adm-1,ten-1,completed,,school_greenwood,greenwood,sa-1,2026-06-15T09:30:00Z,", lines[1])
		assert.Equal(t, "conv-1,adm-2,,failed,domain allocation exhausted,,,sa-1,2026-06-15T09:30:00Z,", lines[2])
		require.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("🎉 inquiry conversions", func(t *testing.T) {
		models, sqlMock := newMockedModels(t)
		sqlMock.ExpectQuery("SELECT (.+) FROM inquiry_conversions ORDER BY").
			WillReturnRows(sqlmock.NewRows(append([]string{"inquiry_id", "school_id"}, conversionTestColumns...)).
				AddRow("inq-1", "sch-1", "conv-3", "completed", nil, "school_riverside", "riverside", "sa-1", createdAt))
		handler := ExportHandler{Models: models}

		rr := serveRequest(t, http.MethodGet, "/conversions/export", "/conversions/export?kind=Inquiry", "", testSuperadmin, handler.ExportConversions)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment; filename=inquiry_conversions_"))
		header := strings.Split(rr.Body.String(), "\n")[0]
		assert.Equal(t, "id,inquiry_id,school_id,conversion_status,error_message,database_name,domain,initiated_by,created_at,converted_at", header)
		require.NoError(t, sqlMock.ExpectationsWereMet())
	})
}
