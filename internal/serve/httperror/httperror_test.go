package httperror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

func Test_NewHTTPError_reusesUnchangedHTTPErrors(t *testing.T) {
	original := NewHTTPError(http.StatusConflict, "A conversion is already in progress.", data.ErrConversionInProgress, nil)

	assert.Same(t, original, NewHTTPError(http.StatusConflict, "", original, nil))
	assert.NotSame(t, original, NewHTTPError(http.StatusConflict, "Try again later.", original, nil))
	assert.NotSame(t, original, NewHTTPError(http.StatusBadRequest, "", original, nil))
	assert.NotSame(t, original, NewHTTPError(http.StatusConflict, "", original, map[string]interface{}{"school_id": "1"}))
}

func Test_constructors(t *testing.T) {
	cause := errors.New("no rows in result set")
	testCases := []struct {
		name        string
		build       func(msg string) *HTTPError
		wantStatus  int
		wantDefault string
	}{
		{"BadRequest", func(m string) *HTTPError { return BadRequest(m, cause, nil) }, http.StatusBadRequest, "The request was invalid in some way."},
		{"Unauthorized", func(m string) *HTTPError { return Unauthorized(m, cause, nil) }, http.StatusUnauthorized, "Not authorized."},
		{"Forbidden", func(m string) *HTTPError { return Forbidden(m, cause, nil) }, http.StatusForbidden, "You don't have permission to perform this action."},
		{"NotFound", func(m string) *HTTPError { return NotFound(m, cause, nil) }, http.StatusNotFound, "Resource not found."},
		{"Conflict", func(m string) *HTTPError { return Conflict(m, cause, nil) }, http.StatusConflict, "The resource already exists."},
		{"TooManyRequests", func(m string) *HTTPError { return TooManyRequests(m, cause, nil) }, http.StatusTooManyRequests, "Too many requests, please slow down."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hErr := tc.build("")
			assert.Equal(t, tc.wantStatus, hErr.StatusCode)
			assert.Equal(t, tc.wantDefault, hErr.Message)
			assert.ErrorIs(t, hErr, cause)

			assert.Equal(t, "School not found.", tc.build("School not found.").Message)
		})
	}

	assert.Equal(t, Code429_0, TooManyRequests("", nil, nil).ErrorCode)
}

func Test_InternalError(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")

	t.Run("logs the cause with the message", func(t *testing.T) {
		buf := new(strings.Builder)
		log.DefaultLogger.SetOutput(buf)
		t.Cleanup(func() { log.DefaultLogger.SetOutput(os.Stderr) })

		hErr := InternalError(ctx, "Cannot count schools", cause, nil)
		assert.Equal(t, http.StatusInternalServerError, hErr.StatusCode)
		assert.Equal(t, Code500_0, hErr.ErrorCode)
		assert.Contains(t, buf.String(), "Cannot count schools: connection refused")

		buf.Reset()
		hErr = InternalError(ctx, "", cause, nil)
		assert.Equal(t, "An internal error occurred while processing this request.", hErr.Message)
		assert.Contains(t, buf.String(), "An internal error occurred while processing this request.: connection refused")
	})

	t.Run("custom report func", func(t *testing.T) {
		t.Cleanup(func() { SetDefaultReportErrorFunc(logError) })
		var reported []string
		SetDefaultReportErrorFunc(func(_ context.Context, err error, msg string) {
			reported = append(reported, msg+" | "+err.Error())
		})

		InternalError(ctx, "Cannot retrieve schools", cause, nil)
		assert.Equal(t, []string{"Cannot retrieve schools | connection refused"}, reported)
	})
}

func Test_HTTPError_Render(t *testing.T) {
	rr := httptest.NewRecorder()
	BadRequest("Request invalid", nil, map[string]interface{}{"page": "parameter must be an integer"}).
		WithErrorCode(Code400_2).
		Render(rr)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{
		"error": "Request invalid",
		"error_code": "400_2",
		"extras": {"page": "parameter must be an integer"}
	}`, rr.Body.String())
}

func Test_HTTPError_jsonOmitsEmptyFields(t *testing.T) {
	body, err := json.Marshal(NotFound("", data.ErrRecordNotFound, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Resource not found."}`, string(body))
}
