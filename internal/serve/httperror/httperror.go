package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"
)

// HTTPError is the JSON body of every non-2xx response.
type HTTPError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"error"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Extras     map[string]any `json:"extras,omitempty"`
	// Err is kept for errors.Is/As and for the crash tracker, never rendered.
	Err error `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) WithErrorCode(code string) *HTTPError {
	e.ErrorCode = code
	return e
}

func (e *HTTPError) Render(w http.ResponseWriter) {
	httpjson.RenderStatus(w, e.StatusCode, e, httpjson.JSON)
}

// ReportErrorFunc receives the unexpected errors behind 500 responses.
type ReportErrorFunc func(ctx context.Context, err error, msg string)

var reportError ReportErrorFunc = logError

func logError(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.Ctx(ctx).WithStack(err).Errorf("%+v", err)
}

// SetDefaultReportErrorFunc replaces the logger used to report internal errors, usually with the crash tracker.
func SetDefaultReportErrorFunc(fn ReportErrorFunc) {
	reportError = fn
}

var defaultMessages = map[int]string{
	http.StatusBadRequest:          "The request was invalid in some way.",
	http.StatusUnauthorized:        "Not authorized.",
	http.StatusForbidden:           "You don't have permission to perform this action.",
	http.StatusNotFound:            "Resource not found.",
	http.StatusConflict:            "The resource already exists.",
	http.StatusTooManyRequests:     "Too many requests, please slow down.",
	http.StatusInternalServerError: "An internal error occurred while processing this request.",
}

// NewHTTPError returns originalErr itself when it already is an HTTPError with the same status and nothing new is
// added.
func NewHTTPError(statusCode int, msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	if msg == "" && len(extras) == 0 {
		var hErr *HTTPError
		if errors.As(originalErr, &hErr) && hErr.StatusCode == statusCode {
			return hErr
		}
	}

	return &HTTPError{
		StatusCode: statusCode,
		Message:    msg,
		Extras:     extras,
		Err:        originalErr,
	}
}

func withDefaultMessage(statusCode int, msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	if msg == "" {
		msg = defaultMessages[statusCode]
	}
	return NewHTTPError(statusCode, msg, originalErr, extras)
}

func BadRequest(msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	return withDefaultMessage(http.StatusBadRequest, msg, originalErr, extras)
}

func Unauthorized(msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	return withDefaultMessage(http.StatusUnauthorized, msg, originalErr, extras)
}

func Forbidden(msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	return withDefaultMessage(http.StatusForbidden, msg, originalErr, extras)
}

func NotFound(msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	return withDefaultMessage(http.StatusNotFound, msg, originalErr, extras)
}

func Conflict(msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	return withDefaultMessage(http.StatusConflict, msg, originalErr, extras)
}

func TooManyRequests(msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	return withDefaultMessage(http.StatusTooManyRequests, msg, originalErr, extras).WithErrorCode(Code429_0)
}

// InternalError reports originalErr before building the response, so handlers only need to render it.
func InternalError(ctx context.Context, msg string, originalErr error, extras map[string]interface{}) *HTTPError {
	hErr := withDefaultMessage(http.StatusInternalServerError, msg, originalErr, extras)
	reportError(ctx, originalErr, hErr.Message)
	if hErr.ErrorCode == "" {
		hErr.ErrorCode = Code500_0
	}
	return hErr
}
