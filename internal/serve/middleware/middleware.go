package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

// RecoverHandler turns a panic into a reported 500. Aborted handlers keep panicking so net/http drops the connection.
func RecoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}

			httperror.InternalError(req.Context(), "", err, nil).Render(rw)
		}()

		next.ServeHTTP(rw, req)
	})
}

// MetricsRequestHandler observes the duration of every request, labeled by route pattern, method and status.
func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			startedAt := time.Now()
			next.ServeHTTP(ww, req)

			labels := monitor.HTTPRequestLabels{
				Status: strconv.Itoa(ww.Status()),
				Route:  utils.GetRoutePattern(req),
				Method: req.Method,
			}
			if err := monitorService.MonitorHTTPRequestDuration(time.Since(startedAt), labels); err != nil {
				log.Ctx(req.Context()).Errorf("Error trying to monitor request time: %s", err)
			}
		})
	}
}

// AuthenticateMiddleware resolves the bearer token into a principal stored in the request context. Every failure is
// a 401; only unexpected ones are logged.
func AuthenticateMiddleware(authenticator auth.AuthenticatorInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			scheme, token, found := strings.Cut(req.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
				httperror.Unauthorized("", nil, nil).WithErrorCode(httperror.Code401_0).Render(rw)
				return
			}

			ctx := req.Context()
			principal, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrExpiredToken) {
					log.Ctx(ctx).Errorf("error validating auth token: %v", err)
				}
				httperror.Unauthorized("", err, nil).WithErrorCode(httperror.Code401_0).Render(rw)
				return
			}

			ctx = auth.SetPrincipalInContext(ctx, principal)
			ctx = log.Set(ctx, log.Ctx(ctx).WithField("principal_id", principal.ID))
			next.ServeHTTP(rw, req.WithContext(ctx))
		})
	}
}

// RequireCapabilityMiddleware rejects requests whose principal cannot exercise capability. It runs after
// AuthenticateMiddleware.
func RequireCapabilityMiddleware(capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ctx := req.Context()

			principal, err := auth.GetPrincipalFromContext(ctx)
			if err != nil {
				httperror.Unauthorized("", err, nil).WithErrorCode(httperror.Code401_0).Render(rw)
				return
			}

			if err = auth.Authorize(principal, capability, time.Now()); err != nil {
				httperror.FromDomainError(ctx, err).Render(rw)
				return
			}

			next.ServeHTTP(rw, req)
		})
	}
}

// RateLimitMiddleware limits each client IP to requestLimit requests per window.
func RateLimitMiddleware(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(rw http.ResponseWriter, req *http.Request) {
			httperror.TooManyRequests("", nil, nil).Render(rw)
		}),
	)
}

// CorsMiddleware allows the superadmin console, served from another origin, to call the API.
func CorsMiddleware(corsAllowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPut, http.MethodPost, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
	})
	return c.Handler
}
