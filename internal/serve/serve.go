package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	di "github.com/schoolhub/schoolhub-backend/internal/dependencyinjection"
	"github.com/schoolhub/schoolhub-backend/internal/formfields"
	"github.com/schoolhub/schoolhub-backend/internal/lifecycle"
	"github.com/schoolhub/schoolhub-backend/internal/message"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httphandler"
	"github.com/schoolhub/schoolhub-backend/internal/serve/middleware"
)

const ServiceID = "serve"

const (
	DefaultPublicRateLimit    = 20
	DefaultFormFieldsCacheTTL = 5 * time.Minute
)

type HTTPServerInterface interface {
	Run(conf supporthttp.Config)
}

type HTTPServer struct{}

func (h *HTTPServer) Run(conf supporthttp.Config) {
	supporthttp.Run(conf)
}

type ServeOptions struct {
	Environment        string
	GitCommit          string
	Port               int
	Version            string
	MonitorService     monitor.MonitorServiceInterface
	DatabaseDSN        string
	DBPoolConfig       *db.PoolConfig
	dbConnectionPool   db.DBConnectionPool
	Models             *data.Models
	EC256PublicKey     string
	authenticator      auth.AuthenticatorInterface
	CorsAllowedOrigins []string
	CrashTrackerClient crashtracker.CrashTrackerClient
	MessageDispatcher  message.MessageDispatcherInterface
	// BaseURL is the platform URL. Tenant login links are derived from it.
	BaseURL            string
	ProvisionTimeout   time.Duration
	GracePeriod        time.Duration
	DomainMaxRetries   int
	FormFieldsCacheTTL time.Duration
	// PublicRateLimit is the number of requests per minute an IP may send to the public routes.
	PublicRateLimit int

	orchestrator httphandler.ConversionOrchestrator
	sweeper      httphandler.SubscriptionSweeper
	formFields   *formfields.Registry
}

// SetupDependencies uses the serve options to setup the dependencies for the server.
func (opts *ServeOptions) SetupDependencies(ctx context.Context) error {
	// Call crash tracker Recover for recover from unhandled panics
	defer opts.CrashTrackerClient.Recover()
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	dbConnectionPool, err := di.NewDBConnectionPool(ctx, di.DBConnectionPoolOptions{
		DatabaseURL:    opts.DatabaseDSN,
		PoolConfig:     opts.DBPoolConfig,
		MonitorService: opts.MonitorService,
	})
	if err != nil {
		return fmt.Errorf("connecting to the catalog database: %w", err)
	}
	opts.dbConnectionPool = dbConnectionPool

	opts.Models, err = data.NewModels(dbConnectionPool)
	if err != nil {
		return fmt.Errorf("creating models for Serve: %w", err)
	}

	opts.authenticator, err = auth.NewAuthenticator(opts.EC256PublicKey)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	opts.orchestrator, err = di.NewConversionOrchestrator(ctx, di.ConversionOrchestratorOptions{
		Models:             opts.Models,
		MessageDispatcher:  opts.MessageDispatcher,
		CrashTrackerClient: opts.CrashTrackerClient,
		MonitorService:     opts.MonitorService,
		BaseURL:            opts.BaseURL,
		ProvisionTimeout:   opts.ProvisionTimeout,
		GracePeriod:        opts.GracePeriod,
		DomainMaxRetries:   opts.DomainMaxRetries,
	})
	if err != nil {
		return fmt.Errorf("creating conversion orchestrator: %w", err)
	}

	opts.sweeper, err = lifecycle.NewSweeper(opts.Models, opts.MonitorService)
	if err != nil {
		return fmt.Errorf("creating subscription sweeper: %w", err)
	}

	if opts.FormFieldsCacheTTL == 0 {
		opts.FormFieldsCacheTTL = DefaultFormFieldsCacheTTL
	}
	opts.formFields, err = formfields.NewRegistry(opts.Models.FormFields, opts.FormFieldsCacheTTL)
	if err != nil {
		return fmt.Errorf("creating form fields registry: %w", err)
	}

	return nil
}

func Serve(opts ServeOptions, httpServer HTTPServerInterface) error {
	ctx := context.Background()
	err := opts.SetupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("starting dependencies: %w", err)
	}

	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := supporthttp.Config{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		TCPKeepAlive:        time.Minute * 3,
		ShutdownGracePeriod: time.Second * 50,
		ReadTimeout:         time.Second * 5,
		// Approvals provision a schema inside the request.
		WriteTimeout: opts.provisionTimeout() + time.Second*35,
		IdleTimeout:  time.Minute * 2,
		OnStarting: func() {
			log.Info("Starting SchoolHub Server")
			log.Infof("Listening on %s", listenAddr)
		},
		OnStopping: func() {
			log.Info("Closing the database connection...")
			di.DeleteAndCloseInstanceByValue(ctx, opts.dbConnectionPool)

			log.Info("Stopping SchoolHub Server")
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func (opts ServeOptions) provisionTimeout() time.Duration {
	if opts.ProvisionTimeout > 0 {
		return opts.ProvisionTimeout
	}
	return conversion.DefaultProvisionTimeout
}

func handleHTTP(o ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	// Middleware
	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(supporthttp.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	gracePeriod := o.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = conversion.DefaultGracePeriod
	}
	publicRateLimit := o.PublicRateLimit
	if publicRateLimit <= 0 {
		publicRateLimit = DefaultPublicRateLimit
	}

	inquiriesHandler := httphandler.InquiriesHandler{Models: o.Models, FormFields: o.formFields}
	formFieldsHandler := httphandler.FormFieldsHandler{Registry: o.formFields}

	// Public routes
	mux.Get("/health", httphandler.HealthHandler{
		ReleaseID:        o.GitCommit,
		ServiceID:        ServiceID,
		Version:          o.Version,
		DBConnectionPool: o.dbConnectionPool,
		LatestSweep:      o.Models.SubscriptionSweeps,
	}.ServeHTTP)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(publicRateLimit, time.Minute))

		r.Post("/inquiries", inquiriesHandler.PostInquiry)
		r.Get("/form-fields", formFieldsHandler.GetActiveFormFields)
	})

	// Superadmin routes
	mux.Group(func(r chi.Router) {
		r.Use(middleware.AuthenticateMiddleware(o.authenticator))
		r.Use(middleware.RequireCapabilityMiddleware(auth.CapabilitySuperadmin))

		// Not mounted with Route: the public POST /inquiries and GET /form-fields share these prefixes.
		r.Get("/inquiries", inquiriesHandler.GetInquiries)
		r.Get("/inquiries/{id}", inquiriesHandler.GetInquiry)
		r.Patch("/inquiries/{id}/status", inquiriesHandler.PatchInquiryStatus)

		r.Get("/form-fields/all", formFieldsHandler.GetAllFormFields)
		r.Post("/form-fields", formFieldsHandler.PostFormField)
		r.Put("/form-fields/order", formFieldsHandler.PutFormFieldsOrder)
		r.Patch("/form-fields/{id}", formFieldsHandler.PatchFormField)
		r.Delete("/form-fields/{id}", formFieldsHandler.DeleteFormField)

		r.Route("/schools", func(r chi.Router) {
			schoolsHandler := httphandler.SchoolsHandler{Models: o.Models, Orchestrator: o.orchestrator, GracePeriod: gracePeriod}
			r.Post("/", schoolsHandler.PostSchool)
			r.Get("/", schoolsHandler.GetSchools)
			r.Get("/{id}", schoolsHandler.GetSchool)
			r.Delete("/{id}", schoolsHandler.DeleteSchool)
			r.Post("/{id}/suspend", schoolsHandler.SuspendSchool)
			r.Post("/{id}/activate", schoolsHandler.ActivateSchool)
			r.Patch("/{id}/subscription", schoolsHandler.PatchSubscription)
		})

		r.Route("/admins", func(r chi.Router) {
			adminsHandler := httphandler.AdminsHandler{Models: o.Models, Orchestrator: o.orchestrator}
			r.Post("/", adminsHandler.PostAdmin)
			r.Get("/{id}", adminsHandler.GetAdmin)
			r.Post("/{id}/convert", adminsHandler.ConvertAdmin)
			r.Get("/{id}/conversions", adminsHandler.GetAdminConversions)
		})

		r.Get("/conversions/export", httphandler.ExportHandler{Models: o.Models}.ExportConversions)

		r.Route("/sweep/subscriptions", func(r chi.Router) {
			sweepHandler := httphandler.SweepHandler{Models: o.Models, Sweeper: o.sweeper}
			r.Post("/", sweepHandler.PostSubscriptionSweep)
			r.Get("/latest", sweepHandler.GetLatestSubscriptionSweep)
		})

		r.Route("/plans", func(r chi.Router) {
			plansHandler := httphandler.PlansHandler{Models: o.Models}
			r.Get("/", plansHandler.GetPlans)
			r.Post("/", plansHandler.PostPlan)
			r.Delete("/{id}", plansHandler.DeletePlan)
		})
	})

	return mux
}
