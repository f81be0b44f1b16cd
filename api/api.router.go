package api

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mailguard/ingest/api/middleware"
	"github.com/mailguard/ingest/api/resources"
	_ "github.com/mailguard/ingest/docs"
	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router      *mux.Router
	auth        *middleware.GateMiddleware
	resources   *resources.Resources
	metricsPath string
}

// Options configures the router
type Options struct {
	MetricsPath  string
	MaxImageSize int64
	Version      string
}

func NewRouter(svc *ingestservice.IngestService, gate *auth.Gate, opts Options) *Router {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	r := &Router{
		router: mux.NewRouter(),
		auth:   middleware.NewGateMiddleware(gate),
		resources: resources.NewResources(svc, resources.Options{
			MaxImageSize: opts.MaxImageSize,
			Version:      opts.Version,
		}),
		metricsPath: opts.MetricsPath,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.router.Use(middleware.SecurityHeaders, middleware.Metrics)

	r.router.Handle(r.metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	r.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.resources.Health.Check).Methods(http.MethodGet)
	api.HandleFunc("/images/{id}", r.resources.Images.Get).Methods(http.MethodGet)

	// Device routes
	device := api.PathPrefix("/iot").Subrouter()
	device.Handle("/event", r.auth.RequireDevice(http.HandlerFunc(r.resources.Telemetry.ReportEvent))).Methods(http.MethodPost)
	device.Handle("/report", r.auth.RequireDevice(http.HandlerFunc(r.resources.Telemetry.ReportStatus))).Methods(http.MethodPost)
	device.Handle("/activate", r.auth.RequireDevice(http.HandlerFunc(r.resources.Telemetry.Activate))).Methods(http.MethodPost)
	device.Handle("/upload", r.auth.RequireDevice(http.HandlerFunc(r.resources.Images.Upload))).Methods(http.MethodPost)

	// Device or admin routes
	device.Handle("/status", r.auth.RequireAny(http.HandlerFunc(r.resources.Devices.GetStatus))).Methods(http.MethodGet)
	device.Handle("/events", r.auth.RequireAny(http.HandlerFunc(r.resources.Devices.ListEvents))).Methods(http.MethodGet)
	device.Handle("/upload", r.auth.RequireAny(http.HandlerFunc(r.resources.Images.List))).Methods(http.MethodGet)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.auth.RequireAdmin)
	admin.HandleFunc("/serials", r.resources.Admin.SeedSerial).Methods(http.MethodPost)
	admin.HandleFunc("/keys", r.resources.Admin.IssueKey).Methods(http.MethodPost)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Handler wraps the router with panic recovery, CORS and combined access logging
func (r *Router) Handler(logOutput io.Writer) http.Handler {
	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-API-Key"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(logOutput, h)
}
