package api

import (
	"net/http"

	"github.com/iMokhles/candidate-pdf-uploader/internal/health"
	"github.com/iMokhles/candidate-pdf-uploader/internal/observability"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Runner        Runner
	Settings      settings.Store
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Runner, cfg.Settings, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Probes are unauthenticated.
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	auth := requireBearer(cfg.APIKey)
	mux.Handle("POST /v1/submissions", auth(requireJSON(http.HandlerFunc(handler.CreateSubmission))))
	mux.Handle("GET /v1/settings", auth(http.HandlerFunc(handler.GetSettings)))
	mux.Handle("PUT /v1/settings", auth(requireJSON(http.HandlerFunc(handler.PutSettings))))
	mux.Handle("PUT /v1/settings/credentials", auth(requireJSON(http.HandlerFunc(handler.PutCredentials))))

	return recoverPanics(observe(cfg.Metrics)(mux))
}
