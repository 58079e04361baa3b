// Package app assembles the upload pipeline from process configuration.
// Both the HTTP service and the CLI are built on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/config"
	"github.com/iMokhles/candidate-pdf-uploader/internal/credentials"
	"github.com/iMokhles/candidate-pdf-uploader/internal/gcp"
	"github.com/iMokhles/candidate-pdf-uploader/internal/health"
	"github.com/iMokhles/candidate-pdf-uploader/internal/notify"
	"github.com/iMokhles/candidate-pdf-uploader/internal/observability"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
	"github.com/iMokhles/candidate-pdf-uploader/internal/workbook"
	"google.golang.org/api/option"
)

// Options adjusts how the pipeline is assembled. The zero value talks to
// the production Google endpoints without metrics.
type Options struct {
	Metrics       *observability.Metrics
	GoogleOptions []option.ClientOption // applied to the Drive and Sheets clients
	AuthOptions   []gcp.AuthOption
}

// App is an assembled pipeline and the resources it owns.
type App struct {
	Settings     *settings.FileStore
	Orchestrator *pipeline.Orchestrator
	Notifier     *notify.Notifier // nil when no callback URL is configured
	Health       *health.Checker
}

// New builds the pipeline described by cfg.
func New(cfg *config.ServiceConfig, opts Options) (*App, error) {
	store, err := settings.OpenFile(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}

	appender, err := newAppender(cfg.RecordBackend, opts.GoogleOptions)
	if err != nil {
		return nil, err
	}

	a := &App{Settings: store}
	drive := gcp.NewDrive(opts.GoogleOptions...)
	pcfg := pipeline.Config{
		Settings:  store,
		Loader:    credentials.NewLoader(),
		Auth:      gcp.NewAuthenticator(nil, opts.AuthOptions...),
		Uploader:  drive,
		Publisher: drive,
		Appender:  appender,
	}

	// A nil *Metrics must not become a non-nil interface.
	var notifyMetrics notify.MetricsRecorder
	if opts.Metrics != nil {
		pcfg.Metrics = opts.Metrics
		notifyMetrics = opts.Metrics
	}

	if cfg.CallbackURL != "" {
		a.Notifier = notify.New(notify.Config{
			URL:        cfg.CallbackURL,
			SigningKey: cfg.CallbackKey,
			Timeout:    cfg.CallbackTimeout,
			BufferSize: cfg.CallbackBufferSize,
		}, notifyMetrics)
		pcfg.Observer = a.Notifier
	}

	a.Orchestrator = pipeline.New(pcfg)
	a.Health = health.NewChecker(a.Orchestrator).
		AddCheck("settings", health.ReadinessFunc(func(context.Context) error { return store.Ready() }))

	slog.Info("Pipeline assembled",
		"settingsFile", store.Path(),
		"recordBackend", cfg.RecordBackend,
		"notifications", a.Notifier != nil,
	)
	return a, nil
}

// Close drains pending notifications within the context deadline.
func (a *App) Close(ctx context.Context) error {
	if a.Notifier == nil {
		return nil
	}
	err := a.Notifier.Close(ctx)
	stats := a.Notifier.Stats()
	slog.Info("Notifier stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)
	return err
}

func newAppender(backend string, googleOpts []option.ClientOption) (pipeline.Appender, error) {
	switch backend {
	case "", config.BackendSheets:
		return gcp.NewSheets(googleOpts...), nil
	case config.BackendWorkbook:
		return workbook.NewAppender(), nil
	default:
		return nil, apperrors.Config("RECORD_BACKEND",
			fmt.Sprintf("unknown record backend %q (want %s or %s)", backend, config.BackendSheets, config.BackendWorkbook))
	}
}
