// Package pipeline implements the upload-and-track run: load credentials,
// authenticate, upload the PDF, publish its link and append a tracking row.
//
// # Partial failures
//
// Stages run strictly in order and the first failure stops the run. Remote
// effects of completed stages are kept: a failed publish leaves a private
// artifact behind, and a failed append leaves a public but untracked one.
// The run reports failure in both cases and does not clean up.
//
// # Concurrency
//
// An Orchestrator is safe for concurrent use. Concurrent runs are independent
// and are not deduplicated, so repeating a submission creates a second
// artifact and a second row.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
)

// pdfMimeType is the content type every artifact is stored with.
const pdfMimeType = "application/pdf"

// Config holds the collaborators of an Orchestrator.
// Metrics and Observer are optional.
type Config struct {
	Settings  settings.Store
	Loader    CredentialLoader
	Auth      Authenticator
	Uploader  Uploader
	Publisher Publisher
	Appender  Appender
	Metrics   MetricsRecorder
	Observer  Observer
}

// Orchestrator runs submissions through the pipeline.
type Orchestrator struct {
	settings  settings.Store
	loader    CredentialLoader
	auth      Authenticator
	uploader  Uploader
	publisher Publisher
	appender  Appender
	metrics   MetricsRecorder
	observer  Observer

	open func(path string) (io.ReadCloser, error)
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		settings:  cfg.Settings,
		loader:    cfg.Loader,
		auth:      cfg.Auth,
		uploader:  cfg.Uploader,
		publisher: cfg.Publisher,
		appender:  cfg.Appender,
		metrics:   cfg.Metrics,
		observer:  cfg.Observer,
		open:      openFile,
	}
}

// Report is the internal account of one run.
type Report struct {
	ID          string
	Name        string
	State       State // StateDone or StateFailed
	FailedStage State // state the run was in when it failed
	Err         error
	ArtifactID  string
	Link        string
	Row         RowRecord
	Trace       []State
	StartedAt   time.Time
	Duration    time.Duration
}

// Outcome converts the report into the caller-facing result.
func (r *Report) Outcome() Outcome {
	if r.State == StateDone {
		return Outcome{Success: true, Link: r.Link}
	}
	msg := "upload failed"
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return Outcome{Success: false, Error: msg}
}

// Run executes one submission and returns its outcome. It makes exactly one attempt.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) Outcome {
	return o.Execute(ctx, sub).Outcome()
}

// Execute executes one submission and returns the full report.
func (o *Orchestrator) Execute(ctx context.Context, sub Submission) *Report {
	report := &Report{
		ID:        uuid.NewString(),
		Name:      sub.Name,
		StartedAt: time.Now(),
	}
	logger := slog.With("submissionId", report.ID)

	if o.metrics != nil {
		o.metrics.RecordSubmissionStarted(ctx)
	}

	m := newMachine()
	err := o.execute(ctx, sub, m, report, logger)
	if err != nil {
		report.FailedStage = m.current
		report.Err = err
		_ = m.advance(StateFailed)
	}
	report.State = m.current
	report.Trace = m.trace
	report.Duration = time.Since(report.StartedAt)

	o.finish(ctx, report, logger)
	return report
}

func (o *Orchestrator) execute(ctx context.Context, sub Submission, m *machine, report *Report, logger *slog.Logger) error {
	if err := Validate(sub); err != nil {
		return err
	}
	cfg := settings.Load(o.settings)

	if err := m.advance(StateAuthenticating); err != nil {
		return apperrors.Internal("pipeline.transition", err)
	}
	logger.Debug("Loading credentials", "path", cfg.CredentialsPath)
	material, err := o.loader.Load(ctx, cfg.CredentialsPath)
	if err != nil {
		return err
	}
	session, err := o.auth.Authenticate(ctx, material)
	if err != nil {
		return err
	}
	logger.Debug("Authenticated", "subject", session.Subject)

	if err := m.advance(StateUploading); err != nil {
		return apperrors.Internal("pipeline.transition", err)
	}
	artifact, err := o.upload(ctx, session, sub.PDFPath, cfg.DriveFolderID)
	if err != nil {
		return err
	}
	report.ArtifactID = artifact.ID
	logger.Debug("Artifact uploaded", "artifactId", artifact.ID)

	if err := m.advance(StatePublishing); err != nil {
		return apperrors.Internal("pipeline.transition", err)
	}
	link, err := o.publisher.Publish(ctx, session, artifact)
	if err != nil {
		logger.Warn("Artifact uploaded but not published", "artifactId", artifact.ID)
		return err
	}
	report.Link = link
	logger.Debug("Artifact published", "link", link)

	if err := m.advance(StateRecording); err != nil {
		return apperrors.Internal("pipeline.transition", err)
	}
	if cfg.SpreadsheetID == "" {
		logger.Warn("Artifact published but not recorded", "artifactId", artifact.ID, "link", link)
		return apperrors.Config(settings.KeySpreadsheetID, "spreadsheet ID not configured")
	}
	row := BuildRow(sub, link)
	report.Row = row
	if err := o.appender.Append(ctx, session, AppendRequest{
		SpreadsheetID: cfg.SpreadsheetID,
		SheetName:     cfg.SheetName,
		Row:           row,
	}); err != nil {
		logger.Warn("Artifact published but not recorded", "artifactId", artifact.ID, "link", link)
		return err
	}

	if err := m.advance(StateDone); err != nil {
		return apperrors.Internal("pipeline.transition", err)
	}
	return nil
}

// upload opens the PDF and hands it to the uploader. The file is closed on every path.
func (o *Orchestrator) upload(ctx context.Context, session *Session, path, folderID string) (Artifact, error) {
	f, err := o.open(path)
	if err != nil {
		return Artifact{}, apperrors.Upload("pdf.open", err)
	}
	defer f.Close()

	return o.uploader.Upload(ctx, session, UploadRequest{
		DisplayName: filepath.Base(path),
		MimeType:    pdfMimeType,
		FolderID:    folderID,
		Content:     f,
	})
}

func (o *Orchestrator) finish(ctx context.Context, report *Report, logger *slog.Logger) {
	logger = logger.With("state", report.State, "duration", report.Duration)
	if report.State == StateDone {
		logger.Info("Submission recorded", "artifactId", report.ArtifactID, "link", report.Link)
	} else {
		logger = logger.With("stage", report.FailedStage, "error", report.Err)
		if errors.Is(report.Err, apperrors.ErrValidation) {
			logger.Warn("Submission rejected")
		} else {
			logger.Error("Submission failed")
		}
	}

	if o.metrics != nil {
		failed := ""
		if report.State == StateFailed {
			failed = string(report.FailedStage)
		}
		o.metrics.RecordSubmissionFinished(ctx, report.State == StateDone, failed, report.Duration.Seconds())
	}
	if o.observer != nil {
		o.observer.SubmissionFinished(ctx, report)
	}
}

// Ready reports whether a run could get past configuration loading.
func (o *Orchestrator) Ready(ctx context.Context) error {
	cfg := settings.Load(o.settings)
	if cfg.CredentialsPath == "" {
		return apperrors.Config(settings.KeyCredentialsPath, "Google credentials not configured")
	}
	if _, err := os.Stat(cfg.CredentialsPath); err != nil {
		return apperrors.Config(settings.KeyCredentialsPath, "credentials file not readable: "+err.Error())
	}
	return nil
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
