package pipeline

import (
	"context"

	"github.com/iMokhles/candidate-pdf-uploader/internal/credentials"
)

// CredentialLoader resolves credential material from a configured path.
type CredentialLoader interface {
	Load(ctx context.Context, path string) (credentials.Material, error)
}

// Authenticator exchanges credential material for a scoped session.
type Authenticator interface {
	Authenticate(ctx context.Context, material credentials.Material) (*Session, error)
}

// Uploader stores the artifact remotely. The created artifact is private;
// its view link only works once it has been published.
type Uploader interface {
	Upload(ctx context.Context, session *Session, req UploadRequest) (Artifact, error)
}

// Publisher makes an artifact readable by anyone holding its link and returns that link.
// Only the sharing change happens here.
type Publisher interface {
	Publish(ctx context.Context, session *Session, artifact Artifact) (string, error)
}

// Appender appends one row to the target sheet without touching existing rows.
type Appender interface {
	Append(ctx context.Context, session *Session, req AppendRequest) error
}

// MetricsRecorder is an optional sink for run metrics.
type MetricsRecorder interface {
	RecordSubmissionStarted(ctx context.Context)
	RecordSubmissionFinished(ctx context.Context, success bool, failedStage string, durationSeconds float64)
}

// Observer is notified once per finished run.
type Observer interface {
	SubmissionFinished(ctx context.Context, report *Report)
}
