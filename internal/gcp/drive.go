package gcp

import (
	"context"
	"errors"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive uploads artifacts to Google Drive and publishes them.
type Drive struct {
	opts []option.ClientOption
}

// NewDrive creates a Drive stage. opts are appended to the per-session
// client options, which is how tests point it at a local endpoint.
func NewDrive(opts ...option.ClientOption) *Drive {
	return &Drive{opts: opts}
}

func (d *Drive) service(ctx context.Context, session *pipeline.Session) (*drive.Service, error) {
	if session == nil || session.Client == nil {
		return nil, errors.New("no authenticated session")
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(session.Client)}, d.opts...)
	return drive.NewService(ctx, opts...)
}

// Upload stores the content as a new private file and returns its ID and view link.
func (d *Drive) Upload(ctx context.Context, session *pipeline.Session, req pipeline.UploadRequest) (pipeline.Artifact, error) {
	svc, err := d.service(ctx, session)
	if err != nil {
		return pipeline.Artifact{}, apperrors.Upload("drive.service", err)
	}

	meta := &drive.File{
		Name:     req.DisplayName,
		MimeType: req.MimeType,
	}
	if req.FolderID != "" {
		meta.Parents = []string{req.FolderID}
	}

	f, err := svc.Files.Create(meta).
		Media(req.Content, googleapi.ContentType(req.MimeType)).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return pipeline.Artifact{}, apperrors.Upload("drive.files.create", err)
	}
	if f.Id == "" {
		return pipeline.Artifact{}, apperrors.Upload("drive.files.create", errors.New("response carried no file ID"))
	}
	return pipeline.Artifact{ID: f.Id, Link: f.WebViewLink}, nil
}

// Publish grants anyone-with-the-link read access and returns the view link
// captured at upload. An artifact without a link is left private.
func (d *Drive) Publish(ctx context.Context, session *pipeline.Session, artifact pipeline.Artifact) (string, error) {
	if artifact.Link == "" {
		return "", apperrors.Permission("drive.permissions.create", errors.New("file has no view link"))
	}
	svc, err := d.service(ctx, session)
	if err != nil {
		return "", apperrors.Permission("drive.service", err)
	}

	_, err = svc.Permissions.Create(artifact.ID, &drive.Permission{
		Role: "reader",
		Type: "anyone",
	}).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", apperrors.Permission("drive.permissions.create", err)
	}
	return artifact.Link, nil
}

var (
	_ pipeline.Uploader  = (*Drive)(nil)
	_ pipeline.Publisher = (*Drive)(nil)
)
