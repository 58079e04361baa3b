// Package gcp implements the remote pipeline stages on Google Drive and Google Sheets.
package gcp

import (
	"context"
	"net/http"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/credentials"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested for every session: Drive and Sheets read/write.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/spreadsheets",
}

// Authenticator exchanges a service-account key for an OAuth2 session.
type Authenticator struct {
	scopes []string
	// tokenURL overrides the key's token_uri; empty keeps the key's value.
	tokenURL string
	// base is the transport used for the token exchange and API calls.
	base *http.Client
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithTokenURL sends token exchanges to url instead of the key's token_uri.
func WithTokenURL(url string) AuthOption {
	return func(a *Authenticator) { a.tokenURL = url }
}

// WithHTTPClient sets the transport used underneath the OAuth2 layer.
func WithHTTPClient(c *http.Client) AuthOption {
	return func(a *Authenticator) { a.base = c }
}

// NewAuthenticator creates an Authenticator requesting the given scopes
// (Scopes when none are given).
func NewAuthenticator(scopes []string, opts ...AuthOption) *Authenticator {
	if len(scopes) == 0 {
		scopes = Scopes
	}
	a := &Authenticator{scopes: scopes}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate parses the key and performs the token exchange up front, so an
// invalid or revoked key fails here rather than in the upload stage.
func (a *Authenticator) Authenticate(ctx context.Context, material credentials.Material) (*pipeline.Session, error) {
	cfg, err := google.JWTConfigFromJSON(material, a.scopes...)
	if err != nil {
		return nil, apperrors.Auth("google.jwtConfig", err)
	}
	if a.tokenURL != "" {
		cfg.TokenURL = a.tokenURL
	}

	// Token refreshes are not tied to the caller's cancellation.
	tokenCtx := context.WithoutCancel(ctx)
	if a.base != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, a.base)
	}

	src := cfg.TokenSource(tokenCtx)
	tok, err := src.Token()
	if err != nil {
		return nil, apperrors.Auth("oauth2.token", err)
	}

	return &pipeline.Session{
		Client:  oauth2.NewClient(tokenCtx, oauth2.ReuseTokenSource(tok, src)),
		Subject: cfg.Email,
	}, nil
}

var _ pipeline.Authenticator = (*Authenticator)(nil)
