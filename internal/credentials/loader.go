// Package credentials loads service-account key material from disk.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
)

// Material is a parsed-but-uninterpreted credential document.
// It is handed to the authenticator as-is.
type Material json.RawMessage

// Loader reads credential material from the configured path.
type Loader struct{}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the document at path.
//
// An unset or unreadable path is a configuration error; content that is not
// a JSON object is a credential format error.
func (l *Loader) Load(ctx context.Context, path string) (Material, error) {
	if path == "" {
		return nil, apperrors.Config(settings.KeyCredentialsPath, "Google credentials not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperrors.Error{
			Sentinel: apperrors.ErrConfig,
			Message:  fmt.Sprintf("cannot read credentials file: %v", err),
			Field:    settings.KeyCredentialsPath,
			Op:       "credentials.read",
			Cause:    err,
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.CredentialFormat(path, err)
	}
	if doc == nil {
		return nil, apperrors.CredentialFormat(path, errors.New("document is null"))
	}

	return Material(data), nil
}
