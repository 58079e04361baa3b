// Package settings holds the operator settings the upload pipeline reads:
// where the credentials live and which spreadsheet, tab and folder to target.
package settings

import (
	"fmt"
	"slices"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
)

// Recognized keys.
const (
	KeyCredentialsPath = "credentialsPath"
	KeySpreadsheetID   = "spreadsheetId"
	KeySheetName       = "sheetName"
	KeyDriveFolderID   = "driveFolderId"
)

// DefaultSheetName is used whenever no sheet name has been saved.
const DefaultSheetName = "Sheet1"

var knownKeys = []string{KeyCredentialsPath, KeySpreadsheetID, KeySheetName, KeyDriveFolderID}

// Store is a key-value settings store. Get reports whether the key is present.
// Setting an empty value removes the key. Update writes several keys at once:
// either all of them are stored or none are.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Update(values map[string]string) error
}

// Settings is a snapshot of the store. Empty strings mean "not configured",
// except SheetName which always carries a usable default.
type Settings struct {
	CredentialsPath string `json:"credentialsPath,omitempty" yaml:"credentialsPath,omitempty"`
	SpreadsheetID   string `json:"spreadsheetId,omitempty" yaml:"spreadsheetId,omitempty"`
	SheetName       string `json:"sheetName" yaml:"sheetName"`
	DriveFolderID   string `json:"driveFolderId,omitempty" yaml:"driveFolderId,omitempty"`
}

// Load reads a snapshot of all settings from the store.
func Load(s Store) Settings {
	get := func(key string) string {
		v, _ := s.Get(key)
		return v
	}
	out := Settings{
		CredentialsPath: get(KeyCredentialsPath),
		SpreadsheetID:   get(KeySpreadsheetID),
		SheetName:       get(KeySheetName),
		DriveFolderID:   get(KeyDriveFolderID),
	}
	if out.SheetName == "" {
		out.SheetName = DefaultSheetName
	}
	return out
}

// Save writes the spreadsheet, sheet and folder settings.
// The credentials path is left untouched; use SetCredentialsPath for it.
func Save(s Store, in Settings) error {
	sheet := in.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return s.Update(map[string]string{
		KeySpreadsheetID: in.SpreadsheetID,
		KeySheetName:     sheet,
		KeyDriveFolderID: in.DriveFolderID,
	})
}

// SetCredentialsPath records the location of the service-account key file.
func SetCredentialsPath(s Store, path string) error {
	if path == "" {
		return apperrors.Validation(KeyCredentialsPath, "credentials path is required")
	}
	return s.Set(KeyCredentialsPath, path)
}

// apply merges values into dst, deleting keys whose value is empty.
func apply(dst, values map[string]string) {
	for k, v := range values {
		if v == "" {
			delete(dst, k)
		} else {
			dst[k] = v
		}
	}
}

func checkKey(key string) error {
	if !slices.Contains(knownKeys, key) {
		return apperrors.Validation("key", fmt.Sprintf("unknown setting %q", key))
	}
	return nil
}
