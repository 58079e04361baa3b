package gcp

import (
	"context"
	"errors"
	"strings"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets appends tracking rows to a Google spreadsheet.
type Sheets struct {
	opts []option.ClientOption
}

// NewSheets creates a Sheets stage.
func NewSheets(opts ...option.ClientOption) *Sheets {
	return &Sheets{opts: opts}
}

// Append writes the row after the last non-empty row of columns A to Z.
func (s *Sheets) Append(ctx context.Context, session *pipeline.Session, req pipeline.AppendRequest) error {
	if session == nil || session.Client == nil {
		return apperrors.Record("sheets.service", errors.New("no authenticated session"))
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(session.Client)}, s.opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return apperrors.Record("sheets.service", err)
	}

	cells := make([]interface{}, len(req.Row))
	for i, v := range req.Row {
		cells[i] = v
	}

	_, err = svc.Spreadsheets.Values.Append(req.SpreadsheetID, BandRange(req.SheetName), &sheets.ValueRange{
		Values: [][]interface{}{cells},
	}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return apperrors.Record("sheets.values.append", err)
	}
	return nil
}

// BandRange returns the A1 range covering columns A to Z of sheet.
// The sheet name is always quoted so names with spaces or punctuation work.
func BandRange(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!A:Z"
}

var _ pipeline.Appender = (*Sheets)(nil)
