// Package workbook records tracking rows in a local .xlsx workbook.
//
// The spreadsheet ID of an append request is the workbook's file path.
// Cells are written as literal text.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

// bandWidth is the number of columns (A to Z) considered when finding the next row.
const bandWidth = 26

// Appender appends rows to workbooks on disk. Appends are serialized.
type Appender struct {
	mu     sync.Mutex
	logger *slog.Logger
}

// NewAppender creates an Appender.
func NewAppender() *Appender {
	return &Appender{logger: slog.With("component", "workbook")}
}

// Append writes the row to the first row after the last used one.
// The workbook is created with the requested sheet when it does not exist.
func (a *Appender) Append(ctx context.Context, _ *pipeline.Session, req pipeline.AppendRequest) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Record("workbook.append", err)
	}
	if len(req.Row) > bandWidth {
		return apperrors.Record("workbook.append", fmt.Errorf("row has %d cells, band holds %d", len(req.Row), bandWidth))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, created, err := open(req.SpreadsheetID, req.SheetName)
	if err != nil {
		return apperrors.Record("workbook.open", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(req.SheetName)
	if err != nil {
		return apperrors.Record("workbook.sheet", err)
	}
	if idx == -1 {
		return apperrors.Record("workbook.sheet", fmt.Errorf("sheet %q not found in %s", req.SheetName, req.SpreadsheetID))
	}

	rows, err := f.GetRows(req.SheetName)
	if err != nil {
		return apperrors.Record("workbook.read", err)
	}
	next := lastUsedRow(rows) + 1

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return apperrors.Record("workbook.append", err)
	}
	values := make([]interface{}, len(req.Row))
	for i, v := range req.Row {
		values[i] = v
	}
	if err := f.SetSheetRow(req.SheetName, cell, &values); err != nil {
		return apperrors.Record("workbook.append", err)
	}

	if created {
		err = f.SaveAs(req.SpreadsheetID)
	} else {
		err = f.Save()
	}
	if err != nil {
		return apperrors.Record("workbook.save", err)
	}

	a.logger.Debug("Row appended", "path", req.SpreadsheetID, "sheet", req.SheetName, "row", next, "created", created)
	return nil
}

func open(path, sheet string) (*excelize.File, bool, error) {
	if path == "" {
		return nil, false, errors.New("workbook path is empty")
	}
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, err
	}
	f = excelize.NewFile()
	if def := f.GetSheetName(0); def != sheet {
		if err := f.SetSheetName(def, sheet); err != nil {
			f.Close()
			return nil, false, err
		}
	}
	return f, true, nil
}

// lastUsedRow returns the 1-based index of the last row with a non-empty
// cell in the band, or 0 for an empty sheet.
func lastUsedRow(rows [][]string) int {
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) > bandWidth {
			row = row[:bandWidth]
		}
		for _, v := range row {
			if v != "" {
				return i + 1
			}
		}
	}
	return 0
}

var _ pipeline.Appender = (*Appender)(nil)
