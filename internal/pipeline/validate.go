package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
)

// Validation limits
const (
	bandColumns      = 26 // A:Z
	fixedCells       = 3  // name, link, feedback
	maxCustomColumns = bandColumns - fixedCells
)

// pdfMagic opens every PDF document.
var pdfMagic = []byte("%PDF-")

// Validate checks a submission before any remote call is made.
func Validate(sub Submission) error {
	if sub.Name == "" {
		return apperrors.Validation("name", "candidate name is required")
	}

	if sub.PDFPath == "" {
		return apperrors.Validation("pdfPath", "PDF file is required")
	}
	info, err := os.Stat(sub.PDFPath)
	if err != nil {
		return apperrors.Validation("pdfPath", fmt.Sprintf("PDF file not accessible: %v", err))
	}
	if info.IsDir() {
		return apperrors.Validation("pdfPath", fmt.Sprintf("PDF path %s is a directory", sub.PDFPath))
	}
	if !strings.EqualFold(filepath.Ext(sub.PDFPath), ".pdf") {
		return apperrors.Validation("pdfPath", fmt.Sprintf("%s is not a .pdf file", filepath.Base(sub.PDFPath)))
	}
	if err := checkPDFHeader(sub.PDFPath); err != nil {
		return err
	}

	if len(sub.CustomColumns) > maxCustomColumns {
		return apperrors.Validation("customColumns",
			fmt.Sprintf("custom columns exceed maximum of %d", maxCustomColumns))
	}

	return nil
}

func checkPDFHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Validation("pdfPath", fmt.Sprintf("PDF file not accessible: %v", err))
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return apperrors.Validation("pdfPath", fmt.Sprintf("%s is not a PDF document", filepath.Base(path)))
	}
	return nil
}
