package pipeline

import (
	"io"
	"net/http"
)

// Column is one caller-defined (header, value) pair appended after the fixed cells.
type Column struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Submission is the input to one orchestration run.
// CustomColumns keeps the caller's order; that order becomes the row order.
type Submission struct {
	Name          string   `json:"name"`
	PDFPath       string   `json:"pdfPath"`
	Feedback      string   `json:"feedback"`
	CustomColumns []Column `json:"customColumns,omitempty"`
}

// Outcome is the only thing a run reports to its caller.
type Outcome struct {
	Success bool   `json:"success"`
	Link    string `json:"link,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RowRecord is the flat list of cells appended to the tracking sheet:
// name, link, feedback, then the custom values in submission order.
type RowRecord []string

// BuildRow assembles the row for a published submission.
func BuildRow(sub Submission, link string) RowRecord {
	row := make(RowRecord, 0, fixedCells+len(sub.CustomColumns))
	row = append(row, sub.Name, link, sub.Feedback)
	for _, c := range sub.CustomColumns {
		row = append(row, c.Value)
	}
	return row
}

// Session is an authenticated handle shared by the remote stages of one run.
type Session struct {
	Client  *http.Client
	Subject string // identity the session acts as, for logs
}

// UploadRequest describes the artifact to create.
type UploadRequest struct {
	DisplayName string
	MimeType    string
	FolderID    string // empty: storage root
	Content     io.Reader
}

// Artifact is an uploaded file: its opaque ID and the link that views it.
type Artifact struct {
	ID   string
	Link string
}

// AppendRequest addresses one row append.
type AppendRequest struct {
	SpreadsheetID string
	SheetName     string
	Row           RowRecord
}
