package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/credentials"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
)

const testLink = "https://drive.google.com/file/d/art-1/view?usp=drivesdk"

// recorder is a fake for every stage that logs calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []string

	loadErr    error
	authErr    error
	uploadErr  error
	publishErr error
	appendErr  error

	uploaded   []UploadRequest
	uploadBody []string
	published  []Artifact
	appended   []AppendRequest
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Load(ctx context.Context, path string) (credentials.Material, error) {
	r.record("load")
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return credentials.Material(`{"type":"service_account"}`), nil
}

func (r *recorder) Authenticate(ctx context.Context, m credentials.Material) (*Session, error) {
	r.record("auth")
	if r.authErr != nil {
		return nil, r.authErr
	}
	return &Session{Subject: "bot@example.iam.gserviceaccount.com"}, nil
}

func (r *recorder) Upload(ctx context.Context, s *Session, req UploadRequest) (Artifact, error) {
	r.record("upload")
	body, _ := io.ReadAll(req.Content)
	r.mu.Lock()
	r.uploaded = append(r.uploaded, req)
	r.uploadBody = append(r.uploadBody, string(body))
	r.mu.Unlock()
	if r.uploadErr != nil {
		return Artifact{}, r.uploadErr
	}
	return Artifact{ID: "art-1", Link: testLink}, nil
}

func (r *recorder) Publish(ctx context.Context, s *Session, artifact Artifact) (string, error) {
	r.record("publish")
	r.mu.Lock()
	r.published = append(r.published, artifact)
	r.mu.Unlock()
	if r.publishErr != nil {
		return "", r.publishErr
	}
	return artifact.Link, nil
}

func (r *recorder) Append(ctx context.Context, s *Session, req AppendRequest) error {
	r.record("append")
	r.mu.Lock()
	r.appended = append(r.appended, req)
	r.mu.Unlock()
	return r.appendErr
}

type fakeMetrics struct {
	mu       sync.Mutex
	started  int
	finished []string
}

func (m *fakeMetrics) RecordSubmissionStarted(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *fakeMetrics) RecordSubmissionFinished(ctx context.Context, success bool, failedStage string, d float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, fmt.Sprintf("%v/%s", success, failedStage))
}

type fakeObserver struct {
	reports []*Report
}

func (o *fakeObserver) SubmissionFinished(ctx context.Context, r *Report) {
	o.reports = append(o.reports, r)
}

func writePDF(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.7 test"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func fullSettings() *settings.MemoryStore {
	return settings.NewMemoryStore(map[string]string{
		settings.KeyCredentialsPath: "/keys/sa.json",
		settings.KeySpreadsheetID:   "S1",
		settings.KeySheetName:       "Tab1",
		settings.KeyDriveFolderID:   "F1",
	})
}

func newTestOrchestrator(store settings.Store, r *recorder) *Orchestrator {
	return New(Config{
		Settings:  store,
		Loader:    r,
		Auth:      r,
		Uploader:  r,
		Publisher: r,
		Appender:  r,
	})
}

func TestRun_Success(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	o := newTestOrchestrator(fullSettings(), r)
	pdf := writePDF(t)

	out := o.Run(context.Background(), Submission{
		Name:          "Alice",
		PDFPath:       pdf,
		Feedback:      "Good",
		CustomColumns: []Column{{Name: "Score", Value: "9"}},
	})

	if diff := cmp.Diff(Outcome{Success: true, Link: testLink}, out); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"load", "auth", "upload", "publish", "append"}, r.Calls()); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}

	if len(r.appended) != 1 {
		t.Fatalf("expected 1 append, got %d", len(r.appended))
	}
	want := AppendRequest{
		SpreadsheetID: "S1",
		SheetName:     "Tab1",
		Row:           RowRecord{"Alice", testLink, "Good", "9"},
	}
	if diff := cmp.Diff(want, r.appended[0]); diff != "" {
		t.Errorf("append mismatch (-want +got):\n%s", diff)
	}

	up := r.uploaded[0]
	if up.DisplayName != "a.pdf" {
		t.Errorf("DisplayName = %q, want a.pdf", up.DisplayName)
	}
	if up.FolderID != "F1" {
		t.Errorf("FolderID = %q, want F1", up.FolderID)
	}
	if up.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q", up.MimeType)
	}
	if diff := cmp.Diff([]Artifact{{ID: "art-1", Link: testLink}}, r.published); diff != "" {
		t.Errorf("published artifacts mismatch (-want +got):\n%s", diff)
	}
	if r.uploadBody[0] != "%PDF-1.7 test" {
		t.Errorf("uploaded body = %q", r.uploadBody[0])
	}
}

func TestRun_DefaultSheetAndNoFolder(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	store := settings.NewMemoryStore(map[string]string{
		settings.KeyCredentialsPath: "/keys/sa.json",
		settings.KeySpreadsheetID:   "S1",
	})

	out := newTestOrchestrator(store, r).Run(context.Background(), Submission{Name: "Bob", PDFPath: writePDF(t)})
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if r.uploaded[0].FolderID != "" {
		t.Errorf("FolderID = %q, want empty", r.uploaded[0].FolderID)
	}
	if r.appended[0].SheetName != settings.DefaultSheetName {
		t.Errorf("SheetName = %q, want %q", r.appended[0].SheetName, settings.DefaultSheetName)
	}
	if diff := cmp.Diff(RowRecord{"Bob", testLink, ""}, r.appended[0].Row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ValidationMakesNoCalls(t *testing.T) {
	t.Parallel()
	pdf := writePDF(t)
	dir := t.TempDir()
	keyFile := writeFile(t, dir, "sa.json", `{"type":"service_account","private_key":"SECRET"}`)
	fakePDF := writeFile(t, dir, "fake.pdf", `{"type":"service_account"}`)
	emptyPDF := writeFile(t, dir, "empty.pdf", "")
	tests := []struct {
		name   string
		sub    Submission
		errMsg string
	}{
		{"empty name", Submission{PDFPath: pdf}, "candidate name is required"},
		{"no pdf", Submission{Name: "Alice"}, "PDF file is required"},
		{"missing pdf", Submission{Name: "Alice", PDFPath: filepath.Join(t.TempDir(), "gone.pdf")}, "not accessible"},
		{"directory", Submission{Name: "Alice", PDFPath: t.TempDir()}, "is a directory"},
		{"credentials file", Submission{Name: "Alice", PDFPath: keyFile}, "sa.json is not a .pdf file"},
		{"renamed non-pdf", Submission{Name: "Alice", PDFPath: fakePDF}, "fake.pdf is not a PDF document"},
		{"empty pdf", Submission{Name: "Alice", PDFPath: emptyPDF}, "empty.pdf is not a PDF document"},
		{"too many columns", Submission{Name: "Alice", PDFPath: pdf, CustomColumns: make([]Column, 24)}, "custom columns exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &recorder{}
			report := newTestOrchestrator(fullSettings(), r).Execute(context.Background(), tt.sub)

			out := report.Outcome()
			if out.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(out.Error, tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", out.Error, tt.errMsg)
			}
			if !errors.Is(report.Err, apperrors.ErrValidation) {
				t.Errorf("expected validation error, got %v", report.Err)
			}
			if report.FailedStage != StateIdle {
				t.Errorf("FailedStage = %s, want %s", report.FailedStage, StateIdle)
			}
			if calls := r.Calls(); len(calls) != 0 {
				t.Errorf("expected no stage calls, got %v", calls)
			}
		})
	}
}

func TestRun_AcceptsUppercaseExtensionAndBlankName(t *testing.T) {
	t.Parallel()
	pdf := writeFile(t, t.TempDir(), "CV.PDF", "%PDF-1.4\n")

	r := &recorder{}
	out := newTestOrchestrator(fullSettings(), r).Run(context.Background(), Submission{Name: "  ", PDFPath: pdf})
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}
	if got := r.uploadBody[0]; got != "%PDF-1.4\n" {
		t.Errorf("uploaded body = %q", got)
	}
}

func TestRun_ShortCircuits(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		setup     func(r *recorder)
		wantCalls []string
		stage     State
		sentinel  error
	}{
		{
			name:      "credentials",
			setup:     func(r *recorder) { r.loadErr = apperrors.Config("credentialsPath", "Google credentials not configured") },
			wantCalls: []string{"load"},
			stage:     StateAuthenticating,
			sentinel:  apperrors.ErrConfig,
		},
		{
			name:      "auth",
			setup:     func(r *recorder) { r.authErr = apperrors.Auth("oauth2.token", errors.New("invalid_grant")) },
			wantCalls: []string{"load", "auth"},
			stage:     StateAuthenticating,
			sentinel:  apperrors.ErrAuth,
		},
		{
			name:      "upload",
			setup:     func(r *recorder) { r.uploadErr = apperrors.Upload("drive.files.create", errors.New("503")) },
			wantCalls: []string{"load", "auth", "upload"},
			stage:     StateUploading,
			sentinel:  apperrors.ErrUpload,
		},
		{
			name:      "publish",
			setup:     func(r *recorder) { r.publishErr = apperrors.Permission("drive.permissions.create", errors.New("403")) },
			wantCalls: []string{"load", "auth", "upload", "publish"},
			stage:     StatePublishing,
			sentinel:  apperrors.ErrPermission,
		},
		{
			name:      "append",
			setup:     func(r *recorder) { r.appendErr = apperrors.Record("sheets.values.append", errors.New("404")) },
			wantCalls: []string{"load", "auth", "upload", "publish", "append"},
			stage:     StateRecording,
			sentinel:  apperrors.ErrRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &recorder{}
			tt.setup(r)
			report := newTestOrchestrator(fullSettings(), r).Execute(context.Background(),
				Submission{Name: "Alice", PDFPath: writePDF(t)})

			if report.State != StateFailed {
				t.Errorf("State = %s, want failed", report.State)
			}
			if report.FailedStage != tt.stage {
				t.Errorf("FailedStage = %s, want %s", report.FailedStage, tt.stage)
			}
			if !errors.Is(report.Err, tt.sentinel) {
				t.Errorf("Err = %v, want %v", report.Err, tt.sentinel)
			}
			if diff := cmp.Diff(tt.wantCalls, r.Calls()); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
			out := report.Outcome()
			if out.Success || out.Error == "" || out.Link != "" {
				t.Errorf("unexpected outcome %+v", out)
			}
		})
	}
}

func TestRun_UnsetSpreadsheetLeavesArtifactPublic(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	store := settings.NewMemoryStore(map[string]string{
		settings.KeyCredentialsPath: "/keys/sa.json",
	})

	report := newTestOrchestrator(store, r).Execute(context.Background(),
		Submission{Name: "Alice", PDFPath: writePDF(t)})

	if report.FailedStage != StateRecording {
		t.Errorf("FailedStage = %s, want %s", report.FailedStage, StateRecording)
	}
	if !errors.Is(report.Err, apperrors.ErrConfig) {
		t.Errorf("Err = %v, want config error", report.Err)
	}
	if diff := cmp.Diff([]string{"load", "auth", "upload", "publish"}, r.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if report.ArtifactID != "art-1" || report.Link != testLink {
		t.Errorf("expected published artifact in report, got id=%q link=%q", report.ArtifactID, report.Link)
	}
	if out := report.Outcome(); out.Success {
		t.Error("expected failure outcome")
	}
}

func TestRun_StateTrace(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	report := newTestOrchestrator(fullSettings(), r).Execute(context.Background(),
		Submission{Name: "Alice", PDFPath: writePDF(t)})

	want := []State{StateIdle, StateAuthenticating, StateUploading, StatePublishing, StateRecording, StateDone}
	if diff := cmp.Diff(want, report.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}

	r = &recorder{publishErr: errors.New("denied")}
	report = newTestOrchestrator(fullSettings(), r).Execute(context.Background(),
		Submission{Name: "Alice", PDFPath: writePDF(t)})
	want = []State{StateIdle, StateAuthenticating, StateUploading, StatePublishing, StateFailed}
	if diff := cmp.Diff(want, report.Trace); diff != "" {
		t.Errorf("failure trace mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_RowPreservesColumnOrder(t *testing.T) {
	t.Parallel()
	pdf := writePDF(t)

	for n := 0; n <= maxCustomColumns; n++ {
		cols := make([]Column, n)
		want := RowRecord{"Alice", testLink, "ok"}
		for i := range cols {
			// Names sort opposite to insertion order.
			cols[i] = Column{Name: fmt.Sprintf("z%02d", n-i), Value: fmt.Sprintf("v%d", i)}
			want = append(want, fmt.Sprintf("v%d", i))
		}

		r := &recorder{}
		out := newTestOrchestrator(fullSettings(), r).Run(context.Background(),
			Submission{Name: "Alice", PDFPath: pdf, Feedback: "ok", CustomColumns: cols})
		if !out.Success {
			t.Fatalf("n=%d: unexpected failure %q", n, out.Error)
		}

		row := r.appended[0].Row
		if len(row) != 3+n {
			t.Errorf("n=%d: row has %d cells, want %d", n, len(row), 3+n)
		}
		if diff := cmp.Diff(want, row); diff != "" {
			t.Errorf("n=%d: row mismatch (-want +got):\n%s", n, diff)
		}
	}
}

type trackingFile struct {
	io.Reader
	closed bool
}

func (f *trackingFile) Close() error {
	f.closed = true
	return nil
}

func TestRun_ClosesFileOnUploadFailure(t *testing.T) {
	t.Parallel()
	r := &recorder{uploadErr: apperrors.Upload("drive.files.create", errors.New("reset"))}
	o := newTestOrchestrator(fullSettings(), r)

	tf := &trackingFile{Reader: strings.NewReader("pdf")}
	o.open = func(string) (io.ReadCloser, error) { return tf, nil }

	out := o.Run(context.Background(), Submission{Name: "Alice", PDFPath: writePDF(t)})
	if out.Success {
		t.Fatal("expected failure")
	}
	if !tf.closed {
		t.Error("expected PDF handle to be closed after failed upload")
	}
}

func TestRun_OpenFailureIsUploadError(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	o := newTestOrchestrator(fullSettings(), r)
	o.open = func(string) (io.ReadCloser, error) { return nil, errors.New("permission denied") }

	report := o.Execute(context.Background(), Submission{Name: "Alice", PDFPath: writePDF(t)})
	if !errors.Is(report.Err, apperrors.ErrUpload) {
		t.Errorf("Err = %v, want upload error", report.Err)
	}
	if diff := cmp.Diff([]string{"load", "auth"}, r.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_MetricsAndObserver(t *testing.T) {
	t.Parallel()
	r := &recorder{publishErr: errors.New("denied")}
	metrics := &fakeMetrics{}
	observer := &fakeObserver{}
	o := New(Config{
		Settings: fullSettings(), Loader: r, Auth: r, Uploader: r, Publisher: r, Appender: r,
		Metrics: metrics, Observer: observer,
	})

	o.Run(context.Background(), Submission{Name: "Alice", PDFPath: writePDF(t)})

	if metrics.started != 1 {
		t.Errorf("started = %d, want 1", metrics.started)
	}
	if diff := cmp.Diff([]string{"false/publishing"}, metrics.finished); diff != "" {
		t.Errorf("finished mismatch (-want +got):\n%s", diff)
	}
	if len(observer.reports) != 1 {
		t.Fatalf("expected 1 observed report, got %d", len(observer.reports))
	}
	if observer.reports[0].ArtifactID != "art-1" {
		t.Errorf("observed ArtifactID = %q", observer.reports[0].ArtifactID)
	}
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	o := newTestOrchestrator(fullSettings(), r)
	pdf := writePDF(t)

	const runs = 8
	ids := make([]string, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = o.Execute(context.Background(), Submission{Name: "Alice", PDFPath: pdf}).ID
		}()
	}
	wg.Wait()

	if len(r.appended) != runs {
		t.Errorf("expected %d appends (no deduplication), got %d", runs, len(r.appended))
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Errorf("duplicate or empty submission id %q", id)
		}
		seen[id] = true
	}
}

func TestReady(t *testing.T) {
	t.Parallel()
	key := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(key, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"configured", key, false},
		{"unset", "", true},
		{"missing", key + ".missing", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := settings.NewMemoryStore(map[string]string{settings.KeyCredentialsPath: tt.path})
			err := New(Config{Settings: store}).Ready(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Ready() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
