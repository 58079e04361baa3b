// uploader submits candidate PDFs from the command line and manages the
// settings the upload pipeline reads.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/iMokhles/candidate-pdf-uploader/internal/app"
	"github.com/iMokhles/candidate-pdf-uploader/internal/config"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errSubmissionFailed signals a failed run whose outcome was already printed.
var errSubmissionFailed = errors.New("submission failed")

// cli holds the values bound to persistent flags.
type cli struct {
	settingsFile string
	backend      string
	verbose      bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "uploader",
		Short: "Upload candidate PDFs to Drive and track them in a spreadsheet",
		Long: `uploader runs the candidate submission pipeline from the command line.

Each submission uploads the PDF to Google Drive, makes it readable by anyone
with the link and appends a row to the tracking spreadsheet.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if c.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.settingsFile, "settings", config.GetEnv("SETTINGS_FILE", config.DefaultSettingsFile()), "Settings file")
	root.PersistentFlags().StringVar(&c.backend, "backend", config.GetEnv("RECORD_BACKEND", config.BackendSheets), "Record backend: sheets or workbook")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	root.AddCommand(c.submitCmd(), c.configCmd())
	return root
}

func (c *cli) serviceConfig() *config.ServiceConfig {
	cfg := config.LoadServiceConfig()
	cfg.SettingsFile = c.settingsFile
	cfg.RecordBackend = c.backend
	return cfg
}

func (c *cli) submitCmd() *cobra.Command {
	var (
		sub     pipeline.Submission
		columns []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload a candidate PDF and record it",
		Example: `  uploader submit --name "Alice" --pdf ./alice_cv.pdf --feedback "Strong" \
      --column Score=9 --column Source=Referral`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseColumns(columns)
			if err != nil {
				return err
			}
			sub.CustomColumns = parsed

			a, err := app.New(c.serviceConfig(), app.Options{})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = a.Close(ctx)
			}()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			outcome := a.Orchestrator.Run(ctx, sub)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return err
			}
			if !outcome.Success {
				return errSubmissionFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sub.Name, "name", "", "Candidate name")
	cmd.Flags().StringVar(&sub.PDFPath, "pdf", "", "Path to the candidate's PDF")
	cmd.Flags().StringVar(&sub.Feedback, "feedback", "", "Free-text feedback")
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Extra column as Name=Value (repeatable, order kept)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Deadline for the whole run")
	return cmd
}

// parseColumns turns Name=Value flags into columns, keeping their order.
// Values may contain '='; only the first one separates name and value.
func parseColumns(raw []string) ([]pipeline.Column, error) {
	out := make([]pipeline.Column, 0, len(raw))
	for _, r := range raw {
		name, value, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --column %q: want Name=Value", r)
		}
		out = append(out, pipeline.Column{Name: name, Value: value})
	}
	return out, nil
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change pipeline settings",
		Long: `Show or change the settings the pipeline reads on every run.

Keys:
  credentialsPath  service-account key file
  spreadsheetId    tracking spreadsheet (a .xlsx path with --backend workbook)
  sheetName        tab to append to (default Sheet1)
  driveFolderId    Drive folder for uploads (default: Drive root)`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.OpenFile(c.settingsFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(settings.Load(store))
		},
	}

	set := &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Set a setting; omitting VALUE clears it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.OpenFile(c.settingsFile)
			if err != nil {
				return err
			}
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			if err := store.Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated in %s\n", args[0], store.Path())
			return nil
		},
	}

	credentials := &cobra.Command{
		Use:   "credentials PATH",
		Short: "Point the pipeline at a service-account key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.OpenFile(c.settingsFile)
			if err != nil {
				return err
			}
			if err := settings.SetCredentialsPath(store, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credentialsPath updated in %s\n", store.Path())
			return nil
		},
	}

	cmd.AddCommand(show, set, credentials)
	return cmd
}
