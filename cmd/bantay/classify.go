package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/inference"
	"github.com/bantay-ai/bantay/internal/triage"
)

type reportFlags struct {
	title       string
	description string
	incidentTyp string
	translated  string
	text        string
	file        string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "report title")
	cmd.Flags().StringVar(&f.description, "description", "", "report description")
	cmd.Flags().StringVar(&f.incidentTyp, "incident-type", "", "incident type chosen by the reporter")
	cmd.Flags().StringVar(&f.translated, "translated", "", "translated text, if any")
	cmd.Flags().StringVar(&f.text, "text", "", "single free-text input (used as title and translated text)")
	cmd.Flags().StringVar(&f.file, "file", "", "JSON report file; - reads stdin")
}

// report builds the report from flags. --text takes the legacy single-text
// path; --file reads a JSON report.
func (f *reportFlags) report(stdin io.Reader) (inference.Report, bool, error) {
	if f.file != "" {
		var r inference.Report
		var src io.Reader = stdin
		if f.file != "-" {
			fh, err := os.Open(f.file)
			if err != nil {
				return r, false, err
			}
			defer fh.Close()
			src = fh
		}
		if err := json.NewDecoder(src).Decode(&r); err != nil {
			return r, false, fmt.Errorf("decode report: %w", err)
		}
		return r, false, nil
	}
	if f.text != "" {
		return inference.Report{Title: f.text}, true, nil
	}
	r := inference.Report{
		Title:          f.title,
		Description:    f.description,
		IncidentType:   f.incidentTyp,
		TranslatedText: f.translated,
	}
	if r.Empty() {
		return r, false, errors.New("no report text given (use --title/--description, --text or --file)")
	}
	return r, false, nil
}

func newClassifyCmd(a *app) *cobra.Command {
	var (
		rf      reportFlags
		asJSON  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one incident report",
		Example: `  bantay classify --title "Nawawalang bata" --description "Hindi pa umuuwi since kahapon"
  bantay classify --text "Na-scam ako sa online selling"
  bantay classify --file report.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, single, err := rf.report(cmd.InOrStdin())
			if err != nil {
				return err
			}
			engine := a.loadEngine()
			defer engine.Close()
			if !engine.Ready() {
				return engine.LoadErr()
			}

			res, timings, err := classifyForCLI(cmd.Context(), classifier.NewPipeline(engine), report, single)
			if err != nil {
				return err
			}
			risk := a.cfg.Triage.Assess(res.PredictedCategory, res.Confidence)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*classifier.Result
					Risk     triage.Assessment  `json:"risk"`
					TimingMs map[string]float64 `json:"timing_ms,omitempty"`
				}{res, risk, timings.Milliseconds()})
			}
			renderResult(out, res, risk, !noColor)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func classifyForCLI(ctx context.Context, p *classifier.Pipeline, r inference.Report, single bool) (*classifier.Result, *inference.Timings, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if single {
		res, err := p.ClassifyText(ctx, r.Title, true)
		return res, nil, err
	}
	return p.ClassifyReport(ctx, r, true)
}

func newFeaturesCmd() *cobra.Command {
	var (
		rf     reportFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print the 544-float feature vector of a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, single, err := rf.report(cmd.InOrStdin())
			if err != nil {
				return err
			}
			var vec features.Vector
			if single {
				vec = features.FromText(report.Title)
			} else {
				vec = features.Extract(report.Title, report.Description, report.IncidentType, report.TranslatedText)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(vec.Slice())
			}
			renderBands(out, &vec)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw vector as JSON")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load the model and report engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := a.loadEngine()
			defer engine.Close()
			st := engine.Status()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			renderStatus(out, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories in model output order",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderCategories(cmd.OutOrStdout(), a.cfg.Triage)
			return nil
		},
	}
}
