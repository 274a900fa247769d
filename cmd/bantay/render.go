package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/triage"
)

var levelStyles = map[triage.Level]color.Style{
	triage.LevelHigh:   color.New(color.FgRed, color.OpBold),
	triage.LevelMedium: color.New(color.FgYellow),
	triage.LevelLow:    color.New(color.FgGreen),
}

func paint(useColor bool, style color.Style, s string) string {
	if !useColor {
		return s
	}
	return style.Sprint(s)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	return table
}

func renderResult(w io.Writer, res *classifier.Result, risk triage.Assessment, useColor bool) {
	fmt.Fprintf(w, "Category:   %s\n", paint(useColor, color.New(color.OpBold), res.PredictedCategory))
	fmt.Fprintf(w, "Confidence: %s\n", res.ConfidencePercentage)
	fmt.Fprintf(w, "Risk:       %s (score %.3f)\n", paint(useColor, levelStyles[risk.Level], string(risk.Level)), risk.Score)
	fmt.Fprintln(w)

	table := newTable(w, "#", "Category", "Probability")
	for i, r := range res.Top5 {
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.Category,
			fmt.Sprintf("%.2f%%", r.Probability*100),
		})
	}
	table.Render()

	if len(risk.Recommendations) > 0 {
		fmt.Fprintln(w)
		for _, rec := range risk.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}

func renderBands(w io.Writer, vec *features.Vector) {
	table := newTable(w, "Band", "Offset", "Width", "Non-zero", "Sum")
	for _, b := range features.Bands {
		vals := vec.Band(b)
		nonZero := lo.CountBy(vals, func(v float32) bool { return v != 0 })
		sum := lo.Sum(vals)
		table.Append([]string{
			b.Name,
			strconv.Itoa(b.Offset),
			strconv.Itoa(b.Width),
			strconv.Itoa(nonZero),
			strconv.FormatFloat(float64(sum), 'f', 4, 32),
		})
	}
	table.Render()
}

func renderStatus(w io.Writer, st classifier.Status) {
	ready := paint(true, color.New(color.FgGreen, color.OpBold), "ready")
	if !st.ModelReady {
		ready = paint(true, color.New(color.FgRed, color.OpBold), "not ready")
	}
	fmt.Fprintf(w, "Model:      %s\n", ready)
	fmt.Fprintf(w, "Backend:    %s (available: %t)\n", st.Backend, st.RuntimeAvailable)
	fmt.Fprintf(w, "Categories: %d\n", st.CategoriesCount)
	if st.ModelInfo != nil {
		fmt.Fprintf(w, "Artifact:   %s\n", st.ModelInfo.ModelPath)
		fmt.Fprintf(w, "Input:      %s %v %s\n", st.ModelInfo.Input.Name, st.ModelInfo.Input.Shape, st.ModelInfo.Input.DType)
		fmt.Fprintf(w, "Output:     %s %v %s\n", st.ModelInfo.Output.Name, st.ModelInfo.Output.Shape, st.ModelInfo.Output.DType)
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", st.LastError)
	}
}

func renderCategories(w io.Writer, policy triage.Policy) {
	table := newTable(w, "Index", "Category", "Risk tier")
	for i, c := range classifier.Categories() {
		tier := triage.LevelLow
		switch {
		case lo.Contains(policy.HighRisk, c):
			tier = triage.LevelHigh
		case lo.Contains(policy.MediumRisk, c):
			tier = triage.LevelMedium
		}
		table.Append([]string{strconv.Itoa(i), c, string(tier)})
	}
	table.Render()
}
