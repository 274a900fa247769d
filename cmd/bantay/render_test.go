package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/triage"
)

func TestRenderResultPlain(t *testing.T) {
	res := &classifier.Result{
		PredictedCategory:    "Missing Person",
		PredictedIndex:       13,
		Confidence:           0.91,
		ConfidencePercentage: "91.00%",
		Top5: []classifier.Ranked{
			{Category: "Missing Person", Probability: 0.91},
			{Category: "Others", Probability: 0.05},
		},
	}
	risk := triage.DefaultPolicy().Assess(res.PredictedCategory, res.Confidence)

	var buf bytes.Buffer
	renderResult(&buf, res, risk, false)
	out := buf.String()
	assert.Contains(t, out, "Category:   Missing Person")
	assert.Contains(t, out, "Risk:       High")
	assert.Contains(t, out, "91.00%")
	assert.Contains(t, out, "5.00%")
	assert.Contains(t, out, "Immediate attention required")
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderCategoriesTiers(t *testing.T) {
	var buf bytes.Buffer
	renderCategories(&buf, triage.DefaultPolicy())
	lines := strings.Split(buf.String(), "\n")

	find := func(cat string) string {
		for _, l := range lines {
			if strings.Contains(l, cat) {
				return l
			}
		}
		return ""
	}
	assert.Contains(t, find("Scam/Fraud"), "High")
	assert.Contains(t, find("Alarm and Scandal"), "Medium")
	assert.Contains(t, find("Lost Items"), "Low")
}

func TestRenderBandsListsEveryBand(t *testing.T) {
	vec := features.Extract("Nawalan ng cellphone", "ninakaw sa jeep", "Theft", "")
	var buf bytes.Buffer
	renderBands(&buf, &vec)
	for _, b := range features.Bands {
		assert.Contains(t, buf.String(), b.Name)
	}
}

func TestReportFlags(t *testing.T) {
	rf := reportFlags{text: "Na-scam ako"}
	r, single, err := rf.report(nil)
	require.NoError(t, err)
	assert.True(t, single)
	assert.Equal(t, "Na-scam ako", r.Title)

	rf = reportFlags{}
	_, _, err = rf.report(nil)
	require.Error(t, err)

	rf = reportFlags{file: "-"}
	r, single, err = rf.report(strings.NewReader(`{"title":"Aksidente","incident_type":"Accident"}`))
	require.NoError(t, err)
	assert.False(t, single)
	assert.Equal(t, "Accident", r.IncidentType)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"description":"nag-away sa kanto"}`), 0o600))
	rf = reportFlags{file: path}
	r, _, err = rf.report(nil)
	require.NoError(t, err)
	assert.Equal(t, "nag-away sa kanto", r.Description)
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "classify", "features", "status", "categories"})
}
