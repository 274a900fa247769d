// Package events publishes one event per classification so the reporting
// backend and dashboards can follow what the classifier decided.
package events

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/inference"
	"github.com/bantay-ai/bantay/internal/redact"
	"github.com/bantay-ai/bantay/internal/triage"
)

// Outcome is how a classification request ended.
type Outcome string

const (
	OutcomeClassified Outcome = "classified"
	OutcomeFallback   Outcome = "fallback"
	OutcomeFailed     Outcome = "failed"
)

// Text preview levels.
const (
	PreviewNone     = "none"
	PreviewRedacted = "redacted"
	PreviewFull     = "full"
)

const previewLimit = 280

type ResultSummary struct {
	PredictedCategory string              `json:"predicted_category"`
	PredictedIndex    int                 `json:"predicted_index"`
	Confidence        float64             `json:"confidence"`
	Top5              []classifier.Ranked `json:"top_5,omitempty"`
}

type ModelMeta struct {
	Backend string `json:"backend"`
	Model   string `json:"model,omitempty"`
}

type TextPreview struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

type TimingMs struct {
	Features  float64 `json:"features"`
	Inference float64 `json:"inference"`
	Total     float64 `json:"total"`
}

// Event is the canonical classification event.
type Event struct {
	Version      string             `json:"version"`
	EventID      string             `json:"event_id"`
	Timestamp    time.Time          `json:"timestamp"`
	RequestID    string             `json:"request_id"`
	KeyID        string             `json:"key_id,omitempty"`
	ReportID     string             `json:"report_id,omitempty"`
	IncidentType string             `json:"incident_type,omitempty"`
	Outcome      Outcome            `json:"outcome"`
	Result       *ResultSummary     `json:"result,omitempty"`
	Risk         *triage.Assessment `json:"risk,omitempty"`
	Language     string             `json:"language,omitempty"`
	Model        ModelMeta          `json:"model"`
	Error        string             `json:"error,omitempty"`
	Preview      TextPreview        `json:"preview"`
	TimingMs     TimingMs           `json:"timing_ms"`
}

// BuildParams collects what a classification handler knows about one request.
type BuildParams struct {
	RequestID    string
	KeyID        string // fingerprint of the caller's API key, if any
	Report       inference.Report
	Result       *classifier.Result
	Risk         *triage.Assessment
	Err          error
	Fallback     bool
	Language     string
	Backend      string
	ModelPath    string
	PreviewLevel string
	Timings      *inference.Timings
}

// BuildEvent assembles the event for one classification.
func BuildEvent(p BuildParams) *Event {
	ev := &Event{
		Version:      "1",
		EventID:      uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		RequestID:    ensureRequestID(p.RequestID),
		KeyID:        p.KeyID,
		ReportID:     p.Report.ID,
		IncidentType: p.Report.IncidentType,
		Outcome:      deriveOutcome(p),
		Risk:         p.Risk,
		Language:     p.Language,
		Model:        ModelMeta{Backend: p.Backend},
		Preview:      buildPreview(p.PreviewLevel, p.Report),
	}
	if p.ModelPath != "" {
		ev.Model.Model = filepath.Base(p.ModelPath)
	}
	if p.Result != nil {
		ev.Result = &ResultSummary{
			PredictedCategory: p.Result.PredictedCategory,
			PredictedIndex:    p.Result.PredictedIndex,
			Confidence:        p.Result.Confidence,
			Top5:              append([]classifier.Ranked(nil), p.Result.Top5...),
		}
	}
	if p.Err != nil {
		ev.Error = redact.String(p.Err.Error())
	}
	if p.Timings != nil {
		ms := p.Timings.Milliseconds()
		ev.TimingMs = TimingMs{Features: ms["features"], Inference: ms["inference"], Total: ms["total"]}
	}
	return ev
}

func deriveOutcome(p BuildParams) Outcome {
	switch {
	case p.Fallback:
		return OutcomeFallback
	case p.Err != nil || p.Result == nil:
		return OutcomeFailed
	default:
		return OutcomeClassified
	}
}

func ensureRequestID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func buildPreview(level string, r inference.Report) TextPreview {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case PreviewFull:
		return TextPreview{Title: truncate(r.Title, previewLimit), Text: truncate(r.CombinedText(), previewLimit)}
	case PreviewNone:
		return TextPreview{}
	default:
		return TextPreview{Title: redact.Preview(r.Title, previewLimit), Text: redact.Preview(r.CombinedText(), previewLimit)}
	}
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
