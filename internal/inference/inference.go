package inference

import (
	"strings"
	"time"
)

// Report is the text a caller submits for classification. Any field may be
// empty.
type Report struct {
	ID             string `json:"id,omitempty" validate:"max=128"`
	Title          string `json:"title" validate:"max=2000"`
	Description    string `json:"description" validate:"max=20000"`
	IncidentType   string `json:"incident_type" validate:"max=200"`
	TranslatedText string `json:"translated_text" validate:"max=20000"`
}

// CombinedText joins the text fields the way feature extraction reads them.
func (r Report) CombinedText() string {
	return strings.TrimSpace(r.Title + " " + r.Description + " " + r.TranslatedText)
}

// Empty reports whether no text field carries content.
func (r Report) Empty() bool {
	return r.CombinedText() == "" && strings.TrimSpace(r.IncidentType) == ""
}

// Timings holds latency measurements for the stages of one classification.
type Timings struct {
	Features  time.Duration
	Inference time.Duration
	Total     time.Duration
}

// Milliseconds returns the timings as float milliseconds keyed by stage, for
// JSON responses and event payloads.
func (t *Timings) Milliseconds() map[string]float64 {
	if t == nil {
		return nil
	}
	return map[string]float64{
		"features":  durationMS(t.Features),
		"inference": durationMS(t.Inference),
		"total":     durationMS(t.Total),
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
