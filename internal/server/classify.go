package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/events"
	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/inference"
	"github.com/bantay-ai/bantay/internal/redact"
	"github.com/bantay-ai/bantay/internal/triage"
)

type classifyOptions struct {
	IncludeDistribution bool `json:"include_distribution"`
	IncludeRisk         bool `json:"include_risk"`
}

type classifyRequest struct {
	inference.Report
	classifyOptions
	RequestID string `json:"request_id,omitempty" validate:"max=128"`
}

type classifyResponse struct {
	RequestID string `json:"request_id"`
	ReportID  string `json:"report_id,omitempty"`
	*classifier.Result
	Fallback bool               `json:"fallback"`
	Language string             `json:"language,omitempty"`
	Risk     *triage.Assessment `json:"risk,omitempty"`
	TimingMs map[string]float64 `json:"timing_ms,omitempty"`
}

type batchRequest struct {
	Reports []inference.Report `json:"reports" validate:"required,min=1,dive"`
	classifyOptions
	RequestID string `json:"request_id,omitempty" validate:"max=128"`
}

type batchItem struct {
	*classifyResponse
	Error string `json:"error,omitempty"`
}

type batchResponse struct {
	RequestID string         `json:"request_id"`
	Results   []batchItem    `json:"results"`
	Failed    int            `json:"failed"`
	Summary   triage.Summary `json:"summary"`
}

type featuresResponse struct {
	Dimension int                `json:"dimension"`
	Features  []float32          `json:"features"`
	Bands     []features.Band    `json:"bands"`
	Language  string             `json:"language,omitempty"`
	TimingMs  map[string]float64 `json:"timing_ms"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	var report inference.Report
	if !s.decodeBody(w, r, &report) {
		return
	}
	t := &inference.Timings{}
	vec, elapsed := extractTimed(report)
	t.Features, t.Total = elapsed, elapsed
	writeJSON(w, http.StatusOK, featuresResponse{
		Dimension: features.Dim,
		Features:  vec.Slice(),
		Bands:     features.Bands,
		Language:  detectLanguage(report.CombinedText()),
		TimingMs:  t.Milliseconds(),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	requestID := requestIDOf(req.RequestID, r)

	resp, err := s.classifyOne(r.Context(), requestID, req.Report, req.classifyOptions)
	if err != nil {
		status, typ := statusFor(err)
		writeError(w, status, redact.String(err.Error()), typ)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if limit := s.cfg.Server.MaxBatchReports; len(req.Reports) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch carries %d reports, limit is %d", len(req.Reports), limit), "invalid_request_error")
		return
	}
	if !s.engine.Ready() && !s.cfg.Fallback.Enabled {
		err := s.engine.LoadErr()
		status, typ := statusFor(err)
		writeError(w, status, redact.String(err.Error()), typ)
		return
	}
	requestID := requestIDOf(req.RequestID, r)

	out := batchResponse{RequestID: requestID, Results: make([]batchItem, 0, len(req.Reports))}
	var items []triage.Item
	for i, report := range req.Reports {
		resp, err := s.classifyOne(r.Context(), fmt.Sprintf("%s-%d", requestID, i), report, req.classifyOptions)
		if err != nil {
			out.Failed++
			out.Results = append(out.Results, batchItem{Error: redact.String(err.Error())})
			continue
		}
		out.Results = append(out.Results, batchItem{classifyResponse: resp})
		items = append(items, triage.Item{
			ReportID:     reportKey(report, i),
			IncidentType: report.IncidentType,
			Category:     resp.PredictedCategory,
			Confidence:   resp.Confidence,
		})
	}
	out.Summary = s.cfg.Triage.Summarize(items)
	writeJSON(w, http.StatusOK, out)
}

// classifyOne runs the pipeline for one report, applies the configured
// fallback, records telemetry and emits the classification event. The error
// is non-nil only when no result can be returned.
func (s *Server) classifyOne(ctx context.Context, requestID string, report inference.Report, opts classifyOptions) (*classifyResponse, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "bantay.classify", map[string]interface{}{
		"bantay.request_id":    requestID,
		"bantay.incident_type": report.IncidentType,
	})
	defer span.End()

	res, timings, err := s.pipeline.ClassifyReport(ctx, report, opts.IncludeDistribution)
	language := detectLanguage(report.CombinedText())
	backend := s.engine.Status().Backend

	fallback := false
	if err != nil && s.canFallback(err) {
		redact.Logf("classify %s: using fallback category: %v", requestID, err)
		res = fallbackResult(s.cfg.Fallback.Category, s.cfg.Fallback.Confidence)
		fallback = true
	}

	params := events.BuildParams{
		RequestID:    requestID,
		Report:       report,
		Result:       res,
		Err:          err,
		Fallback:     fallback,
		Language:     language,
		Backend:      backend,
		PreviewLevel: s.cfg.Logging.TextPreview,
		Timings:      timings,
	}
	if info, ok := s.engine.Info(); ok {
		params.ModelPath = info.ModelPath
	}
	if c, ok := callerFrom(ctx); ok {
		params.KeyID = c.KeyID
	}

	if res == nil {
		_, reason := statusFor(err)
		s.telemetry.RecordFailure(ctx, reason)
		s.telemetry.RecordClassification(ctx, string(events.OutcomeFailed), "", backend, timings)
		span.RecordError(err)
		s.emitter.Emit(events.BuildEvent(params))
		return nil, err
	}

	resp := &classifyResponse{
		RequestID: requestID,
		ReportID:  report.ID,
		Result:    res,
		Fallback:  fallback,
		Language:  language,
		TimingMs:  timings.Milliseconds(),
	}
	if opts.IncludeRisk {
		a := s.cfg.Triage.Assess(res.PredictedCategory, res.Confidence)
		resp.Risk = &a
		params.Risk = &a
	}

	outcome := events.OutcomeClassified
	if fallback {
		outcome = events.OutcomeFallback
	}
	s.telemetry.RecordClassification(ctx, string(outcome), res.PredictedCategory, backend, timings)
	s.emitter.Emit(events.BuildEvent(params))
	return resp, nil
}

// canFallback reports whether a configured fallback may stand in for err.
// Cancelled requests never get a fabricated label.
func (s *Server) canFallback(err error) bool {
	if !s.cfg.Fallback.Enabled {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func fallbackResult(category string, confidence float64) *classifier.Result {
	return &classifier.Result{
		PredictedCategory:    category,
		PredictedIndex:       classifier.CategoryIndex(category),
		Confidence:           confidence,
		ConfidencePercentage: fmt.Sprintf("%.2f%%", confidence*100),
	}
}

func extractTimed(r inference.Report) (features.Vector, time.Duration) {
	start := time.Now()
	vec := features.Extract(r.Title, r.Description, r.IncidentType, r.TranslatedText)
	return vec, time.Since(start)
}

// detectLanguage returns the ISO 639-1 code of the dominant language, or ""
// for empty or unrecognized text.
func detectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6391()
}

func requestIDOf(fromBody string, r *http.Request) string {
	candidates := []string{fromBody, r.Header.Get("X-Request-Id")}
	if id, ok := lo.Find(candidates, func(c string) bool { return strings.TrimSpace(c) != "" }); ok {
		return strings.TrimSpace(id)
	}
	return uuid.NewString()
}

func reportKey(r inference.Report, i int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("%d", i)
}
