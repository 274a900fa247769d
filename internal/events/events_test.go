package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/inference"
	"github.com/bantay-ai/bantay/internal/triage"
)

func sampleReport() inference.Report {
	return inference.Report{
		ID:             "rpt-42",
		Title:          "Nawawalang bata",
		Description:    "tawagan si Ana sa 0917-555-1234",
		IncidentType:   "Missing Person",
		TranslatedText: "Missing child, call Ana",
	}
}

func TestBuildEventClassified(t *testing.T) {
	risk := triage.DefaultPolicy().Assess("Missing Person", 0.91)
	ev := BuildEvent(BuildParams{
		RequestID: "req-1",
		Report:    sampleReport(),
		Result: &classifier.Result{
			PredictedCategory: "Missing Person",
			PredictedIndex:    13,
			Confidence:        0.91,
			Top5:              []classifier.Ranked{{Category: "Missing Person", Probability: 0.91}},
		},
		Risk:         &risk,
		Language:     "tgl",
		Backend:      "onnxruntime",
		ModelPath:    "/srv/models/incident_classifier.onnx",
		PreviewLevel: PreviewRedacted,
		Timings:      &inference.Timings{Features: time.Millisecond, Inference: 2 * time.Millisecond, Total: 3 * time.Millisecond},
	})

	if ev.Outcome != OutcomeClassified {
		t.Fatalf("expected classified outcome, got %s", ev.Outcome)
	}
	if ev.RequestID != "req-1" || ev.ReportID != "rpt-42" {
		t.Fatalf("unexpected ids: %+v", ev)
	}
	if ev.EventID == "" {
		t.Fatalf("expected event id")
	}
	if ev.Result == nil || ev.Result.PredictedIndex != 13 {
		t.Fatalf("unexpected result summary: %+v", ev.Result)
	}
	if ev.Model.Model != "incident_classifier.onnx" {
		t.Fatalf("model should be reported by base name, got %q", ev.Model.Model)
	}
	if strings.Contains(ev.Preview.Text, "0917-555-1234") || !strings.Contains(ev.Preview.Text, "[PHONE]") {
		t.Fatalf("redacted preview leaked phone number: %q", ev.Preview.Text)
	}
	if ev.TimingMs.Total != 3 {
		t.Fatalf("expected total 3ms, got %v", ev.TimingMs.Total)
	}
}

func TestBuildEventOutcomes(t *testing.T) {
	failed := BuildEvent(BuildParams{Report: sampleReport(), Err: errors.New("model not loaded")})
	if failed.Outcome != OutcomeFailed || failed.Error == "" {
		t.Fatalf("expected failed outcome with error, got %+v", failed)
	}
	if failed.RequestID == "" {
		t.Fatalf("expected generated request id")
	}

	fallback := BuildEvent(BuildParams{
		Report:   sampleReport(),
		Result:   &classifier.Result{PredictedCategory: "Others", PredictedIndex: 14},
		Err:      errors.New("model not loaded"),
		Fallback: true,
	})
	if fallback.Outcome != OutcomeFallback {
		t.Fatalf("expected fallback outcome, got %s", fallback.Outcome)
	}
}

func TestBuildEventPreviewLevels(t *testing.T) {
	none := BuildEvent(BuildParams{Report: sampleReport(), PreviewLevel: PreviewNone})
	if none.Preview.Text != "" || none.Preview.Title != "" {
		t.Fatalf("expected no preview, got %+v", none.Preview)
	}
	full := BuildEvent(BuildParams{Report: sampleReport(), PreviewLevel: PreviewFull})
	if !strings.Contains(full.Preview.Text, "0917-555-1234") {
		t.Fatalf("full preview should keep text, got %q", full.Preview.Text)
	}
	long := sampleReport()
	long.Description = strings.Repeat("a", 1000)
	trimmed := BuildEvent(BuildParams{Report: long, PreviewLevel: PreviewFull})
	if len([]rune(trimmed.Preview.Text)) != previewLimit+3 {
		t.Fatalf("expected truncated preview, got %d runes", len([]rune(trimmed.Preview.Text)))
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	for _, id := range []string{"req-1", "req-2"} {
		if err := sink.Deliver(context.Background(), &Event{Version: "1", RequestID: id, Outcome: OutcomeClassified}); err != nil {
			t.Fatalf("deliver %s: %v", id, err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if decoded.RequestID != "req-1" {
		t.Fatalf("expected request_id req-1, got %s", decoded.RequestID)
	}
}

func TestStdoutSinkWritesLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdoutSink(&buf)
	if err := sink.Deliver(context.Background(), &Event{RequestID: "req-9"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") || !strings.Contains(buf.String(), `"request_id":"req-9"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestBuildSinks(t *testing.T) {
	sinks, err := BuildSinks([]SinkSpec{
		{Type: "stdout"},
		{Type: "file_jsonl", Path: filepath.Join(t.TempDir(), "ev.jsonl")},
		{Type: "webhook", URL: "http://127.0.0.1:1/hook"},
	})
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	if len(sinks) != 3 {
		t.Fatalf("expected 3 sinks, got %d", len(sinks))
	}
	for _, s := range sinks {
		_ = s.Close(context.Background())
	}

	if _, err := BuildSinks([]SinkSpec{{Type: "stdout"}, {Type: "kafka"}}); err == nil {
		t.Fatalf("expected unknown sink type to fail")
	}
	if _, err := BuildSinks([]SinkSpec{{Type: "webhook"}}); err == nil {
		t.Fatalf("expected webhook without url to fail")
	}
}

func TestWebhookSinkHandlesNon2xx(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Test": "1"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	err = sink.Deliver(context.Background(), &Event{EventID: "e1", RequestID: "req-1"})
	if err == nil {
		t.Fatalf("expected non-2xx to return error")
	}
	if !strings.Contains(err.Error(), "status 418") {
		t.Fatalf("error should mention status, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	wait := make(chan struct{})
	sink := &blockingSink{wait: wait}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink})

	ev := &Event{Version: "1", RequestID: "r1"}
	em.Emit(ev)
	em.Emit(ev)
	em.Emit(ev)

	if em.Stats().Dropped == 0 {
		t.Fatalf("expected dropped events when queue is full")
	}

	close(wait)
	em.Close(context.Background())

	em.Emit(ev)
	if got := em.Stats(); got.Dropped+got.Enqueued != 4 {
		t.Fatalf("expected every emit to be counted, got %+v", got)
	}
}

func TestEmitterWebhookIntegration(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil && r.Header.Get("X-Bantay-Event-Id") == ev.EventID {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 2, ShutdownTimeout: time.Second}, []Sink{sink})
	defer em.Close(context.Background())

	for i := 0; i < 5; i++ {
		em.Emit(BuildEvent(BuildParams{Report: sampleReport(), Result: &classifier.Result{PredictedCategory: "Missing Person", PredictedIndex: 13}}))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for webhook events, got %d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	stats := em.Stats()
	if stats.Sinks[sink.Name()].Delivered == 0 {
		t.Fatalf("expected sink delivered counter to increase")
	}
	if stats.Dropped != 0 {
		t.Fatalf("did not expect dropped events, got %d", stats.Dropped)
	}
}

type blockingSink struct {
	wait chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, *Event) error {
	<-s.wait
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func newTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot open listener: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
