package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bantay-ai/bantay/internal/inference"
)

func TestSafeAttributesFiltersReportText(t *testing.T) {
	kvs := map[string]interface{}{
		"report_title":       "Nakaw sa kalye",
		"description":        "drop",
		"translated_text":    "drop",
		"api_key":            "sk-123",
		"reporter_email":     "a@b.c",
		"authorization":      "secret",
		"predicted_category": "Theft",
		"long_string":        string(make([]byte, 600)),
		"confidence":         0.91,
		"batch_size":         3,
		"categories":         []string{"Theft", "Others"},
	}

	attrs := SafeAttributes(kvs)
	keys := map[string]bool{}
	for _, a := range attrs {
		keys[string(a.Key)] = true
	}
	for _, bad := range []string{"report_title", "description", "translated_text", "api_key", "reporter_email", "authorization", "long_string"} {
		assert.False(t, keys[bad], "unexpected unsafe attribute %s", bad)
	}
	for _, good := range []string{"predicted_category", "confidence", "batch_size", "categories"} {
		assert.True(t, keys[good], "missing safe attribute %s", good)
	}
}

func TestNoopProviderRecords(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled)

	assert.NotPanics(t, func() {
		ctx, span := p.StartSpan(context.Background(), "classify", map[string]interface{}{"predicted_category": "Theft"})
		p.RecordClassification(ctx, "classified", "Theft", "onnxruntime", &inference.Timings{Total: time.Millisecond})
		p.RecordClassification(ctx, "failed", "", "onnxruntime", nil)
		p.RecordFailure(ctx, "model_not_loaded")
		span.End()
		p.Shutdown(context.Background())
	})
}

func TestNilProviderIsSafe(t *testing.T) {
	var p *Provider
	assert.NotPanics(t, func() {
		p.RecordFailure(context.Background(), "x")
		p.RecordClassification(context.Background(), "classified", "Theft", "fake", nil)
		_, span := p.StartSpan(context.Background(), "classify", nil)
		span.End()
		p.Shutdown(context.Background())
	})
}

func TestUnsupportedProtocol(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Protocol: "udp"})
	assert.Error(t, err)
}
