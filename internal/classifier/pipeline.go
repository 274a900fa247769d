package classifier

import (
	"context"
	"time"

	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/inference"
)

// Pipeline turns report text into a Result: feature extraction followed by
// PredictCategory on the engine.
type Pipeline struct {
	engine *Engine
}

// NewPipeline returns a pipeline classifying with engine.
func NewPipeline(engine *Engine) *Pipeline {
	return &Pipeline{engine: engine}
}

// Engine returns the underlying engine.
func (p *Pipeline) Engine() *Engine { return p.engine }

// ClassifyReport extracts features from r and classifies them. Timings are
// filled even when inference fails.
func (p *Pipeline) ClassifyReport(ctx context.Context, r inference.Report, includeDistribution bool) (*Result, *inference.Timings, error) {
	timings := &inference.Timings{}
	start := time.Now()

	vec := features.Extract(r.Title, r.Description, r.IncidentType, r.TranslatedText)
	timings.Features = time.Since(start)

	inferStart := time.Now()
	res, err := p.engine.PredictCategory(ctx, VectorTensor(vec.Slice()), includeDistribution)
	timings.Inference = time.Since(inferStart)
	timings.Total = time.Since(start)
	if err != nil {
		return nil, timings, err
	}
	return res, timings, nil
}

// ClassifyText classifies a single free-text field.
func (p *Pipeline) ClassifyText(ctx context.Context, text string, includeDistribution bool) (*Result, error) {
	vec := features.FromText(text)
	return p.engine.PredictCategory(ctx, VectorTensor(vec.Slice()), includeDistribution)
}
