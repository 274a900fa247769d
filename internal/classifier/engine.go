package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bantay-ai/bantay/internal/redact"
)

// Engine owns one loaded model. It is built with NewEngine, loaded once with
// Load at startup, and is safe for concurrent Predict calls afterwards. A
// successful Load is final; a failed Load may be retried after the artifact
// is fixed.
type Engine struct {
	backend   Backend
	modelPath string
	labels    []string

	mu         sync.RWMutex
	model      Model
	attempted  bool
	backendErr error
	loadErr    error
	loadedAt   time.Time

	predictions atomic.Uint64
	failures    atomic.Uint64
}

// NewEngine returns an unloaded engine for the artifact at modelPath.
func NewEngine(backend Backend, modelPath string) *Engine {
	return &Engine{
		backend:   backend,
		modelPath: modelPath,
		labels:    Categories(),
	}
}

// Load initializes the backend and opens the model. It never returns an
// error: failures are logged, kept for Status and LoadErr, and leave the
// engine not ready.
func (e *Engine) Load() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return true
	}
	e.attempted = true

	if e.backend == nil {
		e.backendErr = fmt.Errorf("%w: no backend configured", ErrBackendUnavailable)
		redact.Logf("classifier: %v", e.backendErr)
		return false
	}
	if err := e.backend.Init(); err != nil {
		e.backendErr = fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, e.backend.Name(), err)
		redact.Logf("classifier: %v", e.backendErr)
		return false
	}
	e.backendErr = nil

	model, err := e.open()
	if err != nil {
		e.loadErr = err
		redact.Logf("classifier: %v", err)
		return false
	}

	e.model = model
	e.loadErr = nil
	e.loadedAt = time.Now().UTC()
	in, out := model.Input(), model.Output()
	redact.Logf("classifier: loaded %s backend=%s input=%v/%s output=%v/%s",
		filepath.Base(e.modelPath), e.backend.Name(), in.Shape, in.DType, out.Shape, out.DType)
	return true
}

func (e *Engine) open() (Model, error) {
	if e.modelPath == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrModelNotLoaded)
	}
	if _, err := os.Stat(e.modelPath); err != nil {
		return nil, fmt.Errorf("%w: model file missing at %s: %v", ErrModelNotLoaded, e.modelPath, err)
	}
	model, err := e.backend.Open(e.modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrModelNotLoaded, e.modelPath, err)
	}

	out := model.Output().Shape
	if len(out) == 0 {
		_ = model.Close()
		return nil, fmt.Errorf("%w: model output has no dimensions", ErrModelNotLoaded)
	}
	if width := out[len(out)-1]; width > 0 && width != int64(len(e.labels)) {
		_ = model.Close()
		return nil, fmt.Errorf("%w: model scores %d classes, want %d", ErrModelNotLoaded, width, len(e.labels))
	}
	return model, nil
}

// LoadErr returns the reason the engine is not ready, or nil.
func (e *Engine) LoadErr() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.backendErr != nil {
		return e.backendErr
	}
	if e.model == nil && e.loadErr == nil {
		return ErrModelNotLoaded
	}
	return e.loadErr
}

// Ready reports whether Predict can run.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil && e.backendErr == nil
}

// Predict runs one forward pass and returns the raw output. An unbatched
// vector is promoted to batch size 1.
func (e *Engine) Predict(ctx context.Context, in Tensor) (Tensor, error) {
	out, err := e.predict(ctx, in)
	if err != nil {
		e.failures.Add(1)
		return Tensor{}, err
	}
	return out, nil
}

func (e *Engine) predict(ctx context.Context, in Tensor) (Tensor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.backendErr != nil {
		return Tensor{}, &PredictionError{Op: "predict", Err: e.backendErr}
	}
	if e.model == nil {
		cause := e.loadErr
		if cause == nil {
			cause = ErrModelNotLoaded
		}
		return Tensor{}, &PredictionError{Op: "predict", Err: cause}
	}

	shaped, err := conform(in, e.model.Input().Shape)
	if err != nil {
		return Tensor{}, &PredictionError{Op: "predict", Err: err}
	}
	out, err := e.model.Run(ctx, shaped)
	if err != nil {
		return Tensor{}, &PredictionError{Op: "predict", Err: fmt.Errorf("%s: %w", e.backend.Name(), err)}
	}
	return out, nil
}

// PredictCategory runs Predict and turns the first batch row into a Result.
// With includeDistribution the result carries every probability and the top 5.
func (e *Engine) PredictCategory(ctx context.Context, in Tensor, includeDistribution bool) (*Result, error) {
	out, err := e.Predict(ctx, in)
	if err != nil {
		return nil, err
	}

	logits := firstRow(out)
	if len(logits) != len(e.labels) {
		e.failures.Add(1)
		return nil, &PredictionError{
			Op:  "predict_category",
			Err: &ShapeError{Expected: []int64{1, int64(len(e.labels))}, Actual: out.Shape},
		}
	}
	if !allFinite(logits) {
		e.failures.Add(1)
		return nil, &PredictionError{Op: "predict_category", Err: ErrNonFiniteOutput}
	}

	probs := Softmax(logits)
	res := newResult(e.labels, probs, includeDistribution)
	logPredictionDebug(logits, probs, res)
	e.predictions.Add(1)
	return res, nil
}

// Warmup runs one forward pass over an all-zero input so the first real
// request does not pay allocation costs.
func (e *Engine) Warmup(ctx context.Context) (time.Duration, error) {
	info, ok := e.Info()
	if !ok {
		return 0, &PredictionError{Op: "warmup", Err: e.LoadErr()}
	}
	shape := make([]int64, len(info.Input.Shape))
	for i, d := range info.Input.Shape {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	start := time.Now()
	_, err := e.PredictCategory(ctx, Tensor{Shape: shape, Data: make([]float32, shapeSize(shape))}, false)
	return time.Since(start), err
}

// Close releases the model. The engine reports not ready afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	e.loadErr = fmt.Errorf("%w: engine closed", ErrModelNotLoaded)
	return err
}

// Predictions is the number of successful PredictCategory calls.
func (e *Engine) Predictions() uint64 { return e.predictions.Load() }

// Failures is the number of failed Predict and PredictCategory calls.
func (e *Engine) Failures() uint64 { return e.failures.Load() }
