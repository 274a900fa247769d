package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/inference"
)

type fakeBackend struct {
	initErr error
	openErr error
	model   *fakeModel
	opened  int
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Init() error  { return b.initErr }

func (b *fakeBackend) Open(string) (Model, error) {
	b.opened++
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.model, nil
}

type fakeModel struct {
	in     TensorInfo
	out    TensorInfo
	logits func(Tensor) []float32
	runErr error

	mu     sync.Mutex
	lastIn Tensor
	runs   int
	closed bool
}

func newFakeModel(logits func(Tensor) []float32) *fakeModel {
	return &fakeModel{
		in:     TensorInfo{Name: "features", Shape: []int64{-1, features.Dim}, DType: DTypeFloat32},
		out:    TensorInfo{Name: "logits", Shape: []int64{-1, int64(CategoryCount)}, DType: DTypeFloat32},
		logits: logits,
	}
}

func (m *fakeModel) Input() TensorInfo  { return m.in }
func (m *fakeModel) Output() TensorInfo { return m.out }

func (m *fakeModel) Run(ctx context.Context, in Tensor) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	m.mu.Lock()
	m.lastIn = in
	m.runs++
	m.mu.Unlock()
	if m.runErr != nil {
		return Tensor{}, m.runErr
	}
	return Tensor{Shape: []int64{1, int64(CategoryCount)}, Data: m.logits(in)}, nil
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

func constLogits(v float32) func(Tensor) []float32 {
	return func(Tensor) []float32 {
		out := make([]float32, CategoryCount)
		for i := range out {
			out[i] = v
		}
		return out
	}
}

// peakLogits favours idx strongly and spreads the rest by index.
func peakLogits(idx int) func(Tensor) []float32 {
	return func(Tensor) []float32 {
		out := make([]float32, CategoryCount)
		for i := range out {
			out[i] = float32(i) * 0.1
		}
		out[idx] = 5
		return out
	}
}

func writeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incident_classifier.onnx")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0o600))
	return path
}

func loadedEngine(t *testing.T, model *fakeModel) (*Engine, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{model: model}
	e := NewEngine(backend, writeModelFile(t))
	require.True(t, e.Load())
	return e, backend
}

func zeroVector() Tensor {
	return VectorTensor(make([]float32, features.Dim))
}

func TestPredictBeforeLoad(t *testing.T) {
	e := NewEngine(&fakeBackend{model: newFakeModel(constLogits(0))}, writeModelFile(t))

	_, err := e.Predict(context.Background(), zeroVector())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	var pe *PredictionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "predict", pe.Op)

	st := e.Status()
	assert.False(t, st.ModelReady)
	assert.False(t, st.ModelLoaded)
	assert.False(t, st.RuntimeAvailable)
	assert.Equal(t, CategoryCount, st.CategoriesCount)
	assert.Equal(t, Categories(), st.Categories)
	assert.Nil(t, st.ModelInfo)
	assert.Equal(t, uint64(1), e.Failures())
}

func TestLoadBackendUnavailable(t *testing.T) {
	backend := &fakeBackend{initErr: errors.New("libonnxruntime.so not found"), model: newFakeModel(constLogits(0))}
	e := NewEngine(backend, writeModelFile(t))

	assert.False(t, e.Load())
	assert.Equal(t, 0, backend.opened)

	_, err := e.PredictCategory(context.Background(), zeroVector(), false)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrModelNotLoaded)

	st := e.Status()
	assert.False(t, st.RuntimeAvailable)
	assert.False(t, st.ModelReady)
	assert.Contains(t, st.LastError, "not found")
}

func TestLoadMissingArtifact(t *testing.T) {
	backend := &fakeBackend{model: newFakeModel(constLogits(0))}
	e := NewEngine(backend, filepath.Join(t.TempDir(), "missing.onnx"))

	assert.False(t, e.Load())
	assert.Equal(t, 0, backend.opened)
	assert.ErrorIs(t, e.LoadErr(), ErrModelNotLoaded)

	st := e.Status()
	assert.True(t, st.RuntimeAvailable)
	assert.False(t, st.ModelLoaded)
	assert.False(t, st.ModelReady)
	assert.Contains(t, st.LastError, "missing")

	_, err := e.Predict(context.Background(), zeroVector())
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestLoadMalformedArtifact(t *testing.T) {
	backend := &fakeBackend{openErr: errors.New("protobuf parsing failed")}
	e := NewEngine(backend, writeModelFile(t))

	assert.False(t, e.Load())
	assert.ErrorIs(t, e.LoadErr(), ErrModelNotLoaded)
	assert.Contains(t, e.LoadErr().Error(), "protobuf parsing failed")
}

func TestLoadRejectsWrongClassCount(t *testing.T) {
	model := newFakeModel(constLogits(0))
	model.out.Shape = []int64{1, 10}
	e := NewEngine(&fakeBackend{model: model}, writeModelFile(t))

	assert.False(t, e.Load())
	assert.True(t, model.closed)
	assert.ErrorIs(t, e.LoadErr(), ErrModelNotLoaded)
}

func TestLoadIsFinal(t *testing.T) {
	e, backend := loadedEngine(t, newFakeModel(constLogits(0)))
	assert.True(t, e.Load())
	assert.Equal(t, 1, backend.opened)
	assert.NoError(t, e.LoadErr())
	assert.True(t, e.Ready())
}

func TestPredictPromotesUnbatchedVector(t *testing.T) {
	model := newFakeModel(constLogits(0))
	e, _ := loadedEngine(t, model)

	out, err := e.Predict(context.Background(), zeroVector())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, int64(CategoryCount)}, out.Shape)
	assert.Equal(t, []int64{1, features.Dim}, model.lastIn.Shape)
}

func TestPredictShapeMismatch(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(constLogits(0)))

	_, err := e.Predict(context.Background(), VectorTensor(make([]float32, features.Dim-1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []int64{-1, features.Dim}, se.Expected)
	assert.Equal(t, []int64{1, features.Dim - 1}, se.Actual)
}

func TestConform(t *testing.T) {
	cases := []struct {
		name    string
		in      Tensor
		want    []int64
		shape   []int64
		wantErr bool
	}{
		{name: "unbatched promoted", in: VectorTensor(make([]float32, 4)), want: []int64{-1, 4}, shape: []int64{1, 4}},
		{name: "batched passes", in: Tensor{Shape: []int64{2, 4}, Data: make([]float32, 8)}, want: []int64{-1, 4}, shape: []int64{2, 4}},
		{name: "fixed batch", in: VectorTensor(make([]float32, 4)), want: []int64{1, 4}, shape: []int64{1, 4}},
		{name: "missing shape uses data length", in: Tensor{Data: make([]float32, 4)}, want: []int64{1, 4}, shape: []int64{1, 4}},
		{name: "width mismatch", in: VectorTensor(make([]float32, 3)), want: []int64{1, 4}, wantErr: true},
		{name: "rank mismatch", in: Tensor{Shape: []int64{1, 1, 4}, Data: make([]float32, 4)}, want: []int64{4}, wantErr: true},
		{name: "data shorter than shape", in: Tensor{Shape: []int64{1, 4}, Data: make([]float32, 2)}, want: []int64{-1, 4}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := conform(tc.in, tc.want)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrShapeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shape, got.Shape)
		})
	}
}

func TestPredictCategoryWithDistribution(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(peakLogits(7)))

	res, err := e.PredictCategory(context.Background(), zeroVector(), true)
	require.NoError(t, err)
	assert.Equal(t, "Animal Incident", res.PredictedCategory)
	assert.Equal(t, 7, res.PredictedIndex)
	assert.Equal(t, fmt.Sprintf("%.2f%%", res.Confidence*100), res.ConfidencePercentage)

	require.Len(t, res.AllProbabilities, CategoryCount)
	sum := 0.0
	for _, p := range res.AllProbabilities {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	require.Len(t, res.Top5, 5)
	assert.Equal(t, res.PredictedCategory, res.Top5[0].Category)
	assert.Equal(t, res.Confidence, res.Top5[0].Probability)
	for i := 1; i < len(res.Top5); i++ {
		assert.GreaterOrEqual(t, res.Top5[i-1].Probability, res.Top5[i].Probability)
	}
	// Remaining logits grow with index, so the runners-up are the last labels.
	assert.Equal(t, "Others", res.Top5[1].Category)
	assert.Equal(t, "Missing Person", res.Top5[2].Category)
	assert.Equal(t, uint64(1), e.Predictions())
}

func TestPredictCategoryWithoutDistribution(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(peakLogits(2)))

	res, err := e.PredictCategory(context.Background(), zeroVector(), false)
	require.NoError(t, err)
	assert.Equal(t, "Accident", res.PredictedCategory)
	assert.Nil(t, res.AllProbabilities)
	assert.Nil(t, res.Top5)
}

func TestPredictCategoryZeroVectorOnUniformModel(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(constLogits(0)))

	res, err := e.PredictCategory(context.Background(), zeroVector(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PredictedIndex)
	assert.Equal(t, "Theft", res.PredictedCategory)
	assert.InDelta(t, 1.0/float64(CategoryCount), res.Confidence, 1e-9)
	// Equal probabilities keep label order in the ranking.
	for i, r := range res.Top5 {
		assert.Equal(t, Categories()[i], r.Category)
	}
}

func TestPredictCategoryRejectsNonFiniteScores(t *testing.T) {
	model := newFakeModel(func(Tensor) []float32 {
		out := make([]float32, CategoryCount)
		out[3] = float32(math.NaN())
		return out
	})
	e, _ := loadedEngine(t, model)

	_, err := e.PredictCategory(context.Background(), zeroVector(), false)
	assert.ErrorIs(t, err, ErrNonFiniteOutput)
	assert.Equal(t, uint64(1), e.Failures())
	assert.Zero(t, e.Predictions())
}

func TestPredictCategoryRejectsWrongOutputWidth(t *testing.T) {
	model := newFakeModel(func(Tensor) []float32 { return make([]float32, 4) })
	e, _ := loadedEngine(t, model)

	_, err := e.PredictCategory(context.Background(), zeroVector(), false)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPredictWrapsBackendError(t *testing.T) {
	model := newFakeModel(constLogits(0))
	model.runErr = errors.New("invoke failed")
	e, _ := loadedEngine(t, model)

	_, err := e.Predict(context.Background(), zeroVector())
	assert.ErrorIs(t, err, model.runErr)
	var pe *PredictionError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "fake")
}

func TestPredictHonorsCancelledContext(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(constLogits(0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Predict(ctx, zeroVector())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusWhenLoaded(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(constLogits(0)))

	st := e.Status()
	assert.True(t, st.RuntimeAvailable)
	assert.True(t, st.ModelLoaded)
	assert.True(t, st.ModelReady)
	assert.Equal(t, "fake", st.Backend)
	require.NotNil(t, st.ModelInfo)
	assert.Equal(t, []int64{-1, features.Dim}, st.ModelInfo.Input.Shape)
	assert.Equal(t, DTypeFloat32, st.ModelInfo.Output.DType)
	assert.Empty(t, st.LastError)
}

func TestStatusCategoriesAreCopies(t *testing.T) {
	e := NewEngine(nil, "")
	st := e.Status()
	st.Categories[0] = "changed"
	assert.Equal(t, "Theft", e.Status().Categories[0])
	assert.Equal(t, "Theft", Categories()[0])
}

func TestNilBackendIsUnavailable(t *testing.T) {
	e := NewEngine(nil, "")
	assert.False(t, e.Load())
	assert.ErrorIs(t, e.LoadErr(), ErrBackendUnavailable)
	assert.NotPanics(t, func() { _ = e.Status() })
}

func TestWarmupRunsZeroInput(t *testing.T) {
	model := newFakeModel(constLogits(0))
	e, _ := loadedEngine(t, model)

	_, err := e.Warmup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, model.runs)
	assert.Equal(t, []int64{1, features.Dim}, model.lastIn.Shape)
}

func TestWarmupBeforeLoadFails(t *testing.T) {
	e := NewEngine(&fakeBackend{}, "")
	_, err := e.Warmup(context.Background())
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestCloseUnloads(t *testing.T) {
	model := newFakeModel(constLogits(0))
	e, _ := loadedEngine(t, model)

	require.NoError(t, e.Close())
	assert.True(t, model.closed)
	assert.False(t, e.Ready())
	_, err := e.Predict(context.Background(), zeroVector())
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestConcurrentPredictCategory(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(peakLogits(11)))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.PredictCategory(context.Background(), zeroVector(), true)
			if err == nil && res.PredictedCategory != "Scam/Fraud" {
				err = fmt.Errorf("unexpected category %s", res.PredictedCategory)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, uint64(32), e.Predictions())
}

// The one-hot incident type band drives the fake model, so the pipeline
// result follows the report's incident type.
func oneHotLogits(in Tensor) []float32 {
	out := make([]float32, CategoryCount)
	copy(out, in.Data[features.IncidentTypeOffset:features.IncidentTypeOffset+features.IncidentTypeWidth])
	return out
}

func TestPipelineClassifyReport(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(oneHotLogits))
	p := NewPipeline(e)

	res, timings, err := p.ClassifyReport(context.Background(), inference.Report{
		Title:          "Na-scam ako sa online",
		Description:    "nagbayad ako pero walang dumating",
		IncidentType:   "Scam/Fraud",
		TranslatedText: "I was scammed online",
	}, true)
	require.NoError(t, err)
	require.NotNil(t, timings)
	assert.Equal(t, "Scam/Fraud", res.PredictedCategory)
	assert.GreaterOrEqual(t, timings.Total, timings.Inference)
}

func TestPipelineClassifyTextUsesOthersSlot(t *testing.T) {
	e, _ := loadedEngine(t, newFakeModel(oneHotLogits))
	p := NewPipeline(e)

	res, err := p.ClassifyText(context.Background(), "may nag-iingay sa kalye", false)
	require.NoError(t, err)
	assert.Equal(t, "Others", res.PredictedCategory)
}

func TestPipelineReportsTimingsOnFailure(t *testing.T) {
	p := NewPipeline(NewEngine(&fakeBackend{}, ""))
	_, timings, err := p.ClassifyReport(context.Background(), inference.Report{Title: "x"}, false)
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	assert.NotNil(t, timings)
}

func TestONNXBackendWithRealModel(t *testing.T) {
	path := os.Getenv("BANTAY_MODEL_PATH")
	if path == "" {
		t.Skip("BANTAY_MODEL_PATH not set")
	}
	e := NewEngine(NewONNXBackend(RuntimeSettings{SearchDirs: []string{filepath.Dir(path)}}), path)
	require.True(t, e.Load(), "load: %v", e.LoadErr())
	defer e.Close()

	res, err := e.PredictCategory(context.Background(), zeroVector(), true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Contains(t, Categories(), res.PredictedCategory)
}
