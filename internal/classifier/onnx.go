package classifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/bantay-ai/bantay/internal/redact"
)

// ONNXBackend runs models with ONNX Runtime. Each opened model owns a fixed
// pool of sessions; a forward pass checks one out, so a session is never used
// by two goroutines at once and concurrency is bounded by MaxSessions.
type ONNXBackend struct {
	rt RuntimeSettings
}

// NewONNXBackend returns a backend using rt, with defaults applied.
func NewONNXBackend(rt RuntimeSettings) *ONNXBackend {
	return &ONNXBackend{rt: rt.withDefaults()}
}

func (b *ONNXBackend) Name() string { return "onnxruntime" }

// Init locates the shared library and initializes the process-wide runtime
// environment. It is a no-op once the environment is up.
func (b *ONNXBackend) Init() error {
	if ort.IsInitialized() {
		return nil
	}
	libPath := resolveSharedLibraryPath(b.rt)
	if libPath == "" {
		return errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or runtime.library_path")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	redact.Logf("classifier: onnxruntime initialized from %s", filepath.Base(libPath))
	return nil
}

// Open reads the declared input and output of the artifact at path and
// allocates the session pool.
func (b *ONNXBackend) Open(path string) (Model, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithOptions(path, nil)
	if err != nil {
		return nil, fmt.Errorf("read model io info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected exactly one model input, found %v", ioNames(inputs))
	}
	outInfo, err := selectOutputInfo(outputs)
	if err != nil {
		return nil, err
	}

	input, err := tensorInfoFrom(inputs[0])
	if err != nil {
		return nil, fmt.Errorf("model input %s: %w", inputs[0].Name, err)
	}
	output, err := tensorInfoFrom(outInfo)
	if err != nil {
		return nil, fmt.Errorf("model output %s: %w", outInfo.Name, err)
	}

	m := &onnxModel{
		input:    input,
		output:   output,
		inShape:  resolveShape(input.Shape, 0),
		outShape: resolveShape(output.Shape, CategoryCount),
		sessions: make(chan *onnxSession, b.rt.MaxSessions),
		poolSize: b.rt.MaxSessions,
	}
	if debugML() {
		redact.Logf("classifier debug ml: input=%s shape=%v dtype=%s output=%s shape=%v dtype=%s",
			input.Name, m.inShape, input.DType, output.Name, m.outShape, output.DType)
	}
	for i := 0; i < m.poolSize; i++ {
		ss, err := newONNXSession(path, m, b.rt)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, m.poolSize, err)
		}
		m.sessions <- ss
		m.opened++
	}
	return m, nil
}

type onnxModel struct {
	input    TensorInfo
	output   TensorInfo
	inShape  ort.Shape
	outShape ort.Shape
	sessions chan *onnxSession
	poolSize int
	opened   int

	closeOnce sync.Once
}

type onnxSession struct {
	session *ort.AdvancedSession
	input   *floatTensor
	output  *floatTensor
}

func (m *onnxModel) Input() TensorInfo  { return cloneInfo(m.input) }
func (m *onnxModel) Output() TensorInfo { return cloneInfo(m.output) }

// Run executes one forward pass. Sessions are allocated at the resolved
// input shape, so the tensor must match it exactly.
func (m *onnxModel) Run(ctx context.Context, in Tensor) (Tensor, error) {
	if shapeSize(in.Shape) != shapeSize(m.inShape) || len(in.Data) != int(shapeSize(m.inShape)) {
		return Tensor{}, &ShapeError{Expected: slices.Clone(m.inShape), Actual: slices.Clone(in.Shape)}
	}

	var ss *onnxSession
	select {
	case ss = <-m.sessions:
	case <-ctx.Done():
		return Tensor{}, ctx.Err()
	}
	defer func() { m.sessions <- ss }()

	ss.input.write(in.Data)
	if err := ss.session.Run(); err != nil {
		return Tensor{}, fmt.Errorf("onnx run: %w", err)
	}
	return Tensor{Shape: slices.Clone(m.outShape), Data: ss.output.read()}, nil
}

// Close destroys every pooled session. Callers must not Run concurrently.
func (m *onnxModel) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		for i := 0; i < m.opened; i++ {
			ss := <-m.sessions
			errs = append(errs, ss.destroy())
		}
	})
	return errors.Join(errs...)
}

func newONNXSession(path string, m *onnxModel, rt RuntimeSettings) (*onnxSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(rt.IntraThreads); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(rt.InterThreads); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	input, err := newFloatTensor(m.input.DType, m.inShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := newFloatTensor(m.output.DType, m.outShape)
	if err != nil {
		_ = input.value.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{m.input.Name},
		[]string{m.output.Name},
		[]ort.Value{input.value},
		[]ort.Value{output.value},
		opts,
	)
	if err != nil {
		_ = input.value.Destroy()
		_ = output.value.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &onnxSession{session: session, input: input, output: output}, nil
}

func (s *onnxSession) destroy() error {
	return errors.Join(s.session.Destroy(), s.input.value.Destroy(), s.output.value.Destroy())
}

// floatTensor hides the declared element type behind float32 accessors.
type floatTensor struct {
	value ort.Value
	write func([]float32)
	read  func() []float32
}

func newFloatTensor(dtype DType, shape ort.Shape) (*floatTensor, error) {
	switch dtype {
	case DTypeFloat32:
		t, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			return nil, err
		}
		return &floatTensor{
			value: t,
			write: func(src []float32) { copy(t.GetData(), src) },
			read:  func() []float32 { return slices.Clone(t.GetData()) },
		}, nil
	case DTypeFloat64:
		t, err := ort.NewEmptyTensor[float64](shape)
		if err != nil {
			return nil, err
		}
		return &floatTensor{
			value: t,
			write: func(src []float32) { widen(t.GetData(), src) },
			read:  func() []float32 { return narrow(t.GetData()) },
		}, nil
	}
	return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
}

func widen(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

func narrow(src []float64) []float32 {
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out
}

func tensorInfoFrom(info ort.InputOutputInfo) (TensorInfo, error) {
	var dtype DType
	switch info.DataType {
	case ort.TensorElementDataTypeFloat:
		dtype = DTypeFloat32
	case ort.TensorElementDataTypeDouble:
		dtype = DTypeFloat64
	default:
		return TensorInfo{}, fmt.Errorf("unsupported element type %v", info.DataType)
	}
	shape := make([]int64, len(info.Dimensions))
	for i, d := range info.Dimensions {
		if d <= 0 {
			d = -1
		}
		shape[i] = d
	}
	return TensorInfo{Name: info.Name, Shape: shape, DType: dtype}, nil
}

// resolveShape replaces dynamic dimensions with 1, except a dynamic last
// dimension which becomes lastDim when it is positive.
func resolveShape(dims []int64, lastDim int) ort.Shape {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == len(dims)-1 && lastDim > 0:
			shape[i] = int64(lastDim)
		default:
			shape[i] = 1
		}
	}
	return ort.Shape(shape)
}

func selectOutputInfo(outputs []ort.InputOutputInfo) (ort.InputOutputInfo, error) {
	if len(outputs) == 0 {
		return ort.InputOutputInfo{}, errors.New("no model outputs found")
	}
	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return out, nil
		}
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return ort.InputOutputInfo{}, fmt.Errorf("multiple outputs found without logits: %v", ioNames(outputs))
}

func ioNames(infos []ort.InputOutputInfo) []string {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}

func cloneInfo(info TensorInfo) TensorInfo {
	info.Shape = slices.Clone(info.Shape)
	return info
}
