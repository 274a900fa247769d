package classifier

import (
	"context"
	"slices"
)

// DType is the element type a model declares for a tensor.
type DType string

const (
	DTypeFloat32 DType = "float32"
	DTypeFloat64 DType = "float64"
)

// TensorInfo describes one declared model input or output. Dimensions that
// are dynamic in the artifact are reported as -1.
type TensorInfo struct {
	Name  string  `json:"name"`
	Shape []int64 `json:"shape"`
	DType DType   `json:"dtype"`
}

// Tensor is a dense row-major float tensor. Backends coerce Data to the
// model's declared dtype.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// VectorTensor wraps a flat vector as a rank-1 tensor.
func VectorTensor(data []float32) Tensor {
	return Tensor{Shape: []int64{int64(len(data))}, Data: data}
}

// Backend is an inference runtime able to open model artifacts.
type Backend interface {
	// Name identifies the runtime in status output and logs.
	Name() string
	// Init makes the runtime usable. An error means the runtime is unavailable.
	Init() error
	// Open loads the artifact at path.
	Open(path string) (Model, error)
}

// Model is an opened artifact. Run must be safe for concurrent use.
type Model interface {
	Input() TensorInfo
	Output() TensorInfo
	Run(ctx context.Context, in Tensor) (Tensor, error)
	Close() error
}

func shapeSize(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// conform promotes an unbatched tensor to batch size 1 and checks it against
// the declared shape. Dynamic dimensions accept any positive size.
func conform(in Tensor, want []int64) (Tensor, error) {
	shape := slices.Clone(in.Shape)
	if len(shape) == 0 {
		shape = []int64{int64(len(in.Data))}
	}
	if len(shape) == len(want)-1 {
		shape = append([]int64{1}, shape...)
	}

	mismatch := &ShapeError{Expected: slices.Clone(want), Actual: shape}
	if len(shape) != len(want) {
		return Tensor{}, mismatch
	}
	for i, d := range want {
		if shape[i] <= 0 || (d > 0 && shape[i] != d) {
			return Tensor{}, mismatch
		}
	}
	if shapeSize(shape) != int64(len(in.Data)) {
		return Tensor{}, mismatch
	}
	return Tensor{Shape: shape, Data: in.Data}, nil
}

// firstRow returns the scores of batch row 0.
func firstRow(out Tensor) []float32 {
	if len(out.Shape) < 2 {
		return out.Data
	}
	width := out.Shape[len(out.Shape)-1]
	if width <= 0 || int64(len(out.Data)) < width {
		return out.Data
	}
	return out.Data[:width]
}
