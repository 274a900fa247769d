package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotLoaded is returned when Predict runs before a successful Load.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrBackendUnavailable is returned when the inference runtime cannot be initialized.
	ErrBackendUnavailable = errors.New("inference backend unavailable")
	// ErrShapeMismatch is matched by every *ShapeError.
	ErrShapeMismatch = errors.New("input shape mismatch")
	// ErrNonFiniteOutput is returned when the model produces NaN or Inf scores.
	ErrNonFiniteOutput = errors.New("model produced non-finite scores")
)

// ShapeError reports a tensor whose shape does not fit the model.
type ShapeError struct {
	Expected []int64
	Actual   []int64
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("input shape mismatch: expected %v, got %v", e.Expected, e.Actual)
}

func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// PredictionError wraps every failure returned by Predict and PredictCategory.
type PredictionError struct {
	Op  string
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}
