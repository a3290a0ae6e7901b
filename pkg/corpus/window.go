package corpus

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Window cuts a [T, width] sequence into floor(T/timesteps) non-overlapping
// windows, each flattened into one row of width*timesteps values. Trailing
// frames that do not fill a window are dropped. ok is false when not even one
// window fits.
func Window(seq *tensor.Dense, timesteps int) (windows *tensor.Dense, ok bool, err error) {
	if timesteps < 1 {
		return nil, false, fmt.Errorf("timesteps must be positive, got %d", timesteps)
	}
	shape := seq.Shape()
	if len(shape) != 2 {
		return nil, false, fmt.Errorf("sequence must be a matrix, got %v", shape)
	}
	data, isFloat := seq.Data().([]float32)
	if !isFloat {
		return nil, false, fmt.Errorf("sequence must be float32, got %v", seq.Dtype())
	}

	frames, width := shape[0], shape[1]
	rows := frames / timesteps
	if rows == 0 {
		return nil, false, nil
	}

	backing := make([]float32, rows*timesteps*width)
	copy(backing, data[:len(backing)])
	return tensor.New(tensor.WithShape(rows, timesteps*width), tensor.WithBacking(backing)), true, nil
}

// Rows returns rows [from, to) of a matrix as a new tensor sharing its backing
func Rows(t *tensor.Dense, from, to int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 || from < 0 || to > shape[0] || from >= to {
		return nil, fmt.Errorf("rows [%d, %d) out of range for %v", from, to, shape)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 data, got %v", t.Dtype())
	}
	cols := shape[1]
	return tensor.New(tensor.WithShape(to-from, cols), tensor.WithBacking(data[from*cols:to*cols])), nil
}
