package pianoroll

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gorgonia.org/tensor"
)

// Tensor lays frames out as a [len(frames), 2*notespan] float32 tensor
func (c *Codec) Tensor(frames []Frame) *tensor.Dense {
	n := c.Notespan()
	backing := make([]float32, len(frames)*2*n)
	for t, frame := range frames {
		row := backing[t*2*n : (t+1)*2*n]
		for i, note := range frame {
			if note.On {
				row[i] = 1
			}
			if note.Onset {
				row[n+i] = 1
			}
		}
	}
	return tensor.New(tensor.WithShape(len(frames), 2*n), tensor.WithBacking(backing))
}

// Frames reads a [T, 2*notespan] or [T, notespan, 2] tensor back into frames
func (c *Codec) Frames(fv *tensor.Dense) ([]Frame, error) {
	if fv == nil {
		return nil, fmt.Errorf("%w: nil feature vector", ErrShape)
	}
	data, err := floats(fv)
	if err != nil {
		return nil, err
	}

	n := c.Notespan()
	shape := fv.Shape()

	var onAt, onsetAt func(t, i int) int
	switch {
	case len(shape) == 2 && shape[1] == 2*n:
		onAt = func(t, i int) int { return t*2*n + i }
		onsetAt = func(t, i int) int { return t*2*n + n + i }
	case len(shape) == 3 && shape[1] == n && shape[2] == 2:
		onAt = func(t, i int) int { return (t*n+i)*2 + 0 }
		onsetAt = func(t, i int) int { return (t*n+i)*2 + 1 }
	default:
		return nil, fmt.Errorf("%w: got %v, notespan %d", ErrShape, shape, n)
	}

	frames := make([]Frame, shape[0])
	for t := range frames {
		frame := c.blankFrame()
		for i := range frame {
			frame[i] = Note{
				On:    data[onAt(t, i)] >= 0.5,
				Onset: data[onsetAt(t, i)] >= 0.5,
			}
		}
		frames[t] = frame
	}
	return frames, nil
}

// Split returns the isOn and isOnset halves of a piano roll, one row per frame
func (c *Codec) Split(fv *tensor.Dense) (on, onset [][]float32, err error) {
	frames, err := c.Frames(fv)
	if err != nil {
		return nil, nil, err
	}
	on = make([][]float32, len(frames))
	onset = make([][]float32, len(frames))
	for t, frame := range frames {
		on[t] = make([]float32, len(frame))
		onset[t] = make([]float32, len(frame))
		for i, note := range frame {
			if note.On {
				on[t][i] = 1
			}
			if note.Onset {
				onset[t][i] = 1
			}
		}
	}
	return on, onset, nil
}

func floats(fv *tensor.Dense) ([]float32, error) {
	switch data := fv.Data().(type) {
	case []float32:
		return data, nil
	case []float64:
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %v", ErrShape, fv.Dtype())
	}
}

// WriteCSV writes a 2D piano roll as comma separated rows
func WriteCSV(w io.Writer, fv *tensor.Dense) error {
	shape := fv.Shape()
	if len(shape) != 2 {
		return fmt.Errorf("%w: csv needs a matrix, got %v", ErrShape, shape)
	}
	data, err := floats(fv)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	rows, cols := shape[0], shape[1]
	record := make([]string, cols)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			record[col] = strconv.FormatFloat(float64(data[r*cols+col]), 'g', -1, 32)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads rows written by WriteCSV into a [rows, cols] tensor
func ReadCSV(r io.Reader) (*tensor.Dense, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty csv", ErrShape)
	}

	cols := len(records[0])
	backing := make([]float32, 0, len(records)*cols)
	for i, record := range records {
		for _, field := range record {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			backing = append(backing, float32(v))
		}
	}
	return tensor.New(tensor.WithShape(len(records), cols), tensor.WithBacking(backing)), nil
}
