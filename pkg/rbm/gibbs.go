package rbm

import (
	"github.com/chewxy/math32"
	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Sampler draws uniform variates in [0, 1)
type Sampler interface {
	Float32() float32
}

// NewSampler returns a seeded uniform generator. It is safe for concurrent use.
func NewSampler(seed int64) Sampler {
	return rng.NewUniformGenerator(seed)
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// bernoulli is floor(p+u), clamped to 1 for p+u rounding up to 2
func bernoulli(p, u float32) float32 {
	if math32.Floor(p+u) < 1 {
		return 0
	}
	return 1
}

// Binarize samples every entry of p as floor(p + u), u ~ U[0,1).
// p is left untouched.
func Binarize(p *tensor.Dense, s Sampler) (*tensor.Dense, error) {
	retVal := p.Clone().(*tensor.Dense)
	data, ok := retVal.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected %v data, got %v", Float, p.Dtype())
	}
	for i, v := range data {
		data[i] = bernoulli(v, s.Float32())
	}
	return retVal, nil
}

// activate computes bin(σ(x·w + bias)), adding bias to every row
func activate(x, w, bias *tensor.Dense, s Sampler) (*tensor.Dense, error) {
	pre, err := x.MatMul(w)
	if err != nil {
		return nil, errors.Wrapf(err, "matmul %v × %v", x.Shape(), w.Shape())
	}

	data := pre.Data().([]float32)
	b := bias.Data().([]float32)
	cols := len(b)
	for start := 0; start+cols <= len(data); start += cols {
		row := data[start : start+cols]
		vecf32.Add(row, b)
		for i, v := range row {
			row[i] = bernoulli(sigmoid(v), s.Float32())
		}
	}
	return pre, nil
}

func transpose(t *tensor.Dense) (*tensor.Dense, error) {
	retVal, err := tensor.Transpose(t)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return retVal.(*tensor.Dense), nil
}

// Gibbs runs k steps of block Gibbs sampling starting from the visible batch x.
// The result never aliases x or the parameters.
func (m *Model) Gibbs(x *tensor.Dense, k int, s Sampler) (*tensor.Dense, error) {
	if err := m.checkVisible(x); err != nil {
		return nil, err
	}
	wT, err := transpose(m.W)
	if err != nil {
		return nil, err
	}

	xk := x.Clone().(*tensor.Dense)
	for i := 0; i < k; i++ {
		var hk *tensor.Dense
		if hk, err = activate(xk, m.W, m.HBias, s); err != nil {
			return nil, err
		}
		if xk, err = activate(hk, wT, m.VBias, s); err != nil {
			return nil, err
		}
	}
	return xk, nil
}

// Hidden samples the hidden layer for the visible batch x
func (m *Model) Hidden(x *tensor.Dense, s Sampler) (*tensor.Dense, error) {
	if err := m.checkVisible(x); err != nil {
		return nil, err
	}
	return activate(x, m.W, m.HBias, s)
}

// Sample draws count visible vectors with a single Gibbs step from an all zero
// visible layer.
func (m *Model) Sample(count int, s Sampler) (*tensor.Dense, error) {
	if count < 1 {
		return nil, errors.Errorf("sample count must be positive, got %d", count)
	}
	zero := tensor.New(tensor.Of(Float), tensor.WithShape(count, m.VisibleNodes()))
	return m.Gibbs(zero, 1, s)
}
