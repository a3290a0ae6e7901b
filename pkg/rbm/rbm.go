// Package rbm implements a single layer binary Restricted Boltzmann Machine
// trained with one step contrastive divergence.
//
// Visible units are flattened piano roll windows of Timesteps frames, so the
// visible layer has 2*Notespan*Timesteps units.
package rbm

import (
	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var Float = tensor.Float32

const (
	initMean   = 0.01
	initStdDev = 1.0
)

// ErrShape is returned when an input does not fit the visible layer
var ErrShape = errors.New("input does not match the visible layer")

// Model holds the parameters of the machine.
type Model struct {
	Timesteps int
	Notespan  int

	W     *tensor.Dense // [visible, hidden]
	VBias *tensor.Dense // [visible]
	HBias *tensor.Dense // [hidden]
}

// New returns a freshly initialised machine. Weights are drawn from a normal
// distribution, biases start at zero.
func New(conf Config) (*Model, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid configuration %+v", conf)
	}

	v, h := conf.VisibleNodes(), conf.HiddenNodes
	gen := rng.NewGaussianGenerator(conf.Seed)
	w := make([]float32, v*h)
	for i := range w {
		w[i] = float32(gen.Gaussian(initMean, initStdDev))
	}

	return &Model{
		Timesteps: conf.Timesteps,
		Notespan:  conf.Notespan,
		W:         tensor.New(tensor.WithShape(v, h), tensor.WithBacking(w)),
		VBias:     tensor.New(tensor.Of(Float), tensor.WithShape(v)),
		HBias:     tensor.New(tensor.Of(Float), tensor.WithShape(h)),
	}, nil
}

func (m *Model) VisibleNodes() int { return m.W.Shape()[0] }
func (m *Model) HiddenNodes() int  { return m.W.Shape()[1] }

// Config reports the configuration the parameters were built for. Seed is not
// retained.
func (m *Model) Config() Config {
	return Config{
		Notespan:    m.Notespan,
		Timesteps:   m.Timesteps,
		HiddenNodes: m.HiddenNodes(),
	}
}

// checkVisible ensures x is a float32 [n, visible] batch
func (m *Model) checkVisible(x *tensor.Dense) error {
	if x == nil {
		return errors.Wrap(ErrShape, "nil input")
	}
	if x.Dtype() != Float {
		return errors.Wrapf(ErrShape, "dtype %v", x.Dtype())
	}
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != m.VisibleNodes() {
		return errors.Wrapf(ErrShape, "got %v, want [n %d]", shape, m.VisibleNodes())
	}
	return nil
}

func (m *Model) validate() error {
	conf := m.Config()
	if !conf.IsValid() {
		return errors.Errorf("invalid parameters for %+v", conf)
	}
	if m.W.Dims() != 2 || m.VisibleNodes() != conf.VisibleNodes() {
		return errors.Wrapf(ErrShape, "weights %v do not fit %d timesteps of %d notes", m.W.Shape(), m.Timesteps, m.Notespan)
	}
	if m.VBias.Shape().TotalSize() != m.VisibleNodes() {
		return errors.Wrapf(ErrShape, "visible bias %v, want %d", m.VBias.Shape(), m.VisibleNodes())
	}
	if m.HBias.Shape().TotalSize() != m.HiddenNodes() {
		return errors.Wrapf(ErrShape, "hidden bias %v, want %d", m.HBias.Shape(), m.HiddenNodes())
	}
	for _, t := range []*tensor.Dense{m.W, m.VBias, m.HBias} {
		if t.Dtype() != Float {
			return errors.Errorf("parameters must be %v, got %v", Float, t.Dtype())
		}
	}
	return nil
}
