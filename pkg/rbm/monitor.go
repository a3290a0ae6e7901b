package rbm

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// ReconstructionError is the mean squared error between x and one Gibbs
// reconstruction of it. It does not change the parameters.
func (m *Model) ReconstructionError(x *tensor.Dense, s Sampler) (float32, error) {
	xr, err := m.Gibbs(x, 1, s)
	if err != nil {
		return 0, err
	}
	return meanSquaredError(x, xr)
}

func meanSquaredError(a, b *tensor.Dense) (float32, error) {
	g := G.NewGraph()
	x := G.NewMatrix(g, Float, G.WithShape(a.Shape()...), G.WithName("x"))
	xr := G.NewMatrix(g, Float, G.WithShape(b.Shape()...), G.WithName("reconstruction"))

	var m maebe
	diff := m.do(func() (*G.Node, error) { return G.Sub(x, xr) })
	sq := m.do(func() (*G.Node, error) { return G.Square(diff) })
	mse := m.do(func() (*G.Node, error) { return G.Mean(sq) })
	if m.err != nil {
		return 0, m.err
	}

	var cost G.Value
	G.Read(mse, &cost)

	if err := G.Let(x, a); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := G.Let(xr, b); err != nil {
		return 0, errors.WithStack(err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return 0, errors.WithStack(err)
	}

	v, ok := cost.Data().(float32)
	if !ok {
		return 0, errors.Errorf("expected a float32 cost, got %v", cost)
	}
	return v, nil
}
