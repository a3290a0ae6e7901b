package rbm

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Update applies one step of contrastive divergence (CD-1) for the batch x.
//
//	x' = Gibbs(x, 1)
//	h  = bin(σ(x·W + hb)),  h' = bin(σ(x'·W + hb))
//	W  += lr/n · (xᵀh − x'ᵀh')
//	vb += lr/n · Σrows(x − x')
//	hb += lr/n · Σrows(h − h')
//
// Every delta is computed before the parameters are touched, so a failed
// update leaves the model unchanged.
func (m *Model) Update(x *tensor.Dense, learnRate float32, s Sampler) error {
	if err := m.checkVisible(x); err != nil {
		return err
	}
	n := x.Shape()[0]

	xr, err := m.Gibbs(x, 1, s)
	if err != nil {
		return err
	}
	h, err := m.Hidden(x, s)
	if err != nil {
		return err
	}
	hr, err := m.Hidden(xr, s)
	if err != nil {
		return err
	}

	dW, err := outerDiff(x, h, xr, hr)
	if err != nil {
		return err
	}
	dv, err := colDiff(x, xr)
	if err != nil {
		return err
	}
	dh, err := colDiff(h, hr)
	if err != nil {
		return err
	}

	scale := learnRate / float32(n)
	vecf32.Scale(dW, scale)
	vecf32.Scale(dv, scale)
	vecf32.Scale(dh, scale)

	vecf32.Add(m.W.Data().([]float32), dW)
	vecf32.Add(m.VBias.Data().([]float32), dv)
	vecf32.Add(m.HBias.Data().([]float32), dh)
	return nil
}

// outerDiff computes aᵀb − cᵀd
func outerDiff(a, b, c, d *tensor.Dense) ([]float32, error) {
	aT, err := transpose(a)
	if err != nil {
		return nil, err
	}
	cT, err := transpose(c)
	if err != nil {
		return nil, err
	}

	pos, err := aT.MatMul(b)
	if err != nil {
		return nil, errors.Wrap(err, "positive phase")
	}
	neg, err := cT.MatMul(d)
	if err != nil {
		return nil, errors.Wrap(err, "negative phase")
	}
	if _, err = pos.Sub(neg, tensor.UseUnsafe()); err != nil {
		return nil, errors.WithStack(err)
	}
	return pos.Data().([]float32), nil
}

// colDiff sums the rows of a − b
func colDiff(a, b *tensor.Dense) ([]float32, error) {
	sa, err := a.Sum(0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sb, err := b.Sum(0)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	retVal := make([]float32, a.Shape()[1])
	copy(retVal, sa.Data().([]float32))
	vecf32.Sub(retVal, sb.Data().([]float32))
	return retVal, nil
}
