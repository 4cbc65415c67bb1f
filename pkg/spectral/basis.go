package spectral

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Basis is a precomputed table of cos(k*rate*x) and sin(k*rate*x) for modes
// k = 0..Modes-1 on a fixed set of sample angles. Unlike Inverse1D every mode,
// including the last, enters with full weight.
type Basis struct {
	cos *mat.Dense // samples x modes
	sin *mat.Dense
}

// NewBasis tabulates modes 0..nmodes-1 at the angles x.
func NewBasis(nmodes int, x []float64, rate float64) *Basis {
	b := &Basis{
		cos: mat.NewDense(len(x), nmodes, nil),
		sin: mat.NewDense(len(x), nmodes, nil),
	}
	for i, xi := range x {
		for k := 0; k < nmodes; k++ {
			sn, cs := math.Sincos(float64(k) * rate * xi)
			b.cos.Set(i, k, cs)
			b.sin.Set(i, k, sn)
		}
	}
	return b
}

// Samples returns the number of tabulated angles.
func (b *Basis) Samples() int {
	r, _ := b.cos.Dims()
	return r
}

// Synthesize evaluates the series s at the tabulated angles.
func (b *Basis) Synthesize(s Spectrum1D) []float64 {
	_, nmodes := b.cos.Dims()
	if len(s.Cos) != nmodes || len(s.Sin) != nmodes {
		panic("spectral: basis mode count mismatch")
	}

	var c, sn mat.VecDense
	c.MulVec(b.cos, mat.NewVecDense(nmodes, s.Cos))
	sn.MulVec(b.sin, mat.NewVecDense(nmodes, s.Sin))
	c.AddVec(&c, &sn)

	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.AtVec(i)
	}
	return out
}
