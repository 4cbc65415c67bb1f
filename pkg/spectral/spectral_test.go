package spectral_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"qfm-surfaces/pkg/spectral"
)

const tol = 1e-12

func grid1D(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 2 * math.Pi * float64(i) / float64(n)
	}
	return x
}

func TestForward1D_KnownSeries(t *testing.T) {
	x := grid1D(16)
	f := make([]float64, len(x))
	for i, xi := range x {
		f[i] = 0.3 + 0.5*math.Cos(2*xi) - 0.2*math.Sin(3*xi)
	}

	s := spectral.Forward1D(f)
	require.Equal(t, 9, s.Len())
	assert.InDelta(t, 0.3, s.Cos[0], tol)
	assert.InDelta(t, 0.5, s.Cos[2], tol)
	assert.InDelta(t, -0.2, s.Sin[3], tol)
	assert.Equal(t, 0.0, s.Sin[0], "zero-frequency sine must be zero")
	for k := 4; k < s.Len(); k++ {
		assert.InDelta(t, 0, s.Cos[k], tol, "cos[%d]", k)
		assert.InDelta(t, 0, s.Sin[k], tol, "sin[%d]", k)
	}
}

func TestForward1D_ZeroModeSineAlwaysZero(t *testing.T) {
	for _, n := range []int{2, 5, 8, 13} {
		f := make([]float64, n)
		for i := range f {
			f[i] = math.Sin(float64(i)*1.7) + float64(i)
		}
		assert.Equal(t, 0.0, spectral.Forward1D(f).Sin[0], "n=%d", n)
	}
}

func TestInverse1D_RoundTrip(t *testing.T) {
	// any even-length sequence is band-limited to its own Nyquist mode
	f := []float64{0.1, -2.3, 4.4, 0.7, 1.5, -0.25, 3.0, 2.2, -1.1, 0.05}
	got := spectral.Inverse1D(spectral.Forward1D(f), 1)
	require.Len(t, got, len(f))
	for i := range f {
		assert.InDelta(t, f[i], got[i], tol, "sample %d", i)
	}
}

func TestInverse1D_IgnoresEndpointSines(t *testing.T) {
	s := spectral.Spectrum1D{
		Cos: []float64{1, 0.2, -0.4, 0.1},
		Sin: []float64{0, 0.3, 0.5, 0},
	}
	dirty := s.Clone()
	dirty.Sin[0] = 17
	dirty.Sin[3] = -9

	for _, mult := range []int{1, 2, 3} {
		clean := spectral.Inverse1D(s, mult)
		noisy := spectral.Inverse1D(dirty, mult)
		assert.InDeltaSlice(t, clean, noisy, tol, "multiplier %d", mult)
	}
	assert.Equal(t, 17.0, dirty.Sin[0], "input must not be modified")
}

func TestInverse1D_Oversampled(t *testing.T) {
	s := spectral.Spectrum1D{
		Cos: []float64{0.5, 0.2, -0.4, 0.1},
		Sin: []float64{0, 0.3, 0.5, 0},
	}
	const mult = 2
	got := spectral.Inverse1D(s, mult)
	require.Len(t, got, 2*mult*3)

	x := grid1D(len(got))
	want := spectral.NewBasis(s.Len(), x, 1).Synthesize(s)
	assert.InDeltaSlice(t, want, got, tol)
	assert.InDelta(t, 0.5+0.2-0.4+0.1, got[0], tol)
}

func TestInverse1D_NyquistHalfWeight(t *testing.T) {
	s := spectral.Spectrum1D{
		Cos: []float64{0, 0, 1},
		Sin: []float64{0, 0, 0},
	}
	got := spectral.Inverse1D(s, 1)
	assert.InDeltaSlice(t, []float64{0.5, -0.5, 0.5, -0.5}, got, tol)
}

func TestDerivative(t *testing.T) {
	// f = cos(x) + sin(2x) => f' = -sin(x) + 2cos(2x)
	s := spectral.Spectrum1D{
		Cos: []float64{0.7, 1, 0, 0, 0},
		Sin: []float64{0, 0, 1, 0, 0},
	}
	d := spectral.Derivative(s, 1)
	x := grid1D(8)
	got := spectral.Inverse1D(d, 1)
	for i, xi := range x {
		assert.InDelta(t, -math.Sin(xi)+2*math.Cos(2*xi), got[i], tol)
	}

	half := spectral.Derivative(s, 0.5)
	assert.InDelta(t, 1.0, half.Cos[2], tol)
	assert.InDelta(t, -0.5, half.Sin[1], tol)
}

func bandLimited(n1, n2 int) *mat.Dense {
	f := mat.NewDense(n1, n2, nil)
	for i := 0; i < n1; i++ {
		th := 2 * math.Pi * float64(i) / float64(n1)
		for j := 0; j < n2; j++ {
			ze := 2 * math.Pi * float64(j) / float64(n2)
			v := 1.0 +
				0.3*math.Cos(2*th-ze) +
				0.2*math.Sin(th+2*ze) -
				0.1*math.Cos(ze) +
				0.05*math.Sin(3*th)
			f.Set(i, j, v)
		}
	}
	return f
}

func TestForward2D_KnownModes(t *testing.T) {
	s, err := spectral.Forward2D(bandLimited(16, 8), 4, 2)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, s.Cos.At(0, 0), tol)
	assert.InDelta(t, 0.3, s.Cos.At(2, s.Col(1)), tol)
	assert.InDelta(t, 0.2, s.Sin.At(1, s.Col(-2)), tol)
	assert.InDelta(t, 0.05, s.Sin.At(3, s.Col(0)), tol)

	// m = 0 row: cos(ζ) is split between n = 1 and n = -1
	assert.InDelta(t, -0.05, s.Cos.At(0, s.Col(1)), tol)
	assert.InDelta(t, -0.05, s.Cos.At(0, s.Col(-1)), tol)
}

func TestForward2D_Inverse2D_RoundTrip(t *testing.T) {
	f := bandLimited(16, 8)
	s, err := spectral.Forward2D(f, 4, 2)
	require.NoError(t, err)

	got, err := spectral.Inverse2D(s, 16, 8)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(f, got, 1e-12))

	// resample on a finer grid and compare with the analytic function
	fine, err := spectral.Inverse2D(s, 32, 16)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(bandLimited(32, 16), fine, 1e-12))
}

func TestSpectrum2D_ColumnOrder(t *testing.T) {
	s := spectral.NewSpectrum2D(3, 2)
	for n := -2; n <= 2; n++ {
		assert.Equal(t, n, s.ModeN(s.Col(n)))
	}
	assert.Equal(t, 3, s.Col(-2))
	assert.Equal(t, 4, s.Col(-1))
}

func TestTransform2D_Errors(t *testing.T) {
	_, err := spectral.Forward2D(mat.NewDense(7, 8, nil), 2, 2)
	assert.ErrorIs(t, err, spectral.ErrOddGrid)

	_, err = spectral.Forward2D(mat.NewDense(8, 8, nil), 5, 2)
	assert.ErrorIs(t, err, spectral.ErrModeOverflow)

	_, err = spectral.Inverse2D(spectral.NewSpectrum2D(2, 4), 8, 8)
	assert.ErrorIs(t, err, spectral.ErrModeOverflow, "2*ntor must stay below the grid size")

	_, err = spectral.Inverse2D(spectral.NewSpectrum2D(2, 1), 8, 5)
	assert.ErrorIs(t, err, spectral.ErrOddGrid)
}
