package spectral

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrOddGrid is returned when a 2D grid dimension is not even.
	ErrOddGrid = errors.New("spectral: grid dimensions must be even")

	// ErrModeOverflow is returned when more modes are requested than the grid
	// resolves. Zero padding of under-resolved data is not supported.
	ErrModeOverflow = errors.New("spectral: mode count exceeds grid resolution")
)

// Spectrum2D is a truncated double Fourier series
//
//	f(θ, ζ) = Σ_{m,n} Cos[m,n] cos(mθ - nζ) + Sin[m,n] sin(mθ - nζ)
//
// with m = 0..Mpol and n = -Ntor..Ntor. Columns are stored in FFT order,
// n = 0, 1, .., Ntor, -Ntor, .., -1. The m = 0 row keeps both ±n entries at
// half weight.
type Spectrum2D struct {
	Mpol, Ntor int
	Cos, Sin   *mat.Dense
}

// NewSpectrum2D allocates a zero spectrum.
func NewSpectrum2D(mpol, ntor int) *Spectrum2D {
	return &Spectrum2D{
		Mpol: mpol,
		Ntor: ntor,
		Cos:  mat.NewDense(mpol+1, 2*ntor+1, nil),
		Sin:  mat.NewDense(mpol+1, 2*ntor+1, nil),
	}
}

// Col returns the column holding toroidal mode n.
func (s *Spectrum2D) Col(n int) int {
	if n < 0 {
		return n + 2*s.Ntor + 1
	}
	return n
}

// ModeN returns the toroidal mode number stored in column j.
func (s *Spectrum2D) ModeN(j int) int {
	if j > s.Ntor {
		return j - 2*s.Ntor - 1
	}
	return j
}

// Clone returns a deep copy of s.
func (s *Spectrum2D) Clone() *Spectrum2D {
	return &Spectrum2D{
		Mpol: s.Mpol,
		Ntor: s.Ntor,
		Cos:  mat.DenseCopyOf(s.Cos),
		Sin:  mat.DenseCopyOf(s.Sin),
	}
}

// fftIndex maps toroidal mode n onto a frequency bin of an n2-point FFT.
// A term cos(mθ - nζ) lives in bin -n.
func fftIndex(n, n2 int) int {
	return ((-n)%n2 + n2) % n2
}

// Forward2D transforms samples f[i][j] = f(2πi/n1, 2πj/n2) into a spectrum
// truncated to (mpol, ntor).
func Forward2D(f mat.Matrix, mpol, ntor int) (*Spectrum2D, error) {
	n1, n2 := f.Dims()
	if n1%2 != 0 || n2%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrOddGrid, n1, n2)
	}
	if mpol > n1/2 || ntor > n2/2 {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d grid", ErrModeOverflow, mpol, ntor, n1, n2)
	}

	mNew := n1 / 2

	// real transform along θ for every ζ column
	rowFFT := fourier.NewFFT(n1)
	spec := make([][]complex128, mNew+1)
	for m := range spec {
		spec[m] = make([]complex128, n2)
	}
	col := make([]float64, n1)
	var coeff []complex128
	for j := 0; j < n2; j++ {
		for i := 0; i < n1; i++ {
			col[i] = f.At(i, j)
		}
		coeff = rowFFT.Coefficients(coeff, col)
		for m := 0; m <= mNew; m++ {
			spec[m][j] = coeff[m]
		}
	}

	// complex transform along ζ
	colFFT := fourier.NewCmplxFFT(n2)
	for m := range spec {
		colFFT.Coefficients(spec[m], spec[m])
	}

	out := NewSpectrum2D(mpol, ntor)
	scale := 2 / float64(n1*n2)
	for m := 0; m <= mpol; m++ {
		w := scale
		if m == 0 || m == mNew {
			w /= 2
		}
		for j := 0; j <= 2*ntor; j++ {
			c := spec[m][fftIndex(out.ModeN(j), n2)]
			out.Cos.Set(m, j, real(c)*w)
			out.Sin.Set(m, j, -imag(c)*w)
		}
	}

	return out, nil
}

// Inverse2D samples s on an n1 x n2 grid over [0, 2π) x [0, 2π). Only the
// real part of the m = 0 and m = n1/2 rows is kept, as for any real signal.
func Inverse2D(s *Spectrum2D, n1, n2 int) (*mat.Dense, error) {
	if n1%2 != 0 || n2%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrOddGrid, n1, n2)
	}
	if s.Mpol > n1/2 || 2*s.Ntor >= n2 {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d grid", ErrModeOverflow, s.Mpol, s.Ntor, n1, n2)
	}

	mNew := n1 / 2
	spec := make([][]complex128, mNew+1)
	for m := range spec {
		spec[m] = make([]complex128, n2)
	}
	for m := 0; m <= s.Mpol; m++ {
		w := 1.0
		if m == 0 || m == mNew {
			w = 2
		}
		for j := 0; j <= 2*s.Ntor; j++ {
			spec[m][fftIndex(s.ModeN(j), n2)] = complex(s.Cos.At(m, j)*w, -s.Sin.At(m, j)*w)
		}
	}

	colFFT := fourier.NewCmplxFFT(n2)
	for m := range spec {
		colFFT.Sequence(spec[m], spec[m])
	}

	out := mat.NewDense(n1, n2, nil)
	rowFFT := fourier.NewFFT(n1)
	coeff := make([]complex128, mNew+1)
	var seq []float64
	for j := 0; j < n2; j++ {
		for m := 0; m <= mNew; m++ {
			coeff[m] = spec[m][j]
		}
		seq = rowFFT.Sequence(seq, coeff)
		for i := 0; i < n1; i++ {
			out.Set(i, j, seq[i]/2)
		}
	}

	return out, nil
}
