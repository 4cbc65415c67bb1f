// Package spectral converts between sampled periodic functions and truncated
// real Fourier series written as cosine/sine coefficient pairs.
//
// A one-dimensional series of length N+1 represents
//
//	f(x) = Cos[0] + Σ_{k=1..N} Cos[k] cos(kx) + Sin[k] sin(kx)
//
// where Sin[0] and Sin[N] are dropped on reconstruction.
package spectral

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum1D holds the cosine and sine coefficients of a periodic function.
type Spectrum1D struct {
	Cos []float64
	Sin []float64
}

// NewSpectrum1D allocates a zero spectrum with modes 0..n.
func NewSpectrum1D(n int) Spectrum1D {
	return Spectrum1D{
		Cos: make([]float64, n+1),
		Sin: make([]float64, n+1),
	}
}

// Len returns the number of stored modes, including the zero mode.
func (s Spectrum1D) Len() int { return len(s.Cos) }

// Clone returns a deep copy of s.
func (s Spectrum1D) Clone() Spectrum1D {
	out := Spectrum1D{
		Cos: make([]float64, len(s.Cos)),
		Sin: make([]float64, len(s.Sin)),
	}
	copy(out.Cos, s.Cos)
	copy(out.Sin, s.Sin)
	return out
}

// Forward1D transforms the real samples f into len(f)/2+1 cosine and sine
// coefficients. Reconstructing with Inverse1D and a multiplier of one gives
// f back exactly. Sin[0] is always zero.
func Forward1D(f []float64) Spectrum1D {
	n := len(f)
	if n == 0 {
		panic("spectral: empty sequence")
	}

	coeff := fourier.NewFFT(n).Coefficients(nil, f)
	out := Spectrum1D{
		Cos: make([]float64, len(coeff)),
		Sin: make([]float64, len(coeff)),
	}
	scale := 2 / float64(n)
	for k, c := range coeff {
		out.Cos[k] = real(c) * scale
		out.Sin[k] = -imag(c) * scale
	}
	out.Cos[0] /= 2
	out.Sin[0] = 0

	return out
}

// Inverse1D reconstructs 2*multiplier*(s.Len()-1) equally spaced samples over
// one period. The sine coefficients at index zero and at the last index are
// ignored. With multiplier one the last cosine coefficient sits on the
// Nyquist frequency of the output and enters with half weight, mirroring
// Forward1D.
func Inverse1D(s Spectrum1D, multiplier int) []float64 {
	if len(s.Cos) < 2 || len(s.Sin) != len(s.Cos) {
		panic("spectral: malformed spectrum")
	}
	if multiplier < 1 {
		panic("spectral: multiplier must be positive")
	}

	last := len(s.Cos) - 1
	nfft := multiplier * last
	n := 2 * nfft

	coeff := make([]complex128, nfft+1)
	for k := 0; k <= last; k++ {
		sn := s.Sin[k]
		if k == 0 || k == last {
			sn = 0
		}
		coeff[k] = complex(s.Cos[k]*float64(nfft), -sn*float64(nfft))
	}
	coeff[0] *= 2

	out := fourier.NewFFT(n).Sequence(nil, coeff)
	inv := 1 / float64(n)
	for i := range out {
		out[i] *= inv
	}
	return out
}

// Derivative returns the spectrum of df/dx for a series whose k-th mode
// oscillates as k*rate*x.
func Derivative(s Spectrum1D, rate float64) Spectrum1D {
	out := Spectrum1D{
		Cos: make([]float64, len(s.Cos)),
		Sin: make([]float64, len(s.Sin)),
	}
	for k := range s.Cos {
		w := float64(k) * rate
		out.Cos[k] = s.Sin[k] * w
		out.Sin[k] = -s.Cos[k] * w
	}
	return out
}
