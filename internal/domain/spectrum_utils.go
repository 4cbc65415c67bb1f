package domain

import (
	"errors"
	"math"

	"qfm-surfaces/pkg/spectral"
)

var ErrEmptySpectrum = errors.New("empty spectrum")

// ModeRow is one (m, n) line of a surface table.
type ModeRow struct {
	M, N       int
	RCos, RSin float64
	TCos, TSin float64
}

// Modes flattens the surface spectra row by row, m ascending, n from -ntor
// to ntor.
func (s *Surface) Modes() []ModeRow {
	r := s.Radius
	rows := make([]ModeRow, 0, (r.Mpol+1)*(2*r.Ntor+1))
	for m := 0; m <= r.Mpol; m++ {
		for n := -r.Ntor; n <= r.Ntor; n++ {
			j := r.Col(n)
			rows = append(rows, ModeRow{
				M:    m,
				N:    n,
				RCos: r.Cos.At(m, j),
				RSin: r.Sin.At(m, j),
				TCos: s.Angle.Cos.At(m, j),
				TSin: s.Angle.Sin.At(m, j),
			})
		}
	}
	return rows
}

// Decay calculates the largest amplitude sqrt(cos²+sin²) of each poloidal
// mode number. A slowly decaying profile means the resolution is too low.
func Decay(s *spectral.Spectrum2D) ([]float64, error) {
	if s == nil || s.Cos == nil {
		return nil, ErrEmptySpectrum
	}

	out := make([]float64, s.Mpol+1)
	for m := range out {
		for j := 0; j <= 2*s.Ntor; j++ {
			a := math.Hypot(s.Cos.At(m, j), s.Sin.At(m, j))
			if m == 0 && j != 0 {
				// m = 0 entries hold half of the ±n pair
				a *= 2
			}
			if a > out[m] {
				out[m] = a
			}
		}
	}
	return out, nil
}

// MaxNonZeroMode returns the largest |coefficient| outside the (0,0)
// mode.
func MaxNonZeroMode(s *spectral.Spectrum2D) float64 {
	var mx float64
	for m := 0; m <= s.Mpol; m++ {
		for j := 0; j <= 2*s.Ntor; j++ {
			if m == 0 && j == 0 {
				continue
			}
			mx = math.Max(mx, math.Max(math.Abs(s.Cos.At(m, j)), math.Abs(s.Sin.At(m, j))))
		}
	}
	return mx
}
