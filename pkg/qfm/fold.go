package qfm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"qfm-surfaces/internal/domain"
)

// FoldShifts returns, for every toroidal turn i = 0..q-1 of a curve that
// closes after q turns, the poloidal block (p*i) mod q it lands in. The
// map must be a bijection, which holds exactly when gcd(p, q) = 1.
func FoldShifts(p, q int) ([]int, error) {
	if q < 1 || p < 0 {
		return nil, fmt.Errorf("%w: label %d/%d", domain.ErrInvalidConfig, p, q)
	}
	shifts := make([]int, q)
	seen := make([]bool, q)
	for i := range shifts {
		idx := (p * i) % q
		if seen[idx] {
			return nil, fmt.Errorf("%w: label %d/%d", domain.ErrNotCoprime, p, q)
		}
		seen[idx] = true
		shifts[i] = idx
	}
	return shifts, nil
}

// Fold turns fM curves, each sampled on q*fM points over ζ ∈ [0, 2πq), into
// one surface sampled on a (q*fM) x fM grid in (ϑ, ζ), ζ ∈ [0, 2π).
//
// Curve c starts at poloidal label c*2π/(q*fM). Its i-th toroidal turn is
// moved to block (p*i) mod q of the field line label α, and α is then
// converted to ϑ = α + (p/q) ζ, one row of shift per p columns.
func Fold(curves mat.Matrix, p, q int) (*mat.Dense, error) {
	fM, nfft := curves.Dims()
	if fM == 0 || nfft != q*fM {
		return nil, fmt.Errorf("%w: %d curves with %d samples for q=%d", ErrDOFLength, fM, nfft, q)
	}
	shifts, err := FoldShifts(p, q)
	if err != nil {
		return nil, err
	}
	turn := make([]int, q)
	for i, idx := range shifts {
		turn[idx] = i
	}

	// Both gathers in one pass: the α-fold puts sample (c, col+i*fM) at
	// α = c + fM*shifts[i], the ϑ-shift reads α = k - col*p. turn inverts
	// shifts, so block = alpha/fM selects turn i = turn[block].
	qfM := q * fM
	out := mat.NewDense(qfM, fM, nil)
	for col := 0; col < fM; col++ {
		for k := 0; k < qfM; k++ {
			alpha := ((k-col*p)%qfM + qfM) % qfM
			block, c := alpha/fM, alpha%fM
			out.Set(k, col, curves.At(c, (col+turn[block]*fM)%nfft))
		}
	}
	return out, nil
}
