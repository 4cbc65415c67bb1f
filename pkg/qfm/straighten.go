package qfm

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"qfm-surfaces/internal/domain"
	"qfm-surfaces/pkg/spectral"
)

// Straightener finds the rotational transform iota and the angle shift
// lambda on a ρ = const surface such that field lines are straight in
// ϑ, where θ = ϑ + λ(ϑ, ζ).
type Straightener struct {
	logger     *zap.Logger
	field      domain.FieldModel
	mpol, ntor int
	n1, n2     int
}

// NewStraightener samples the surface on an (mm*mpol) x (mm*ntor) grid. The
// inverse transform needs mm > 2.
func NewStraightener(logger *zap.Logger, field domain.FieldModel, mpol, ntor, mm int) (*Straightener, error) {
	if mpol < 1 || ntor < 1 {
		return nil, fmt.Errorf("%w: mpol=%d, ntor=%d", domain.ErrInvalidConfig, mpol, ntor)
	}
	n1, n2 := mm*mpol, mm*ntor
	if n1%2 != 0 || n2%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", spectral.ErrOddGrid, n1, n2)
	}
	if 2*ntor >= n2 {
		return nil, fmt.Errorf("%w: fft multiplier %d too small for straightening", spectral.ErrModeOverflow, mm)
	}
	return &Straightener{
		logger: logger,
		field:  field,
		mpol:   mpol,
		ntor:   ntor,
		n1:     n1,
		n2:     n2,
	}, nil
}

// Straighten runs at most niter rounds of the fixed point iteration
//
//	B^θ/B^ζ (ϑ + λ, ζ) = ι (1 + ∂λ/∂ϑ) + ∂λ/∂ζ
//
// and stops once iota and every lambda coefficient move by less than tol.
// Running out of rounds is not an error; the last iterate is returned with
// Converged = false. Resonant modes n*Nfp = m*iota are not guarded.
func (s *Straightener) Straighten(rho, tol float64, niter int) (*domain.Straightened, error) {
	nfp := s.field.Nfp()
	if nfp < 1 {
		return nil, fmt.Errorf("%w: field period %d", domain.ErrInvalidConfig, nfp)
	}

	// ζ покрывает один период поля
	theta := make([]float64, s.n1)
	for i := range theta {
		theta[i] = 2 * math.Pi * float64(i) / float64(s.n1)
	}
	zeta := make([]float64, s.n2)
	for j := range zeta {
		zeta[j] = 2 * math.Pi * float64(j) / float64(s.n2*nfp)
	}

	coords := make([]domain.Coord, s.n1*s.n2)
	samples := make([]domain.FieldSample, s.n1*s.n2)
	ratio := mat.NewDense(s.n1, s.n2, nil)

	res := &domain.Straightened{
		Rho:    rho,
		Lambda: spectral.NewSpectrum2D(s.mpol, s.ntor),
	}

	for it := 1; it <= niter; it++ {
		lam, err := spectral.Inverse2D(res.Lambda, s.n1, s.n2)
		if err != nil {
			return nil, err
		}
		for i := 0; i < s.n1; i++ {
			for j := 0; j < s.n2; j++ {
				coords[i*s.n2+j] = domain.Coord{Rho: rho, Theta: theta[i] + lam.At(i, j), Zeta: zeta[j]}
			}
		}

		s.field.EvaluateMany(coords, samples)
		for i := 0; i < s.n1; i++ {
			for j := 0; j < s.n2; j++ {
				b := samples[i*s.n2+j]
				ratio.Set(i, j, b.BTheta/b.BZeta)
			}
		}

		spec, err := spectral.Forward2D(ratio, s.mpol, s.ntor)
		if err != nil {
			return nil, err
		}

		iota := spec.Cos.At(0, 0)
		next := spectral.NewSpectrum2D(s.mpol, s.ntor)
		for m := 0; m <= s.mpol; m++ {
			fm := float64(m)
			for j := 0; j <= 2*s.ntor; j++ {
				if m == 0 && j == 0 {
					continue
				}
				n := float64(spec.ModeN(j) * nfp)
				next.Cos.Set(m, j, spec.Sin.At(m, j)/(n-fm*iota))
				next.Sin.Set(m, j, spec.Cos.At(m, j)/(fm*iota-n))
			}
		}

		delta := math.Max(math.Abs(iota-res.Iota), math.Max(maxAbsDiff(next.Cos, res.Lambda.Cos), maxAbsDiff(next.Sin, res.Lambda.Sin)))

		res.Iota = iota
		res.Lambda = next
		res.Iterations = it

		s.logger.Debug("Straightening round",
			zap.Int("iteration", it),
			zap.Float64("iota", iota),
			zap.Float64("delta", delta))

		if delta < tol {
			res.Converged = true
			break
		}
	}

	if !res.Converged {
		s.logger.Warn("Straightening did not converge",
			zap.Float64("rho", rho),
			zap.Int("niter", niter))
	}
	return res, nil
}

func maxAbsDiff(a, b *mat.Dense) float64 {
	var d mat.Dense
	d.Sub(a, b)
	return floats.Norm(d.RawMatrix().Data, math.Inf(1))
}
