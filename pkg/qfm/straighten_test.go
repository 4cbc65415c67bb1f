package qfm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qfm-surfaces/internal/domain"
	"qfm-surfaces/internal/field"
	"qfm-surfaces/pkg/qfm"
	"qfm-surfaces/pkg/spectral"
)

// modulated has dθ/dζ = iota0 (1 + eps cos θ) on every surface.
type modulated struct {
	iota0, eps float64
}

func (modulated) Nfp() int { return 1 }

func (f modulated) EvaluateMany(coords []domain.Coord, dst []domain.FieldSample) {
	for i, c := range coords {
		dst[i] = domain.FieldSample{BTheta: f.iota0 * (1 + f.eps*math.Cos(c.Theta)), BZeta: 1}
	}
}

func TestStraighten_Axisymmetric(t *testing.T) {
	s, err := qfm.NewStraightener(zap.NewNop(), sheared, 4, 2, 4)
	require.NoError(t, err)

	res, err := s.Straighten(1, 1e-9, 10)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, 3)
	assert.InDelta(t, 1.8, res.Iota, 1e-12)
	assert.Equal(t, 1.0, res.Rho)
	assert.InDelta(t, 0, domain.MaxNonZeroMode(res.Lambda), 1e-12)
}

func TestStraighten_PoloidalModulation(t *testing.T) {
	const (
		iota0 = 0.3
		eps   = 0.1
	)
	s, err := qfm.NewStraightener(zap.NewNop(), modulated{iota0, eps}, 8, 2, 4)
	require.NoError(t, err)

	res, err := s.Straighten(0.5, 1e-12, 60)
	require.NoError(t, err)
	require.True(t, res.Converged)

	// θ - ϑ = 2 Σ β^m/m sin(mϑ), the eccentric anomaly series
	beta := eps / (1 + math.Sqrt(1-eps*eps))
	assert.InDelta(t, iota0*math.Sqrt(1-eps*eps), res.Iota, 1e-10)
	assert.InDelta(t, 2*beta, res.Lambda.Sin.At(1, 0), 1e-9)
	assert.InDelta(t, beta*beta, res.Lambda.Sin.At(2, 0), 1e-9)
	assert.InDelta(t, 2*beta*beta*beta/3, res.Lambda.Sin.At(3, 0), 1e-9)
	for m := 0; m <= 8; m++ {
		assert.InDelta(t, 0, res.Lambda.Cos.At(m, 0), 1e-9, "cos m=%d", m)
	}
}

// rippled has dθ/dζ = iota0 (1 + eps cos(Nfp ζ)), no θ dependence.
type rippled struct {
	iota0, eps float64
	nfp        int
}

func (f rippled) Nfp() int { return f.nfp }

func (f rippled) EvaluateMany(coords []domain.Coord, dst []domain.FieldSample) {
	for i, c := range coords {
		dst[i] = domain.FieldSample{BTheta: f.iota0 * (1 + f.eps*math.Cos(float64(f.nfp)*c.Zeta)), BZeta: 1}
	}
}

func TestStraighten_FieldPeriods(t *testing.T) {
	s, err := qfm.NewStraightener(zap.NewNop(), rippled{iota0: 0.3, eps: 0.1, nfp: 2}, 2, 2, 4)
	require.NoError(t, err)

	res, err := s.Straighten(1, 1e-12, 10)
	require.NoError(t, err)
	require.True(t, res.Converged)

	// λ = 0.015 sin 2ζ, column n holds toroidal mode n*Nfp
	lam := res.Lambda
	assert.InDelta(t, 0.3, res.Iota, 1e-12)
	assert.InDelta(t, 0.0075, lam.Sin.At(0, lam.Col(-1)), 1e-12)
	assert.InDelta(t, -0.0075, lam.Sin.At(0, lam.Col(1)), 1e-12)
	assert.InDelta(t, 0.015, lam.Sin.At(0, lam.Col(-1))-lam.Sin.At(0, lam.Col(1)), 1e-12)
	for _, n := range []int{-2, 2} {
		assert.InDelta(t, 0, lam.Sin.At(0, lam.Col(n)), 1e-12, "n=%d", n)
	}
	for m := 1; m <= 2; m++ {
		for j := 0; j <= 4; j++ {
			assert.InDelta(t, 0, lam.Cos.At(m, j), 1e-12, "cos m=%d j=%d", m, j)
			assert.InDelta(t, 0, lam.Sin.At(m, j), 1e-12, "sin m=%d j=%d", m, j)
		}
	}
}

func TestStraighten_ResonantModeIsNotGuarded(t *testing.T) {
	// iota = 1/2 puts (m, n) = (2, 1) exactly on resonance
	flat := field.Sheared{Iota0: 0.5, Iota1: 0, Periods: 1}
	s, err := qfm.NewStraightener(zap.NewNop(), flat, 4, 2, 4)
	require.NoError(t, err)

	var res *domain.Straightened
	require.NotPanics(t, func() {
		res, err = s.Straighten(1, 1e-9, 5)
	})
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, 5, res.Iterations)
	assert.InDelta(t, 0.5, res.Iota, 1e-15)
	c := res.Lambda.Cos.At(2, res.Lambda.Col(1))
	assert.True(t, math.IsNaN(c) || math.IsInf(c, 0), "lambda cos(2, 1) = %v", c)
}

func TestStraighten_RoundLimit(t *testing.T) {
	s, err := qfm.NewStraightener(zap.NewNop(), modulated{0.3, 0.1}, 4, 2, 4)
	require.NoError(t, err)

	res, err := s.Straighten(1, 1e-12, 1)
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, 0.3, res.Iota, 1e-12, "first round sees the unshifted field")
}

func TestNewStraightener_Resolution(t *testing.T) {
	_, err := qfm.NewStraightener(zap.NewNop(), sheared, 4, 2, 2)
	assert.ErrorIs(t, err, spectral.ErrModeOverflow)

	_, err = qfm.NewStraightener(zap.NewNop(), sheared, 4, 1, 3)
	assert.ErrorIs(t, err, spectral.ErrOddGrid)

	_, err = qfm.NewStraightener(zap.NewNop(), sheared, 0, 2, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
