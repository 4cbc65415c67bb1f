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
)

// iota(ρ) = 0.2 + 1.6ρ crosses 1 at ρ = 0.5
var sheared = field.Sheared{Iota0: 0.2, Iota1: 1.6, Periods: 1}

func newGradient(t *testing.T, label domain.Rational, mode domain.GradientMode) *qfm.ActionGradient {
	t.Helper()
	a, err := qfm.NewActionGradient(zap.NewNop(), sheared, label, 2, 4, mode)
	require.NoError(t, err)
	return a
}

func residual(t *testing.T, a *qfm.ActionGradient, o domain.Orbit, area float64) []float64 {
	t.Helper()
	x, err := qfm.Pack(nil, o)
	require.NoError(t, err)
	dst := make([]float64, a.Len())
	require.NoError(t, a.Residual(dst, x, area))
	return dst
}

func TestNewActionGradient_Errors(t *testing.T) {
	_, err := qfm.NewActionGradient(zap.NewNop(), sheared, domain.Rational{P: 1, Q: 1}, 2, 4, domain.GradientMode(7))
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	_, err = qfm.NewActionGradient(zap.NewNop(), sheared, domain.Rational{P: 2, Q: 2}, 2, 4, domain.ModeReal)
	assert.ErrorIs(t, err, domain.ErrNotCoprime)

	_, err = qfm.NewActionGradient(zap.NewNop(), sheared, domain.Rational{P: 1, Q: 1}, 0, 4, domain.ModeReal)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestActionGradient_Sizes(t *testing.T) {
	rg := newGradient(t, domain.Rational{P: 2, Q: 3}, domain.ModeReal)
	assert.Equal(t, 6, rg.Modes())
	assert.Equal(t, 25, rg.Len())
	assert.Len(t, rg.Samples(), 12)
	assert.InDelta(t, 2*math.Pi*3*11/12, rg.Samples()[11], 1e-12)

	fg := newGradient(t, domain.Rational{P: 2, Q: 3}, domain.ModeFourier)
	assert.Len(t, fg.Samples(), 24)
	assert.InDelta(t, 2*math.Pi/8, fg.Samples()[1], 1e-15)
}

func TestActionGradient_ExactRoot(t *testing.T) {
	for _, mode := range []domain.GradientMode{domain.ModeReal, domain.ModeFourier} {
		t.Run(mode.String(), func(t *testing.T) {
			a := newGradient(t, domain.Rational{P: 1, Q: 1}, mode)
			o := domain.NewOrbit(a.Modes())
			o.RCos[0] = 0.5
			o.TCos[0] = 0.3

			for i, v := range residual(t, a, o, 0.3) {
				assert.InDelta(t, 0, v, 1e-13, "equation %d", i)
			}
		})
	}
}

func TestActionGradient_AreaConstraint(t *testing.T) {
	a := newGradient(t, domain.Rational{P: 1, Q: 1}, domain.ModeReal)
	o := domain.NewOrbit(a.Modes())
	o.RCos[0] = 0.5
	o.TCos[0] = 0.25

	assert.InDelta(t, -0.5, residual(t, a, o, 0.75)[0], 1e-15)
	assert.InDelta(t, 0.25, residual(t, a, o, 0)[0], 1e-15)
}

func TestActionGradient_OffResonance(t *testing.T) {
	// a curve at ρ = 0.5 + δ drifts in θ by -1.6δ per unit ζ
	const delta = 0.01
	for _, mode := range []domain.GradientMode{domain.ModeReal, domain.ModeFourier} {
		t.Run(mode.String(), func(t *testing.T) {
			a := newGradient(t, domain.Rational{P: 1, Q: 1}, mode)
			qN := a.Modes()
			o := domain.NewOrbit(qN)
			o.RCos[0] = 0.5 + delta
			o.Nu = 0.125

			f := residual(t, a, o, 0)
			assert.InDelta(t, 0, f[0], 1e-15)
			if mode == domain.ModeReal {
				for j := 0; j < 2*qN; j++ {
					assert.InDelta(t, 0.125, f[1+j], 1e-13, "radial %d", j)
					assert.InDelta(t, -1.6*delta, f[1+2*qN+j], 1e-13, "angular %d", j)
				}
				return
			}
			assert.InDelta(t, 0.125, f[1], 1e-13)
			assert.InDelta(t, -1.6*delta, f[2*qN+1], 1e-13)
			for i, v := range f {
				if i == 1 || i == 2*qN+1 {
					continue
				}
				assert.InDelta(t, 0, v, 1e-13, "equation %d", i)
			}
		})
	}
}

func TestActionGradient_SpectralDerivative(t *testing.T) {
	// ρ(ζ) = 0.5 + ε sin ζ, θ(ζ) = ζ
	const eps = 0.01
	a := newGradient(t, domain.Rational{P: 1, Q: 1}, domain.ModeReal)
	qN := a.Modes()
	o := domain.NewOrbit(qN)
	o.RCos[0] = 0.5
	o.RSin[1] = eps

	f := residual(t, a, o, 0)
	for j, z := range a.Samples() {
		assert.InDelta(t, eps*math.Cos(z), f[1+j], 1e-13, "radial %d", j)
		assert.InDelta(t, -1.6*eps*math.Sin(z), f[1+2*qN+j], 1e-13, "angular %d", j)
	}

	fa := newGradient(t, domain.Rational{P: 1, Q: 1}, domain.ModeFourier)
	ff := residual(t, fa, o, 0)
	assert.InDelta(t, eps, ff[2], 1e-13, "cos(ζ) radial equation")
	assert.InDelta(t, -1.6*eps, ff[3*qN+2], 1e-13, "sin(ζ) angular equation")
}

func TestActionGradient_Func(t *testing.T) {
	a := newGradient(t, domain.Rational{P: 1, Q: 1}, domain.ModeReal)
	f := a.Func(0.5)

	x := make([]float64, a.Len())
	for i := range x {
		x[i] = 1
	}
	dst := make([]float64, a.Len())
	f(dst, x)
	assert.InDelta(t, -0.5, dst[0], 1e-15)

	short := make([]float64, 3)
	f(short, x)
	assert.True(t, math.IsNaN(short[0]))
}
