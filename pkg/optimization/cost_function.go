package optimization

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"qfm-surfaces/internal/domain"
)

// CostFunction wraps a residual function of a square nonlinear system. It
// counts evaluations and approximates the Jacobian by finite differences.
type CostFunction struct {
	logger *zap.Logger
	f      domain.ResidualFunc
	m      int
	evals  int
}

// NewCostFunction wraps f, which fills m residuals.
func NewCostFunction(logger *zap.Logger, f domain.ResidualFunc, m int) *CostFunction {
	return &CostFunction{
		logger: logger,
		f:      f,
		m:      m,
	}
}

// Residual evaluates the system at x into dst.
func (c *CostFunction) Residual(dst, x []float64) {
	c.evals++
	c.f(dst, x)
}

// Value returns half the squared residual norm. Non-finite residuals give
// +Inf.
func (c *CostFunction) Value(fx []float64) float64 {
	if !finite(fx) {
		return math.Inf(1)
	}
	return 0.5 * floats.Dot(fx, fx)
}

// Jacobian fills dst with the forward-difference Jacobian at x, reusing
// the residual fx already known at x.
func (c *CostFunction) Jacobian(dst *mat.Dense, x, fx []float64) {
	fd.Jacobian(dst, c.Residual, x, &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: fx,
	})

	c.logger.Debug("Jacobian computed",
		zap.Int("size", len(x)),
		zap.Int("evaluations", c.evals))
}

// Evaluations returns the number of residual evaluations so far.
func (c *CostFunction) Evaluations() int { return c.evals }

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
