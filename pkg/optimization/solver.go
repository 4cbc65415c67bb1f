package optimization

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"qfm-surfaces/internal/domain"
)

// LMConfig holds the stopping rules of LevenbergMarquardt.
type LMConfig struct {
	// Tolerance is the largest |f_i| accepted as a root.
	Tolerance float64
	// StepTolerance stops the iteration once ‖h‖ <= StepTolerance*(‖x‖+StepTolerance).
	StepTolerance float64
	// Damping is the initial μ relative to max diag(JᵀJ).
	Damping float64
	MaxIter int
}

func DefaultLMConfig() LMConfig {
	return LMConfig{
		Tolerance:     1e-10,
		StepTolerance: 1e-15,
		Damping:       1e-3,
		MaxIter:       100,
	}
}

// LMConfigFrom maps the solver section of the config file, falling back to
// defaults for zero values.
func LMConfigFrom(c domain.SolverConfig) LMConfig {
	conf := DefaultLMConfig()
	if c.Tolerance > 0 {
		conf.Tolerance = c.Tolerance
	}
	if c.StepTolerance > 0 {
		conf.StepTolerance = c.StepTolerance
	}
	if c.Damping > 0 {
		conf.Damping = c.Damping
	}
	if c.MaxIter > 0 {
		conf.MaxIter = c.MaxIter
	}
	return conf
}

// LevenbergMarquardt finds roots of square nonlinear systems by damped
// Gauss-Newton steps (JᵀJ + μI) h = -Jᵀf with Nielsen's update of μ.
type LevenbergMarquardt struct {
	logger *zap.Logger
	conf   LMConfig
}

func NewLevenbergMarquardt(logger *zap.Logger, conf LMConfig) *LevenbergMarquardt {
	return &LevenbergMarquardt{logger: logger, conf: conf}
}

// Solve starts from x0. Failing to converge is reported through
// SolverResult.Converged, not as an error.
func (o *LevenbergMarquardt) Solve(f domain.ResidualFunc, x0 []float64) (*domain.SolverResult, error) {
	n := len(x0)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty initial guess", domain.ErrInvalidConfig)
	}

	cost := NewCostFunction(o.logger, f, n)

	x := make([]float64, n)
	copy(x, x0)
	fx := make([]float64, n)
	cost.Residual(fx, x)

	res := &domain.SolverResult{X: x}
	finish := func(iter int) (*domain.SolverResult, error) {
		res.Iterations = iter
		res.Evaluations = cost.Evaluations()
		res.Residual = maxAbs(fx)
		res.Converged = finite(fx) && res.Residual <= o.conf.Tolerance
		return res, nil
	}

	if !finite(fx) {
		o.logger.Debug("Non-finite residual at the initial guess")
		return finish(0)
	}

	jac := mat.NewDense(n, n, nil)
	var jtj mat.SymDense
	grad := mat.NewVecDense(n, nil)
	linearize := func() {
		cost.Jacobian(jac, x, fx)
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(n, fx))
	}
	linearize()

	var diagMax float64
	for i := 0; i < n; i++ {
		diagMax = math.Max(diagMax, jtj.At(i, i))
	}
	mu := o.conf.Damping * diagMax
	if mu == 0 {
		mu = o.conf.Damping
	}
	nu := 2.0

	aug := mat.NewSymDense(n, nil)
	h := mat.NewVecDense(n, nil)
	xn := make([]float64, n)
	fn := make([]float64, n)
	var chol mat.Cholesky

	iter := 0
	for ; iter < o.conf.MaxIter; iter++ {
		if maxAbs(fx) <= o.conf.Tolerance {
			break
		}

		aug.CopySym(&jtj)
		for i := 0; i < n; i++ {
			aug.SetSym(i, i, jtj.At(i, i)+mu)
		}
		if !chol.Factorize(aug) {
			mu *= nu
			nu *= 2
			continue
		}
		if err := chol.SolveVecTo(h, grad); !usableSolve(err) {
			o.logger.Debug("Damped system not solved",
				zap.Int("iteration", iter),
				zap.Error(err))
			mu *= nu
			nu *= 2
			continue
		}
		h.ScaleVec(-1, h)
		step := h.RawVector().Data
		if !finite(step) {
			mu *= nu
			nu *= 2
			continue
		}

		if floats.Norm(step, 2) <= o.conf.StepTolerance*(floats.Norm(x, 2)+o.conf.StepTolerance) {
			o.logger.Debug("Step stagnated",
				zap.Int("iteration", iter),
				zap.Float64("residual", maxAbs(fx)))
			break
		}

		floats.AddTo(xn, x, step)
		cost.Residual(fn, xn)

		// ожидаемое уменьшение L(0) - L(h) = ½ hᵀ(μh - g)
		predicted := 0.5 * (mu*floats.Dot(step, step) - mat.Dot(h, grad))
		actual := cost.Value(fx) - cost.Value(fn)
		rho := actual / predicted

		o.logger.Debug("LM iteration",
			zap.Int("iteration", iter),
			zap.Float64("residual", maxAbs(fx)),
			zap.Float64("mu", mu),
			zap.Float64("rho", rho))

		if predicted > 0 && rho > 0 && !math.IsNaN(rho) {
			copy(x, xn)
			copy(fx, fn)
			linearize()
			mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
			nu = 2
		} else {
			mu *= nu
			nu *= 2
		}
		if math.IsInf(mu, 1) {
			break
		}
	}

	return finish(iter)
}

func maxAbs(v []float64) float64 {
	return floats.Norm(v, math.Inf(1))
}

// usableSolve reports whether a Cholesky solve produced a step. A
// mat.Condition only warns about conditioning; the step is still checked
// for finiteness afterwards.
func usableSolve(err error) bool {
	return err == nil || errors.As(err, new(mat.Condition))
}
