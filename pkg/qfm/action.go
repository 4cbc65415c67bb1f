package qfm

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"qfm-surfaces/internal/domain"
	"qfm-surfaces/pkg/spectral"
)

// ActionGradient evaluates the equations whose root is a stationary
// action curve of a (p, q) surface. The unknowns are the flat vector from
// Pack, the curve runs over ζ ∈ [0, 2πq) and its modes oscillate as
// cos(nζ/q), sin(nζ/q) for n = 0..qN.
//
// An ActionGradient owns scratch buffers and must not be shared between
// goroutines.
type ActionGradient struct {
	logger *zap.Logger
	field  domain.FieldModel
	label  domain.Rational
	mode   domain.GradientMode
	iota   float64
	qN     int

	zeta  []float64
	basis *spectral.Basis // fourier mode only

	coords  []domain.Coord
	samples []domain.FieldSample
	rhsR    []float64
	rhsT    []float64
}

// NewActionGradient prepares the sample grid for label with qN = q*pqNtor
// modes. In fourier mode the field is sampled on mm*qN points, in real mode
// on 2*qN points.
func NewActionGradient(logger *zap.Logger, field domain.FieldModel, label domain.Rational, pqNtor, mm int, mode domain.GradientMode) (*ActionGradient, error) {
	if mode != domain.ModeReal && mode != domain.ModeFourier {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidMode, mode)
	}
	if err := label.Validate(); err != nil {
		return nil, err
	}
	if pqNtor < 1 || mm < 2 {
		return nil, fmt.Errorf("%w: pq_ntor=%d, fft multiplier=%d", domain.ErrInvalidConfig, pqNtor, mm)
	}

	qN := label.Q * pqNtor
	a := &ActionGradient{
		logger: logger,
		field:  field,
		label:  label,
		mode:   mode,
		iota:   label.Iota(),
		qN:     qN,
	}

	var n int
	var dz float64
	switch mode {
	case domain.ModeReal:
		n = 2 * qN
		dz = 2 * math.Pi * float64(label.Q) / float64(n)
	case domain.ModeFourier:
		n = mm * qN
		dz = 2 * math.Pi / float64(mm*pqNtor)
	}
	a.zeta = make([]float64, n)
	for j := range a.zeta {
		a.zeta[j] = float64(j) * dz
	}
	if mode == domain.ModeFourier {
		// таблица cos(nζ/q), sin(nζ/q) считается один раз
		a.basis = spectral.NewBasis(qN+1, a.zeta, 1/float64(label.Q))
	}

	a.coords = make([]domain.Coord, n)
	a.samples = make([]domain.FieldSample, n)
	a.rhsR = make([]float64, n)
	a.rhsT = make([]float64, n)

	logger.Debug("Action gradient prepared",
		zap.Stringer("label", label),
		zap.Stringer("mode", mode),
		zap.Int("modes", qN),
		zap.Int("samples", n))

	return a, nil
}

// Modes returns qN.
func (a *ActionGradient) Modes() int { return a.qN }

// Len returns the number of unknowns and equations.
func (a *ActionGradient) Len() int { return DOFLength(a.qN) }

// Samples returns the ζ grid the field is evaluated on.
func (a *ActionGradient) Samples() []float64 { return a.zeta }

// Residual writes the equations for unknowns x and target area into dst.
// dst[0] pins TCos[0] to area; the rest match the curve velocity
// (dρ/dζ, dθ/dζ) with (B^ρ - ν, B^θ)/B^ζ along the curve.
func (a *ActionGradient) Residual(dst, x []float64, area float64) error {
	if len(dst) != a.Len() {
		return fmt.Errorf("%w: residual has %d entries, want %d", ErrDOFLength, len(dst), a.Len())
	}
	o, err := Unpack(x, a.qN)
	if err != nil {
		return err
	}

	dst[0] = o.TCos[0] - area
	switch a.mode {
	case domain.ModeReal:
		a.residualReal(dst, o)
	case domain.ModeFourier:
		a.residualFourier(dst, o)
	}
	return nil
}

// Func binds the target area and returns a closure for domain.RootSolver.
func (a *ActionGradient) Func(area float64) domain.ResidualFunc {
	return func(dst, x []float64) {
		if err := a.Residual(dst, x, area); err != nil {
			// длина задаётся решателем, сюда попадаем только при ошибке вызова
			for i := range dst {
				dst[i] = math.NaN()
			}
		}
	}
}

func (a *ActionGradient) sampleField(r, t []float64, nu float64) {
	for j, z := range a.zeta {
		a.coords[j] = domain.Coord{Rho: r[j], Theta: t[j], Zeta: z}
	}
	a.field.EvaluateMany(a.coords, a.samples)
	for j, b := range a.samples {
		a.rhsT[j] = b.BTheta / b.BZeta
		a.rhsR[j] = b.BRho/b.BZeta - nu/b.BZeta
	}
}

func (a *ActionGradient) residualReal(dst []float64, o domain.Orbit) {
	qN := a.qN
	rate := 1 / float64(a.label.Q)

	r := spectral.Inverse1D(o.Radius(), 1)
	t := spectral.Inverse1D(o.Angle(), 1)
	for j, z := range a.zeta {
		t[j] += a.iota * z
	}
	rdot := spectral.Inverse1D(spectral.Derivative(o.Radius(), rate), 1)
	tdot := spectral.Inverse1D(spectral.Derivative(o.Angle(), rate), 1)

	a.sampleField(r, t, o.Nu)

	for j := 0; j < 2*qN; j++ {
		dst[1+j] = rdot[j] - a.rhsR[j]
		dst[1+2*qN+j] = tdot[j] + a.iota - a.rhsT[j]
	}
}

func (a *ActionGradient) residualFourier(dst []float64, o domain.Orbit) {
	qN := a.qN
	q := float64(a.label.Q)

	r := a.basis.Synthesize(o.Radius())
	t := a.basis.Synthesize(o.Angle())
	for j, z := range a.zeta {
		t[j] += a.iota * z
	}

	a.sampleField(r, t, o.Nu)

	fr := spectral.Forward1D(a.rhsR)
	ft := spectral.Forward1D(a.rhsT)

	// cosine equations n = 0..qN, sine equations n = 1..qN-1
	for n := 0; n <= qN; n++ {
		w := float64(n) / q
		dst[1+n] = o.RSin[n]*w - fr.Cos[n]
		dst[2*qN+1+n] = o.TSin[n]*w - ft.Cos[n]
		if n > 0 && n < qN {
			dst[qN+1+n] = -o.RCos[n]*w - fr.Sin[n]
			dst[3*qN+1+n] = -o.TCos[n]*w - ft.Sin[n]
		}
	}
	dst[2*qN+1] += a.iota
}
