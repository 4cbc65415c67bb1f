// Package field provides analytic magnetic field models in toroidal
// coordinates (ρ, θ, ζ) with unit Jacobian.
package field

import (
	"fmt"
	"math"
	"strings"

	"qfm-surfaces/internal/domain"
)

const (
	ModelSheared  = "sheared"
	ModelTwoWaves = "two_waves"
)

// New builds the model named by cfg.Model. A zero Nfp means one field
// period.
func New(cfg domain.FieldConfig) (domain.FieldModel, error) {
	nfp := cfg.Nfp
	if nfp == 0 {
		nfp = 1
	}
	if nfp < 0 {
		return nil, fmt.Errorf("%w: nfp=%d", domain.ErrInvalidConfig, cfg.Nfp)
	}

	sh := Sheared{Iota0: cfg.Iota0, Iota1: cfg.Iota1, Periods: nfp}
	switch strings.ToLower(cfg.Model) {
	case "", ModelSheared:
		return sh, nil
	case ModelTwoWaves:
		return TwoWaves{
			Sheared: sh,
			K1:      cfg.K1,
			M1:      cfg.M1,
			N1:      cfg.N1,
			K2:      cfg.K2,
			M2:      cfg.M2,
			N2:      cfg.N2,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown field model %q", domain.ErrInvalidConfig, cfg.Model)
	}
}

// Sheared is an axisymmetric field with nested circular surfaces and a
// linear rotational transform iota(ρ) = Iota0 + Iota1*ρ.
type Sheared struct {
	Iota0, Iota1 float64
	Periods      int
}

func (f Sheared) Nfp() int { return f.Periods }

func (f Sheared) Evaluate(c domain.Coord) domain.FieldSample {
	return domain.FieldSample{BTheta: f.Iota0 + f.Iota1*c.Rho, BZeta: 1}
}

func (f Sheared) EvaluateMany(coords []domain.Coord, dst []domain.FieldSample) {
	for i, c := range coords {
		dst[i] = f.Evaluate(c)
	}
}

// Rho returns the radius where iota(ρ) = iota.
func (f Sheared) Rho(iota float64) float64 {
	return (iota - f.Iota0) / f.Iota1
}

// TwoWaves adds two resonant perturbations to Sheared through the
// Hamiltonian ρ-flux
//
//	B^ρ = K1*M1*sin(M1θ - N1ζ) + K2*M2*sin(M2θ - N2ζ)
//
// which keeps the field divergence free. Islands open at iota = N/M.
type TwoWaves struct {
	Sheared
	K1     float64
	M1, N1 int
	K2     float64
	M2, N2 int
}

func (f TwoWaves) Evaluate(c domain.Coord) domain.FieldSample {
	b := f.Sheared.Evaluate(c)
	m1, n1 := float64(f.M1), float64(f.N1)
	m2, n2 := float64(f.M2), float64(f.N2)
	b.BRho = f.K1*m1*math.Sin(m1*c.Theta-n1*c.Zeta) + f.K2*m2*math.Sin(m2*c.Theta-n2*c.Zeta)
	return b
}

func (f TwoWaves) EvaluateMany(coords []domain.Coord, dst []domain.FieldSample) {
	for i, c := range coords {
		dst[i] = f.Evaluate(c)
	}
}
