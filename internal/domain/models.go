package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"qfm-surfaces/pkg/spectral"
)

// Config представляет конфигурацию расчёта QFM поверхностей
type Config struct {
	PqMpol         int              `yaml:"pq_mpol" toml:"pq_mpol"`
	PqNtor         int              `yaml:"pq_ntor" toml:"pq_ntor"`
	NfftMultiplier int              `yaml:"nfft_multiplier" toml:"nfft_multiplier"`
	GradientMode   string           `yaml:"action_gradient_mode" toml:"action_gradient_mode"`
	RGuess         float64          `yaml:"rguess" toml:"rguess"`
	Surfaces       []SurfaceTarget  `yaml:"surfaces" toml:"surfaces"`
	Solver         SolverConfig     `yaml:"solver" toml:"solver"`
	Straighten     StraightenConfig `yaml:"straighten" toml:"straighten"`
	Field          FieldConfig      `yaml:"field" toml:"field"`
	Workers        int              `yaml:"workers" toml:"workers"`
	LogLevel       string           `yaml:"log_level" toml:"log_level"`
	LogFile        string           `yaml:"log_file" toml:"log_file"`
	OutputDir      string           `yaml:"output_dir" toml:"output_dir"`
	Decimals       int              `yaml:"decimals" toml:"decimals"`
}

type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance" toml:"tolerance"`
	StepTolerance float64 `yaml:"step_tolerance" toml:"step_tolerance"`
	Damping       float64 `yaml:"damping" toml:"damping"`
	MaxIter       int     `yaml:"max_iter" toml:"max_iter"`
}

type StraightenConfig struct {
	Rho   float64 `yaml:"rho" toml:"rho"`
	Tol   float64 `yaml:"tol" toml:"tol"`
	NIter int     `yaml:"niter" toml:"niter"`
}

// FieldConfig selects one of the bundled analytic field models.
type FieldConfig struct {
	Model string  `yaml:"model" toml:"model"`
	Nfp   int     `yaml:"nfp" toml:"nfp"`
	Iota0 float64 `yaml:"iota0" toml:"iota0"`
	Iota1 float64 `yaml:"iota1" toml:"iota1"`
	K1    float64 `yaml:"k1" toml:"k1"`
	M1    int     `yaml:"m1" toml:"m1"`
	N1    int     `yaml:"n1" toml:"n1"`
	K2    float64 `yaml:"k2" toml:"k2"`
	M2    int     `yaml:"m2" toml:"m2"`
	N2    int     `yaml:"n2" toml:"n2"`
}

// SurfaceTarget is one requested rational surface. A zero RGuess falls back
// to Config.RGuess.
type SurfaceTarget struct {
	P      int     `yaml:"p" toml:"p"`
	Q      int     `yaml:"q" toml:"q"`
	RGuess float64 `yaml:"rguess" toml:"rguess"`
}

func (t SurfaceTarget) Label() Rational { return Rational{P: t.P, Q: t.Q} }

// FFTMultiplier returns the oversampling factor MM = 2*nfft_multiplier used
// for every real-space grid.
func (c *Config) FFTMultiplier() int { return 2 * c.NfftMultiplier }

func (c *Config) GetGradientMode() (GradientMode, error) {
	return ParseGradientMode(c.GradientMode)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error
	if c.PqMpol < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: pq_mpol must be positive, got %d", ErrInvalidConfig, c.PqMpol))
	}
	if c.PqNtor < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: pq_ntor must be positive, got %d", ErrInvalidConfig, c.PqNtor))
	}
	if c.NfftMultiplier < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: nfft_multiplier must be positive, got %d", ErrInvalidConfig, c.NfftMultiplier))
	}
	if _, modeErr := c.GetGradientMode(); modeErr != nil {
		err = multierr.Append(err, modeErr)
	}
	if c.Solver.Tolerance <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: solver.tolerance must be positive", ErrInvalidConfig))
	}
	if c.Solver.MaxIter < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: solver.max_iter must be positive", ErrInvalidConfig))
	}
	if c.Straighten.Tol <= 0 || c.Straighten.NIter < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: straighten needs positive tol and niter", ErrInvalidConfig))
	}
	if c.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers))
	}
	for _, s := range c.Surfaces {
		err = multierr.Append(err, s.Label().Validate())
	}
	return err
}

// GradientMode selects how the action gradient equations are formed.
type GradientMode int

const (
	// ModeReal matches the curve velocity at every real-space sample.
	ModeReal GradientMode = iota
	// ModeFourier matches the curve velocity mode by mode.
	ModeFourier
)

func (m GradientMode) String() string {
	switch m {
	case ModeReal:
		return "real"
	case ModeFourier:
		return "fourier"
	default:
		return fmt.Sprintf("GradientMode(%d)", int(m))
	}
}

func ParseGradientMode(s string) (GradientMode, error) {
	switch s {
	case "real":
		return ModeReal, nil
	case "fourier":
		return ModeFourier, nil
	default:
		return 0, fmt.Errorf("%w: %q, want \"real\" or \"fourier\"", ErrInvalidMode, s)
	}
}

// Rational is the rotation number p/q of a surface.
type Rational struct {
	P, Q int
}

func (r Rational) Iota() float64 { return float64(r.P) / float64(r.Q) }

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.P, r.Q) }

// Validate requires q >= 1, p >= 0 and gcd(p, q) == 1; otherwise the q
// curves cannot be folded into a single surface.
func (r Rational) Validate() error {
	if r.Q < 1 || r.P < 0 {
		return fmt.Errorf("%w: label %s", ErrInvalidConfig, r)
	}
	if gcd(r.P, r.Q) != 1 {
		return fmt.Errorf("%w: label %s", ErrNotCoprime, r)
	}
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Coord is a point in toroidal coordinates.
type Coord struct {
	Rho, Theta, Zeta float64
}

// FieldSample holds the contravariant field components at one Coord.
type FieldSample struct {
	BRho, BTheta, BZeta float64
}

// Orbit is one trial (action) curve. All four spectra have qN+1 modes in
// the angle ζ/q; TSin and RSin have pinned zero endpoints.
type Orbit struct {
	Nu   float64
	RCos []float64
	TSin []float64
	RSin []float64
	TCos []float64
}

// NewOrbit allocates a zero orbit with qN+1 modes.
func NewOrbit(qN int) Orbit {
	return Orbit{
		RCos: make([]float64, qN+1),
		TSin: make([]float64, qN+1),
		RSin: make([]float64, qN+1),
		TCos: make([]float64, qN+1),
	}
}

// Modes returns qN.
func (o Orbit) Modes() int { return len(o.RCos) - 1 }

func (o Orbit) Clone() Orbit {
	out := NewOrbit(o.Modes())
	out.Nu = o.Nu
	copy(out.RCos, o.RCos)
	copy(out.TSin, o.TSin)
	copy(out.RSin, o.RSin)
	copy(out.TCos, o.TCos)
	return out
}

// Radius returns the radial spectrum of the curve.
func (o Orbit) Radius() spectral.Spectrum1D {
	return spectral.Spectrum1D{Cos: o.RCos, Sin: o.RSin}
}

// Angle returns the poloidal-angle spectrum of the curve.
func (o Orbit) Angle() spectral.Spectrum1D {
	return spectral.Spectrum1D{Cos: o.TCos, Sin: o.TSin}
}

// Surface is a QFM surface in straight-field-line coordinates:
// rho(ϑ, ζ) from Radius and theta - ϑ from Angle.
type Surface struct {
	Label  Rational
	RunID  uuid.UUID
	Radius *spectral.Spectrum2D
	Angle  *spectral.Spectrum2D
	// Orbits are the converged trial curves in continuation order.
	Orbits []Orbit
}

// Straightened is the outcome of boundary straightening.
type Straightened struct {
	Rho        float64
	Iota       float64
	Lambda     *spectral.Spectrum2D
	Iterations int
	Converged  bool
}

var (
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrInvalidMode       = errors.New("invalid action gradient mode")
	ErrNotCoprime        = errors.New("p and q must be coprime")
	ErrOrbitNotFound     = errors.New("qfm orbit not found")
)
