package domain

// FieldModel evaluates the magnetic field at a batch of toroidal
// coordinates. Implementations must be deterministic; models shared by the
// batch builder must also be safe for concurrent use.
type FieldModel interface {
	EvaluateMany(coords []Coord, dst []FieldSample)
	// Nfp is the number of toroidal field periods.
	Nfp() int
}

// ResidualFunc fills dst with the residual of the equations at x.
type ResidualFunc func(dst, x []float64)

// RootSolver drives a vector residual to zero. Non-convergence is reported
// through SolverResult.Converged, not as an error.
type RootSolver interface {
	Solve(f ResidualFunc, x0 []float64) (*SolverResult, error)
}

type SolverResult struct {
	X           []float64
	Converged   bool
	Residual    float64 // max |f| at X
	Iterations  int
	Evaluations int
}

// SurfaceTask задача построения одной поверхности
type SurfaceTask struct {
	Index  int
	Target SurfaceTarget
}

type SurfaceResult struct {
	Index   int
	Target  SurfaceTarget
	Surface *Surface
	Err     error
}
