package app

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"qfm-surfaces/internal/domain"
	"qfm-surfaces/pkg/qfm"
	"qfm-surfaces/pkg/spectral"
)

// SurfaceBuilder assembles QFM surfaces from families of action curves.
type SurfaceBuilder struct {
	logger *zap.Logger
	field  domain.FieldModel
	solver domain.RootSolver
	config *domain.Config
	runID  uuid.UUID
}

func NewSurfaceBuilder(logger *zap.Logger, field domain.FieldModel, solver domain.RootSolver, config *domain.Config) *SurfaceBuilder {
	runID := uuid.New()
	return &SurfaceBuilder{
		logger: logger.With(zap.Stringer("run", runID)),
		field:  field,
		solver: solver,
		config: config,
		runID:  runID,
	}
}

// RunID identifies the surfaces built by b.
func (b *SurfaceBuilder) RunID() uuid.UUID { return b.runID }

// Build finds fM = MM*pq_ntor action curves of the label, each one started
// from its predecessor shifted poloidally by dt = 2π/(q*fM), folds them into
// one surface and returns its spectrum in straight field line coordinates.
func (b *SurfaceBuilder) Build(ctx context.Context, label domain.Rational, rguess float64) (*domain.Surface, error) {
	if err := label.Validate(); err != nil {
		return nil, err
	}
	mode, err := b.config.GetGradientMode()
	if err != nil {
		return nil, err
	}

	mm := b.config.FFTMultiplier()
	pqNtor := b.config.PqNtor
	grad, err := qfm.NewActionGradient(b.logger, b.field, label, pqNtor, mm, mode)
	if err != nil {
		return nil, err
	}

	qN := grad.Modes()
	fM := mm * pqNtor
	dt := 2 * math.Pi / float64(label.Q) / float64(fM)

	// сложенная сетка q*fM x fM должна разрешать (pq_mpol, pq_ntor) до решения
	if rows := label.Q * fM; b.config.PqMpol > rows/2 || pqNtor > fM/2 {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d grid of %s",
			spectral.ErrModeOverflow, b.config.PqMpol, pqNtor, rows, fM, label)
	}

	log := b.logger.With(zap.Stringer("label", label))
	log.Info("Building surface",
		zap.Int("curves", fM),
		zap.Int("unknowns", grad.Len()),
		zap.Stringer("mode", mode))

	orbits := make([]domain.Orbit, fM)
	x0 := make([]float64, grad.Len())
	for j := range orbits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var guess domain.Orbit
		if j == 0 {
			guess = domain.NewOrbit(qN)
			guess.RCos[0] = rguess
		} else {
			guess = orbits[j-1].Clone()
			guess.TCos[0] += dt
		}
		if x0, err = qfm.Pack(x0, guess); err != nil {
			return nil, err
		}

		area := float64(j) * dt
		res, err := b.solver.Solve(grad.Func(area), x0)
		if err != nil {
			return nil, fmt.Errorf("solve curve %d of %s: %w", j, label, err)
		}
		if !res.Converged {
			return nil, fmt.Errorf("%w: pp=%d, qq=%d, a=%g (residual %g)",
				domain.ErrOrbitNotFound, label.P, label.Q, area, res.Residual)
		}
		if orbits[j], err = qfm.Unpack(res.X, qN); err != nil {
			return nil, err
		}

		log.Debug("Curve found",
			zap.Int("curve", j),
			zap.Float64("area", area),
			zap.Float64("nu", orbits[j].Nu),
			zap.Int("iterations", res.Iterations),
			zap.Float64("residual", res.Residual))
	}

	radius, angle, err := b.fold(orbits, label)
	if err != nil {
		return nil, err
	}

	log.Info("Surface built",
		zap.Float64("rho00", radius.Cos.At(0, 0)),
		zap.Float64("max_mode", domain.MaxNonZeroMode(radius)))

	return &domain.Surface{
		Label:  label,
		RunID:  b.runID,
		Radius: radius,
		Angle:  angle,
		Orbits: orbits,
	}, nil
}

// fold samples every curve on q*fM points per curve, drops the poloidal
// label TCos[0] from θ and transforms the folded (ϑ, ζ) grids.
func (b *SurfaceBuilder) fold(orbits []domain.Orbit, label domain.Rational) (*spectral.Spectrum2D, *spectral.Spectrum2D, error) {
	half := b.config.NfftMultiplier
	fM := len(orbits)
	nfft := label.Q * fM

	r := mat.NewDense(fM, nfft, nil)
	t := mat.NewDense(fM, nfft, nil)
	for c, o := range orbits {
		r.SetRow(c, spectral.Inverse1D(o.Radius(), half))
		ang := o.Angle().Clone()
		ang.Cos[0] = 0
		t.SetRow(c, spectral.Inverse1D(ang, half))
	}

	rs, err := qfm.Fold(r, label.P, label.Q)
	if err != nil {
		return nil, nil, err
	}
	ts, err := qfm.Fold(t, label.P, label.Q)
	if err != nil {
		return nil, nil, err
	}

	radius, err := spectral.Forward2D(rs, b.config.PqMpol, b.config.PqNtor)
	if err != nil {
		return nil, nil, err
	}
	angle, err := spectral.Forward2D(ts, b.config.PqMpol, b.config.PqNtor)
	if err != nil {
		return nil, nil, err
	}
	return radius, angle, nil
}

// BuildAll builds the targets on a pool of config.Workers goroutines.
// Results come back in target order; a failed label does not stop the
// others.
func (b *SurfaceBuilder) BuildAll(ctx context.Context, targets []domain.SurfaceTarget) []domain.SurfaceResult {
	results := make([]domain.SurfaceResult, len(targets))

	var wg sync.WaitGroup
	taskChan := make(chan domain.SurfaceTask, b.config.Workers*2)
	resultChan := make(chan domain.SurfaceResult, len(targets))

	// Запускаем воркеры
	for i := 0; i < max(1, b.config.Workers); i++ {
		wg.Add(1)
		b.logger.Debug("Starting worker", zap.Int("id", i))
		go b.worker(ctx, i, taskChan, resultChan, &wg)
	}

	// Отправляем задачи
	go func() {
		defer close(taskChan)
		for i, target := range targets {
			select {
			case taskChan <- domain.SurfaceTask{Index: i, Target: target}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Собираем результаты
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	done := make([]bool, len(targets))
	for result := range resultChan {
		results[result.Index] = result
		done[result.Index] = true
	}

	// задачи, не отправленные из-за отмены контекста
	for i, ok := range done {
		if !ok {
			results[i] = domain.SurfaceResult{Index: i, Target: targets[i], Err: ctx.Err()}
		}
	}
	return results
}

func (b *SurfaceBuilder) worker(ctx context.Context, id int, tasks <-chan domain.SurfaceTask, results chan<- domain.SurfaceResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range tasks {
		b.logger.Debug("Processing surface",
			zap.Int("worker", id),
			zap.Int("index", task.Index))

		rguess := task.Target.RGuess
		if rguess == 0 {
			rguess = b.config.RGuess
		}
		surface, err := b.Build(ctx, task.Target.Label(), rguess)
		if err != nil {
			b.logger.Error("Surface failed",
				zap.Stringer("label", task.Target.Label()),
				zap.Error(err))
		}

		results <- domain.SurfaceResult{
			Index:   task.Index,
			Target:  task.Target,
			Surface: surface,
			Err:     err,
		}
	}
}
