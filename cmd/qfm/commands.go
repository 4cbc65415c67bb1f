package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"qfm-surfaces/internal/app"
	"qfm-surfaces/internal/domain"
	"qfm-surfaces/internal/field"
	"qfm-surfaces/internal/infrastructure"
	"qfm-surfaces/pkg/optimization"
	"qfm-surfaces/pkg/qfm"
)

type options struct {
	configPath string
	resume     bool
	rho        float64
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "qfm",
		Short:         "Quadratic-flux-minimizing surfaces of toroidal magnetic fields",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to config file (yaml or toml)")
	infrastructure.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newSurfaceCommand(opts), newStraightenCommand(opts))
	return root
}

// setup reads the config and builds the logger and the field model.
func setup(cmd *cobra.Command, opts *options) (*domain.Config, *zap.Logger, domain.FieldModel, error) {
	// Инициализация логгера
	boot := initLogger("info")
	defer boot.Sync()

	reader := infrastructure.NewFileConfigReader(boot, cmd.Flags())
	config, err := reader.ReadConfig(opts.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read config: %w", err)
	}

	// Обновляем уровень логирования
	logger := initLogger(config.LogLevel, config.LogFile)

	model, err := field.New(config.Field)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, nil, nil, err
	}
	return config, logger, model, nil
}

func newSurfaceCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surface",
		Short: "Build the QFM surfaces listed in the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, model, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			reader := infrastructure.NewTXTFileReader(logger)
			writer := infrastructure.NewTXTFileWriter(logger, infrastructure.ScientificFmt(config.Decimals))

			targets := make([]domain.SurfaceTarget, 0, len(config.Surfaces))
			for _, t := range config.Surfaces {
				path := filepath.Join(config.OutputDir, infrastructure.SurfaceFileName(t.Label()))
				if opts.resume {
					if s, err := reader.ReadSurface(path); err == nil {
						logger.Info("Surface already built, skipping",
							zap.Stringer("label", s.Label),
							zap.Stringer("run", s.RunID))
						continue
					}
				}
				targets = append(targets, t)
			}

			solver := optimization.NewLevenbergMarquardt(logger, optimization.LMConfigFrom(config.Solver))
			builder := app.NewSurfaceBuilder(logger, model, solver, config)

			logger.Info("Starting QFM surface construction",
				zap.Int("surfaces", len(targets)),
				zap.Int("workers", config.Workers),
				zap.String("mode", config.GradientMode))

			var errs error
			for _, res := range builder.BuildAll(cmd.Context(), targets) {
				if res.Err != nil {
					errs = multierr.Append(errs, fmt.Errorf("surface %s: %w", res.Target.Label(), res.Err))
					continue
				}
				filename := filepath.Join(config.OutputDir, infrastructure.SurfaceFileName(res.Target.Label()))
				if err := writer.WriteSurface(filename, res.Surface); err != nil {
					logger.Error("Failed to write result",
						zap.String("file", filename),
						zap.Error(err))
					errs = multierr.Append(errs, err)
					continue
				}
				logger.Info("Successfully written result", zap.String("file", filename))
			}

			if errs != nil {
				return errs
			}
			logger.Info("QFM surface construction completed successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Skip surfaces whose output file already exists")
	return cmd
}

func newStraightenCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "straighten",
		Short: "Straighten the field lines on a boundary surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, model, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			rho := config.Straighten.Rho
			if cmd.Flags().Changed("rho") {
				rho = opts.rho
			}

			s, err := qfm.NewStraightener(logger, model, config.PqMpol, config.PqNtor, config.FFTMultiplier())
			if err != nil {
				return err
			}
			res, err := s.Straighten(rho, config.Straighten.Tol, config.Straighten.NIter)
			if err != nil {
				return err
			}

			logger.Info("Boundary straightened",
				zap.Float64("rho", res.Rho),
				zap.Float64("iota", res.Iota),
				zap.Int("iterations", res.Iterations),
				zap.Bool("converged", res.Converged))

			writer := infrastructure.NewTXTFileWriter(logger, infrastructure.ScientificFmt(config.Decimals))
			filename := filepath.Join(config.OutputDir, "straightened.txt")
			if err := writer.WriteStraightened(filename, res); err != nil {
				return err
			}
			logger.Info("Successfully written result", zap.String("file", filename))
			return nil
		},
	}
	cmd.Flags().Float64Var(&opts.rho, "rho", 1, "Boundary surface label")
	return cmd
}
