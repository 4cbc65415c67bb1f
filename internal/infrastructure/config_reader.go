package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"qfm-surfaces/internal/domain"
)

type FileConfigReader struct {
	logger *zap.Logger
	flags  *pflag.FlagSet
}

// NewFileConfigReader reads YAML or TOML configs. Flags that were set on
// the command line override the file.
func NewFileConfigReader(logger *zap.Logger, flags *pflag.FlagSet) *FileConfigReader {
	return &FileConfigReader{logger: logger, flags: flags}
}

func (r *FileConfigReader) ReadConfig(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config domain.Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", domain.ErrInvalidFileFormat, ext)
	}

	// Применяем аргументы командной строки
	if err := ApplyFlags(&config, r.flags); err != nil {
		return nil, err
	}

	// Устанавливаем значения по умолчанию
	setDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	r.logger.Debug("Config loaded",
		zap.String("path", path),
		zap.Int("surfaces", len(config.Surfaces)),
		zap.String("mode", config.GradientMode))

	return &config, nil
}

// RegisterFlags declares the overridable config keys on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("workers", 0, "Number of workers")
	fs.Int("pq-mpol", 0, "Poloidal resolution of the surface spectrum")
	fs.Int("pq-ntor", 0, "Toroidal resolution of the surface spectrum")
	fs.Int("nfft-multiplier", 0, "FFT oversampling factor")
	fs.String("mode", "", "Action gradient mode (real or fourier)")
	fs.Float64("tolerance", 0, "Root solver tolerance")
	fs.Int("max-iter", 0, "Root solver iteration limit")
	fs.String("log-level", "", "Log level")
	fs.String("output-dir", "", "Directory for result files")
}

// ApplyFlags copies every flag that was set explicitly into config.
func ApplyFlags(config *domain.Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	var err error
	setInt := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	setString := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	setFloat := func(name string, dst *float64) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetFloat64(name)
		}
	}

	setInt("workers", &config.Workers)
	setInt("pq-mpol", &config.PqMpol)
	setInt("pq-ntor", &config.PqNtor)
	setInt("nfft-multiplier", &config.NfftMultiplier)
	setString("mode", &config.GradientMode)
	setFloat("tolerance", &config.Solver.Tolerance)
	setInt("max-iter", &config.Solver.MaxIter)
	setString("log-level", &config.LogLevel)
	setString("output-dir", &config.OutputDir)
	return err
}

func setDefaults(config *domain.Config) {
	if config.PqMpol == 0 {
		config.PqMpol = 8
	}
	if config.PqNtor == 0 {
		config.PqNtor = 4
	}
	if config.NfftMultiplier == 0 {
		config.NfftMultiplier = 2
	}
	if config.GradientMode == "" {
		config.GradientMode = domain.ModeReal.String()
	}
	if config.RGuess == 0 {
		config.RGuess = 0.5
	}
	if config.Solver.Tolerance == 0 {
		config.Solver.Tolerance = 1e-10
	}
	if config.Solver.MaxIter == 0 {
		config.Solver.MaxIter = 100
	}
	if config.Straighten.Rho == 0 {
		config.Straighten.Rho = 1
	}
	if config.Straighten.Tol == 0 {
		config.Straighten.Tol = 1e-9
	}
	if config.Straighten.NIter == 0 {
		config.Straighten.NIter = 10
	}
	if config.Field.Nfp == 0 {
		config.Field.Nfp = 1
	}
	if config.Workers == 0 {
		config.Workers = max(1, runtime.NumCPU()-1)
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	if config.Decimals == 0 {
		config.Decimals = 15
	}
}
