package domain

// ConfigReader интерфейс для чтения конфигурации
type ConfigReader interface {
	ReadConfig(path string) (*Config, error)
}

// SurfaceWriter интерфейс для записи результатов
type SurfaceWriter interface {
	WriteSurface(filename string, surface *Surface) error
	WriteStraightened(filename string, result *Straightened) error
}

// SurfaceReader reads back spectra written by a SurfaceWriter.
type SurfaceReader interface {
	ReadSurface(filename string) (*Surface, error)
}
