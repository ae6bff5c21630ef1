package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"isofit/internal/errors"
	"isofit/internal/solver"
)

// Config represents the complete application configuration
type Config struct {
	Input      InputConfig
	Experiment ExperimentConfig
	Columns    ColumnConfig
	Solver     SolverConfig
	Output     OutputConfig
	Source     SourceConfig
	Database   DatabaseConfig
	Server     ServerConfig
}

// InputConfig holds the raw data location (file path or http(s) URL)
type InputConfig struct {
	Path string
}

// ExperimentConfig holds the constants of one adsorption experiment
type ExperimentConfig struct {
	MolecularWeight float64 // g/mol, converts mM to mg/L
	AdsorbentConcGL float64 // adsorbent dosage, g/L
	AdsorbentName   string
	AdsorbateName   string
}

// ColumnConfig maps the raw table headers
type ColumnConfig struct {
	InitialConc     string
	InitialPeakArea string
	AfterPeakArea   string
}

// SolverConfig bounds the nonlinear solver
type SolverConfig struct {
	MaxIterations int
	Tolerance     float64
	Jacobian      string // "analytic" or "numeric"
}

// OutputConfig controls which artifacts are written and where
type OutputConfig struct {
	Dir         string // empty means next to the input file
	WriteXLSX   bool
	ChartFormat string // png or svg
	CurvePoints int
	Report      bool
}

// SourceConfig holds settings for http(s) JSON inputs
type SourceConfig struct {
	DataPath string // gjson path of the records array
	Token    string // bearer token, optional
	Timeout  time.Duration
}

// DatabaseConfig holds the optional run archive connection
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// Default column names of the raw HPLC table
const (
	DefaultInitialConcColumn     = "initial_conc(mM)"
	DefaultInitialPeakAreaColumn = "initial_peak_area"
	DefaultAfterPeakAreaColumn   = "after_peak_area"
)

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			MolecularWeight: 151.16,
			AdsorbentConcGL: 5,
			AdsorbentName:   "TJ700",
			AdsorbateName:   "ACP",
		},
		Columns: ColumnConfig{
			InitialConc:     DefaultInitialConcColumn,
			InitialPeakArea: DefaultInitialPeakAreaColumn,
			AfterPeakArea:   DefaultAfterPeakAreaColumn,
		},
		Solver: SolverConfig{
			MaxIterations: solver.DefaultSettings().MaxIterations,
			Tolerance:     solver.DefaultSettings().GradientTol,
			Jacobian:      "analytic",
		},
		Output: OutputConfig{
			ChartFormat: "png",
			CurvePoints: 100,
			Report:      true,
		},
		Source: SourceConfig{
			DataPath: "data",
			Timeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "release",
		},
	}
}

// Load reads configuration from environment variables on top of Default.
// Validation is left to the caller so that flags can override first.
func Load() (*Config, error) {
	cfg := Default()

	cfg.Input.Path = getEnvOrDefault("INPUT_FILE", cfg.Input.Path)

	var err error
	if cfg.Experiment.MolecularWeight, err = getEnvFloat("MOLECULAR_WEIGHT", cfg.Experiment.MolecularWeight); err != nil {
		return nil, err
	}
	if cfg.Experiment.AdsorbentConcGL, err = getEnvFloat("ADSORBENT_CONC_G_L", cfg.Experiment.AdsorbentConcGL); err != nil {
		return nil, err
	}
	cfg.Experiment.AdsorbentName = getEnvOrDefault("ADSORBENT_NAME", cfg.Experiment.AdsorbentName)
	cfg.Experiment.AdsorbateName = getEnvOrDefault("ADSORBATE_NAME", cfg.Experiment.AdsorbateName)

	cfg.Columns.InitialConc = getEnvOrDefault("COL_INITIAL_CONC", cfg.Columns.InitialConc)
	cfg.Columns.InitialPeakArea = getEnvOrDefault("COL_INITIAL_PEAK_AREA", cfg.Columns.InitialPeakArea)
	cfg.Columns.AfterPeakArea = getEnvOrDefault("COL_AFTER_PEAK_AREA", cfg.Columns.AfterPeakArea)

	if cfg.Solver.MaxIterations, err = getEnvInt("SOLVER_MAX_ITERATIONS", cfg.Solver.MaxIterations); err != nil {
		return nil, err
	}
	if cfg.Solver.Tolerance, err = getEnvFloat("SOLVER_TOLERANCE", cfg.Solver.Tolerance); err != nil {
		return nil, err
	}
	cfg.Solver.Jacobian = strings.ToLower(getEnvOrDefault("SOLVER_JACOBIAN", cfg.Solver.Jacobian))

	cfg.Output.Dir = getEnvOrDefault("OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.WriteXLSX = getEnvBoolOrDefault("WRITE_XLSX", cfg.Output.WriteXLSX)
	cfg.Output.ChartFormat = strings.ToLower(getEnvOrDefault("CHART_FORMAT", cfg.Output.ChartFormat))
	if cfg.Output.CurvePoints, err = getEnvInt("CURVE_POINTS", cfg.Output.CurvePoints); err != nil {
		return nil, err
	}
	cfg.Output.Report = getEnvBoolOrDefault("WRITE_REPORT", cfg.Output.Report)

	cfg.Source.DataPath = getEnvOrDefault("SOURCE_DATA_PATH", cfg.Source.DataPath)
	cfg.Source.Token = getEnvOrDefault("SOURCE_TOKEN", "")
	cfg.Source.Timeout = getEnvDurationOrDefault("SOURCE_TIMEOUT", cfg.Source.Timeout)

	cfg.Database.URL = getEnvOrDefault("DATABASE_URL", "")

	cfg.Server.Port = getEnvOrDefault("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnvOrDefault("GIN_MODE", cfg.Server.GinMode)

	return cfg, nil
}

// Validate checks the settings needed to derive and fit samples
func (c *Config) Validate() error {
	if c.Experiment.MolecularWeight <= 0 {
		return errors.ConfigInvalid("molecular weight must be positive")
	}
	if c.Experiment.AdsorbentConcGL <= 0 {
		return errors.ConfigInvalid("adsorbent concentration must be positive")
	}
	if c.Columns.InitialConc == "" || c.Columns.InitialPeakArea == "" || c.Columns.AfterPeakArea == "" {
		return errors.ConfigInvalid("column names must not be empty")
	}
	if c.Solver.MaxIterations <= 0 {
		return errors.ConfigInvalid("solver max iterations must be positive")
	}
	if c.Solver.Tolerance <= 0 {
		return errors.ConfigInvalid("solver tolerance must be positive")
	}
	switch c.Solver.Jacobian {
	case "analytic", "numeric":
	default:
		return errors.ConfigInvalid("solver jacobian must be analytic or numeric, got " + strconv.Quote(c.Solver.Jacobian))
	}
	switch c.Output.ChartFormat {
	case "png", "svg", "pdf":
	default:
		return errors.ConfigInvalid("chart format must be png, svg or pdf, got " + strconv.Quote(c.Output.ChartFormat))
	}
	if c.Output.CurvePoints < 2 {
		return errors.ConfigInvalid("curve points must be at least 2")
	}
	return nil
}

// ValidateInput additionally requires an input path
func (c *Config) ValidateInput() error {
	if c.Input.Path == "" {
		return errors.ConfigInvalid("INPUT_FILE or an input argument is required")
	}
	return c.Validate()
}

// SolverSettings converts the solver section for the fitting engine
func (c *Config) SolverSettings() solver.Settings {
	s := solver.DefaultSettings()
	s.MaxIterations = c.Solver.MaxIterations
	s.GradientTol = c.Solver.Tolerance
	s.StepTol = c.Solver.Tolerance
	s.NumericJacobian = c.Solver.Jacobian == "numeric"
	return s
}

// IsRemoteInput reports whether the input is an http(s) URL
func (c *Config) IsRemoteInput() bool {
	p := strings.ToLower(c.Input.Path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// ArtifactStem returns the path prefix shared by all output files:
// the input file name inside the output directory.
func (c *Config) ArtifactStem() string {
	name := filepath.Base(c.Input.Path)
	if c.IsRemoteInput() {
		name = "remote"
	}
	dir := c.Output.Dir
	if dir == "" {
		if c.IsRemoteInput() {
			dir = "."
		} else {
			dir = filepath.Dir(c.Input.Path)
		}
	}
	return filepath.Join(dir, name)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt rejects malformed numbers instead of silently using the default
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be an integer, got " + strconv.Quote(value))
	}
	return intValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be a number, got " + strconv.Quote(value))
	}
	return floatValue, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
