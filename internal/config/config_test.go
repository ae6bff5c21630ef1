package config

import (
	"path/filepath"
	"testing"
	"time"

	"isofit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 151.16, cfg.Experiment.MolecularWeight)
	assert.Equal(t, 5.0, cfg.Experiment.AdsorbentConcGL)
	assert.Equal(t, DefaultInitialConcColumn, cfg.Columns.InitialConc)
	assert.Equal(t, 200, cfg.Solver.MaxIterations)
	assert.Equal(t, "analytic", cfg.Solver.Jacobian)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("INPUT_FILE", "data/TJ700-ACP-raw.csv")
	t.Setenv("MOLECULAR_WEIGHT", "94.11")
	t.Setenv("ADSORBENT_CONC_G_L", "2.5")
	t.Setenv("COL_AFTER_PEAK_AREA", "area_after")
	t.Setenv("SOLVER_MAX_ITERATIONS", "50")
	t.Setenv("SOLVER_JACOBIAN", "Numeric")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("WRITE_XLSX", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/TJ700-ACP-raw.csv", cfg.Input.Path)
	assert.Equal(t, 94.11, cfg.Experiment.MolecularWeight)
	assert.Equal(t, 2.5, cfg.Experiment.AdsorbentConcGL)
	assert.Equal(t, "area_after", cfg.Columns.AfterPeakArea)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.True(t, cfg.Output.WriteXLSX)
	require.NoError(t, cfg.ValidateInput())

	settings := cfg.SolverSettings()
	assert.Equal(t, 50, settings.MaxIterations)
	assert.True(t, settings.NumericJacobian)
}

func TestLoad_MalformedNumber(t *testing.T) {
	t.Setenv("MOLECULAR_WEIGHT", "heavy")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	assert.Contains(t, err.Error(), "MOLECULAR_WEIGHT")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero molecular weight": func(c *Config) { c.Experiment.MolecularWeight = 0 },
		"negative dosage":       func(c *Config) { c.Experiment.AdsorbentConcGL = -1 },
		"empty column":          func(c *Config) { c.Columns.InitialPeakArea = "" },
		"no iterations":         func(c *Config) { c.Solver.MaxIterations = 0 },
		"unknown jacobian":      func(c *Config) { c.Solver.Jacobian = "secant" },
		"unknown chart format":  func(c *Config) { c.Output.ChartFormat = "gif" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}

	cfg := Default()
	assert.Error(t, cfg.ValidateInput(), "input path is required")
}

func TestArtifactStem(t *testing.T) {
	cfg := Default()
	cfg.Input.Path = filepath.Join("runs", "TJ700-ACP-raw.csv")
	assert.Equal(t, filepath.Join("runs", "TJ700-ACP-raw.csv"), cfg.ArtifactStem())

	cfg.Output.Dir = "out"
	assert.Equal(t, filepath.Join("out", "TJ700-ACP-raw.csv"), cfg.ArtifactStem())

	cfg.Input.Path = "https://lab.example.org/api/runs/7"
	assert.True(t, cfg.IsRemoteInput())
	assert.Equal(t, filepath.Join("out", "remote"), cfg.ArtifactStem())
}
