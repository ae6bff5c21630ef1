package app

import (
	"context"
	"log"
	"os"
	"time"

	"isofit/adapters/api"
	"isofit/adapters/excel"
	"isofit/domain/isotherm"
	"isofit/internal/chart"
	"isofit/internal/config"
	"isofit/internal/dataset"
	"isofit/internal/errors"
	"isofit/internal/fitting"
	"isofit/internal/report"
	"isofit/ports"
)

// FittingService runs the whole pipeline: load raw rows, derive samples,
// fit both isotherms, then write the artifacts and archive the run.
type FittingService struct {
	cfg    *config.Config
	engine *fitting.Engine
	runs   ports.FitRunRepository // nil disables archiving
}

// RunResult is what one pipeline execution produced
type RunResult struct {
	Run       *isotherm.FitRun
	Derived   *dataset.Derived
	Artifacts []string
}

// NewFittingService creates a fitting service. runs may be nil.
func NewFittingService(cfg *config.Config, runs ports.FitRunRepository) *FittingService {
	return &FittingService{
		cfg:    cfg,
		engine: fitting.NewEngine(cfg.SolverSettings()),
		runs:   runs,
	}
}

// Config returns the service configuration
func (s *FittingService) Config() *config.Config {
	return s.cfg
}

// Runs returns the run archive, or nil when none is configured
func (s *FittingService) Runs() ports.FitRunRepository {
	return s.runs
}

// Experiment labels the configured experiment
func (s *FittingService) Experiment() isotherm.Experiment {
	return isotherm.Experiment{
		Adsorbent:       s.cfg.Experiment.AdsorbentName,
		Adsorbate:       s.cfg.Experiment.AdsorbateName,
		MolecularWeight: s.cfg.Experiment.MolecularWeight,
		DoseGL:          s.cfg.Experiment.AdsorbentConcGL,
	}
}

// LoadTable reads the configured input: a CSV/XLSX file or an http(s) JSON
// endpoint.
func (s *FittingService) LoadTable(ctx context.Context) (*excel.Table, error) {
	if s.cfg.IsRemoteInput() {
		source := &api.APIDataSource{
			BaseURL:  s.cfg.Input.Path,
			DataPath: s.cfg.Source.DataPath,
			Timeout:  s.cfg.Source.Timeout,
		}
		if s.cfg.Source.Token != "" {
			source.AuthMethod = "bearer"
			source.AuthToken = s.cfg.Source.Token
		}
		table, _, err := api.NewAPIReader(source).FetchTable(ctx)
		return table, err
	}
	return excel.NewDataReader(s.cfg.Input.Path).ReadData()
}

// Derive loads the input and derives the samples
func (s *FittingService) Derive(ctx context.Context) (*dataset.Derived, error) {
	table, err := s.LoadTable(ctx)
	if err != nil {
		return nil, err
	}
	return dataset.Derive(table, s.columns(), s.constants())
}

// WriteDerived writes the augmented table next to the other artifacts
func (s *FittingService) WriteDerived(derived *dataset.Derived) ([]string, error) {
	if err := s.ensureOutputDir(); err != nil {
		return nil, err
	}
	stem := s.cfg.ArtifactStem()
	sheet := derived.Sheet()

	paths := []string{stem + "-calculated.csv"}
	if err := excel.WriteCSV(paths[0], sheet); err != nil {
		return nil, err
	}
	if s.cfg.Output.WriteXLSX {
		path := stem + "-calculated.xlsx"
		if err := excel.WriteXLSX(path, sheet); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FitSamples fits both models. maxIterations > 0 overrides the configured
// budget for this call only.
func (s *FittingService) FitSamples(ctx context.Context, samples isotherm.SampleSet, guesses fitting.Guesses, maxIterations int) (*isotherm.Report, error) {
	engine := s.engine
	if maxIterations > 0 {
		settings := engine.Settings()
		settings.MaxIterations = maxIterations
		engine = fitting.NewEngine(settings)
	}
	return engine.FitAll(ctx, samples, guesses)
}

// Run executes the full pipeline for the configured input
func (s *FittingService) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()
	if err := s.cfg.ValidateInput(); err != nil {
		return nil, err
	}

	derived, err := s.Derive(ctx)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.WriteDerived(derived)
	if err != nil {
		return nil, err
	}

	fitReport, err := s.FitSamples(ctx, derived.Samples(), fitting.Guesses{}, 0)
	if err != nil {
		return nil, err
	}

	stem := s.cfg.ArtifactStem()
	exp := s.Experiment()
	chartPath := stem + "-Adsorption Isotherms." + s.cfg.Output.ChartFormat
	err = chart.Save(chartPath, s.cfg.Output.ChartFormat, chart.Input{
		Title:       exp.Title(),
		Report:      fitReport,
		CurvePoints: s.cfg.Output.CurvePoints,
	})
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, chartPath)

	if s.cfg.Output.Report {
		paths, err := report.WriteFiles(stem, report.Document{
			Experiment: exp,
			Source:     s.cfg.Input.Path,
			Report:     fitReport,
			ChartFile:  chartPath,
		})
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, paths...)
	}

	run := isotherm.NewFitRun(s.cfg.Input.Path, exp, *fitReport)
	if s.runs != nil {
		// Artifacts are already on disk; a failed archive insert is reported but not fatal.
		if err := s.runs.Create(ctx, run); err != nil {
			log.Printf("[FittingService] Warning: failed to archive run %s: %v", run.ID, err)
		} else {
			log.Printf("[FittingService] Archived run %s", run.ID)
		}
	}

	log.Printf("[FittingService] Pipeline finished in %.2fms (%d samples, %d artifacts)",
		float64(time.Since(startTime).Nanoseconds())/1e6, len(derived.Rows), len(artifacts))

	return &RunResult{Run: run, Derived: derived, Artifacts: artifacts}, nil
}

// constants returns the conversion factors of the configured experiment
func (s *FittingService) constants() dataset.Constants {
	return dataset.Constants{
		MolecularWeight: s.cfg.Experiment.MolecularWeight,
		AdsorbentConcGL: s.cfg.Experiment.AdsorbentConcGL,
	}
}

func (s *FittingService) columns() dataset.Columns {
	return dataset.Columns{
		InitialConc:     s.cfg.Columns.InitialConc,
		InitialPeakArea: s.cfg.Columns.InitialPeakArea,
		AfterPeakArea:   s.cfg.Columns.AfterPeakArea,
	}
}

func (s *FittingService) ensureOutputDir() error {
	if s.cfg.Output.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", s.cfg.Output.Dir)
	}
	return nil
}
