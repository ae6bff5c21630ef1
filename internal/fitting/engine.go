package fitting

import (
	"context"
	stderrors "errors"
	"log"
	"math"
	"time"

	"isofit/domain/isotherm"
	"isofit/internal/errors"
	"isofit/internal/solver"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Engine fits isotherm models to sample sets. It is stateless apart from its
// solver settings and safe for concurrent use.
type Engine struct {
	settings solver.Settings
}

// NewEngine creates an engine with the given solver settings
func NewEngine(settings solver.Settings) *Engine {
	return &Engine{settings: settings}
}

// Settings returns the solver settings the engine runs with
func (e *Engine) Settings() solver.Settings {
	return e.settings
}

// Guesses holds optional per-model starting points. Nil means the default.
type Guesses struct {
	Langmuir   *isotherm.Params
	Freundlich *isotherm.Params
}

// DefaultGuess returns the starting point used when none is given:
// (max Qe, 1) for Langmuir and (mean Qe, 1) for Freundlich.
func DefaultGuess(kind isotherm.ModelKind, samples isotherm.SampleSet) (isotherm.Params, error) {
	qe := stats.Float64Data(samples.Uptakes())
	switch kind {
	case isotherm.ModelLangmuir:
		maxQe, err := qe.Max()
		if err != nil {
			return isotherm.Params{}, errors.Wrap(errors.InvalidInput(err.Error()), "cannot derive Langmuir guess")
		}
		return isotherm.Params{First: maxQe, Second: 1}, nil
	case isotherm.ModelFreundlich:
		meanQe, err := qe.Mean()
		if err != nil {
			return isotherm.Params{}, errors.Wrap(errors.InvalidInput(err.Error()), "cannot derive Freundlich guess")
		}
		return isotherm.Params{First: meanQe, Second: 1}, nil
	}
	return isotherm.Params{}, errors.InvalidInputf("unknown isotherm model %q", kind)
}

// FitLangmuir fits Qe = Qmax*b*Ce/(1+b*Ce). A nil guess uses DefaultGuess.
func (e *Engine) FitLangmuir(ctx context.Context, samples isotherm.SampleSet, guess *isotherm.Params) (*isotherm.FitResult, error) {
	return e.fitWithDefault(ctx, isotherm.Langmuir{}, samples, guess)
}

// FitFreundlich fits Qe = Kf*Ce^(1/n). A nil guess uses DefaultGuess.
func (e *Engine) FitFreundlich(ctx context.Context, samples isotherm.SampleSet, guess *isotherm.Params) (*isotherm.FitResult, error) {
	return e.fitWithDefault(ctx, isotherm.Freundlich{}, samples, guess)
}

func (e *Engine) fitWithDefault(ctx context.Context, model isotherm.Model, samples isotherm.SampleSet, guess *isotherm.Params) (*isotherm.FitResult, error) {
	if err := samples.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "invalid sample set")
	}
	start := guess
	if start == nil {
		g, err := DefaultGuess(model.Kind(), samples)
		if err != nil {
			return nil, err
		}
		start = &g
	}
	return e.Fit(ctx, model, samples, *start)
}

// Fit runs the solver for any two-parameter model. Every failure, including
// samples the model is undefined for, is returned as an *errors.FitError.
func (e *Engine) Fit(ctx context.Context, model isotherm.Model, samples isotherm.SampleSet, guess isotherm.Params) (*isotherm.FitResult, error) {
	name := model.Kind().Title()
	if err := samples.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "invalid sample set")
	}
	if err := model.Check(samples); err != nil {
		return nil, errors.FitFailed(name, guess.Slice(), err)
	}

	start := time.Now()
	res, err := solver.LevenbergMarquardt(ctx, solver.Problem{
		X:        samples.Concentrations(),
		Y:        samples.Uptakes(),
		Model:    model.Eval,
		Gradient: model.Gradient,
		Init:     guess.Slice(),
	}, e.settings)
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Printf("[Isotherm] %s fit failed from %v: %v", name, guess.Slice(), err)
		return nil, errors.FitFailed(name, guess.Slice(), err)
	}

	log.Printf("[Isotherm] %s fit converged in %d iterations (%.2fms): %s=%g %s=%g",
		name, res.Iterations, float64(time.Since(start).Nanoseconds())/1e6,
		model.ParamNames()[0], res.Params[0], model.ParamNames()[1], res.Params[1])

	return &isotherm.FitResult{
		Model:        model.Kind(),
		Params:       isotherm.ParamsFromSlice(res.Params),
		Covariance:   symToRows(res.Covariance),
		InitialGuess: guess,
		Iterations:   res.Iterations,
		SSR:          res.SSR,
	}, nil
}

// FitAll fits both models concurrently and evaluates each successful fit.
// A failing model is recorded in its outcome and does not affect the other.
// The returned error is non-nil only for invalid samples or cancellation.
func (e *Engine) FitAll(ctx context.Context, samples isotherm.SampleSet, guesses Guesses) (*isotherm.Report, error) {
	if err := samples.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "invalid sample set")
	}

	report := &isotherm.Report{Samples: samples}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		outcome, err := e.outcome(gctx, isotherm.Langmuir{}, samples, guesses.Langmuir)
		report.Langmuir = outcome
		return err
	})
	g.Go(func() error {
		outcome, err := e.outcome(gctx, isotherm.Freundlich{}, samples, guesses.Freundlich)
		report.Freundlich = outcome
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// outcome returns an error only for cancellation; fit failures are recorded.
func (e *Engine) outcome(ctx context.Context, model isotherm.Model, samples isotherm.SampleSet, guess *isotherm.Params) (isotherm.ModelOutcome, error) {
	out := isotherm.ModelOutcome{Model: model.Kind()}
	fit, err := e.fitWithDefault(ctx, model, samples, guess)
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return out, err
		}
		out.Err = err
		out.Error = err.Error()
		return out, nil
	}
	metrics, err := Evaluate(samples.Uptakes(), isotherm.Predict(model, fit.Params, samples))
	if err != nil {
		out.Err = err
		out.Error = err.Error()
		return out, nil
	}
	out.Fit = fit
	out.Metrics = &metrics
	return out, nil
}

// symToRows copies the covariance into rows. Nil is returned when the
// covariance is not finite (fewer samples than parameters + 1).
func symToRows(s *mat.SymDense) [][]float64 {
	if s == nil {
		return nil
	}
	n := s.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			v := s.At(i, j)
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return nil
			}
			rows[i][j] = v
		}
	}
	return rows
}
