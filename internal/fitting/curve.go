package fitting

import (
	"isofit/domain/isotherm"

	"gonum.org/v1/gonum/floats"
)

// DefaultCurvePoints is the resolution of fitted curves.
const DefaultCurvePoints = 100

// Curve evaluates a fitted model on an evenly spaced grid over [0, maxCe].
func Curve(fit *isotherm.FitResult, maxCe float64, points int) (isotherm.SampleSet, error) {
	model, err := isotherm.ModelFor(fit.Model)
	if err != nil {
		return nil, err
	}
	if points < 2 {
		points = DefaultCurvePoints
	}
	grid := floats.Span(make([]float64, points), 0, maxCe)
	p := fit.Params.Slice()
	out := make(isotherm.SampleSet, points)
	for i, ce := range grid {
		out[i] = isotherm.Sample{Ce: ce, Qe: model.Eval(ce, p)}
	}
	return out, nil
}

// MaxConcentration returns the largest Ce in samples, or 0 for an empty set.
func MaxConcentration(samples isotherm.SampleSet) float64 {
	if len(samples) == 0 {
		return 0
	}
	return floats.Max(samples.Concentrations())
}
