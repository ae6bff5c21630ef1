package fitting

import (
	"math"

	"isofit/domain/isotherm"
	"isofit/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// Evaluate computes R², RMSE and MAE of predicted against observed.
//
// R² = 1 - SS_res/SS_tot with SS_tot taken around the observed mean. When
// every observed value is equal SS_tot is zero and R² is returned undefined.
func Evaluate(observed, predicted []float64) (isotherm.Metrics, error) {
	if len(observed) == 0 {
		return isotherm.Metrics{}, errors.InvalidInput("cannot evaluate an empty series")
	}
	if len(observed) != len(predicted) {
		return isotherm.Metrics{}, errors.InvalidInputf("observed has %d values but predicted has %d", len(observed), len(predicted))
	}
	for i := range observed {
		if !isFinite(observed[i]) || !isFinite(predicted[i]) {
			return isotherm.Metrics{}, errors.InvalidInputf("value %d is not finite", i+1)
		}
	}

	residuals := make([]float64, len(observed))
	floats.SubTo(residuals, observed, predicted)

	squared := make(stats.Float64Data, len(residuals))
	absolute := make(stats.Float64Data, len(residuals))
	for i, r := range residuals {
		squared[i] = r * r
		absolute[i] = math.Abs(r)
	}

	mse, err := squared.Mean()
	if err != nil {
		return isotherm.Metrics{}, errors.Wrap(err, "mean squared error")
	}
	mae, err := absolute.Mean()
	if err != nil {
		return isotherm.Metrics{}, errors.Wrap(err, "mean absolute error")
	}
	ssRes, err := squared.Sum()
	if err != nil {
		return isotherm.Metrics{}, errors.Wrap(err, "residual sum of squares")
	}

	return isotherm.Metrics{
		R2:   rSquared(observed, ssRes),
		RMSE: math.Sqrt(mse),
		MAE:  mae,
	}, nil
}

func rSquared(observed []float64, ssRes float64) isotherm.Score {
	if isConstant(observed) {
		return isotherm.UndefinedScore()
	}
	mean, err := stats.Mean(observed)
	if err != nil {
		return isotherm.UndefinedScore()
	}
	var ssTot float64
	for _, v := range observed {
		d := v - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return isotherm.UndefinedScore()
	}
	return isotherm.DefinedScore(1 - ssRes/ssTot)
}

// isConstant compares exactly so that repeated values such as 0.1 are not
// turned into a tiny non-zero SS_tot by rounding in the mean.
func isConstant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
