package solver

import (
	"context"
	"errors"
	"math"
	"testing"
)

func langmuir(x float64, p []float64) float64 {
	return p[0] * p[1] * x / (1 + p[1]*x)
}

func langmuirGrad(dst []float64, x float64, p []float64) {
	den := 1 + p[1]*x
	dst[0] = p[1] * x / den
	dst[1] = p[0] * x / (den * den)
}

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / math.Abs(want)
}

// TestLevenbergMarquardt_NumericJacobian recovers an exponential decay
// through central differences only
func TestLevenbergMarquardt_NumericJacobian(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * math.Exp(-p[1]*x) }

	xs := make([]float64, 10)
	ys := make([]float64, 10)
	for i := range xs {
		xs[i] = float64(i) * 0.5
		ys[i] = model(xs[i], []float64{3, 0.7})
	}

	res, err := LevenbergMarquardt(context.Background(), Problem{X: xs, Y: ys, Model: model, Init: []float64{1, 1}}, DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if relErr(res.Params[0], 3) > 1e-6 || relErr(res.Params[1], 0.7) > 1e-6 {
		t.Errorf("expected (3, 0.7), got %v", res.Params)
	}
	if res.SSR > 1e-16 {
		t.Errorf("expected zero residuals, got ssr=%g", res.SSR)
	}
}

// TestLevenbergMarquardt_AnalyticAndNumericAgree fits the same data both ways
func TestLevenbergMarquardt_AnalyticAndNumericAgree(t *testing.T) {
	xs := []float64{0.5, 1, 2, 4, 8, 16}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = langmuir(x, []float64{12.5, 0.35})
	}
	prob := Problem{X: xs, Y: ys, Model: langmuir, Gradient: langmuirGrad, Init: []float64{ys[len(ys)-1], 1}}

	analytic, err := LevenbergMarquardt(context.Background(), prob, DefaultSettings())
	if err != nil {
		t.Fatalf("analytic: %v", err)
	}

	settings := DefaultSettings()
	settings.NumericJacobian = true
	numeric, err := LevenbergMarquardt(context.Background(), prob, settings)
	if err != nil {
		t.Fatalf("numeric: %v", err)
	}

	for i, want := range []float64{12.5, 0.35} {
		if relErr(analytic.Params[i], want) > 1e-6 {
			t.Errorf("analytic param %d: expected %g, got %g", i, want, analytic.Params[i])
		}
		if relErr(numeric.Params[i], want) > 1e-6 {
			t.Errorf("numeric param %d: expected %g, got %g", i, want, numeric.Params[i])
		}
	}
}

func TestLevenbergMarquardt_Covariance(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 3.2, 3.8, 4.1, 4.3}

	res, err := LevenbergMarquardt(context.Background(), Problem{X: xs, Y: ys, Model: langmuir, Gradient: langmuirGrad, Init: []float64{4.3, 1}}, DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Covariance == nil {
		t.Fatal("expected a covariance matrix")
	}
	if n := res.Covariance.SymmetricDim(); n != 2 {
		t.Fatalf("expected 2x2 covariance, got %dx%d", n, n)
	}
	for i := 0; i < 2; i++ {
		if v := res.Covariance.At(i, i); v <= 0 || math.IsInf(v, 0) {
			t.Errorf("variance %d should be positive and finite, got %g", i, v)
		}
	}
}

// TestLevenbergMarquardt_Singular uses data at Ce=0 only, where both
// Langmuir derivatives vanish
func TestLevenbergMarquardt_Singular(t *testing.T) {
	prob := Problem{
		X:        []float64{0, 0, 0},
		Y:        []float64{0, 0, 0},
		Model:    langmuir,
		Gradient: langmuirGrad,
		Init:     []float64{1, 1},
	}
	_, err := LevenbergMarquardt(context.Background(), prob, DefaultSettings())
	if !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestLevenbergMarquardt_IterationBudget(t *testing.T) {
	prob := Problem{
		X:        []float64{1, 2, 3, 4, 5},
		Y:        []float64{2, 3.2, 3.8, 4.1, 4.3},
		Model:    langmuir,
		Gradient: langmuirGrad,
		Init:     []float64{4.3, 1},
	}
	settings := DefaultSettings()
	settings.MaxIterations = 2

	_, err := LevenbergMarquardt(context.Background(), prob, settings)
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("expected ErrMaxIterations, got %v", err)
	}
}

func TestLevenbergMarquardt_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prob := Problem{
		X:     []float64{1, 2, 3, 4, 5},
		Y:     []float64{2, 3.2, 3.8, 4.1, 4.3},
		Model: langmuir,
		Init:  []float64{4.3, 1},
	}
	_, err := LevenbergMarquardt(ctx, prob, DefaultSettings())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLevenbergMarquardt_InvalidProblem(t *testing.T) {
	cases := map[string]Problem{
		"nil model":       {X: []float64{1}, Y: []float64{1}, Init: []float64{1, 1}},
		"no observations": {Model: langmuir, Init: []float64{1, 1}},
		"length mismatch": {X: []float64{1, 2}, Y: []float64{1}, Model: langmuir, Init: []float64{1, 1}},
		"nan guess":       {X: []float64{1}, Y: []float64{1}, Model: langmuir, Init: []float64{math.NaN(), 1}},
	}
	for name, prob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LevenbergMarquardt(context.Background(), prob, DefaultSettings())
			if !errors.Is(err, ErrInvalidProblem) {
				t.Errorf("expected ErrInvalidProblem, got %v", err)
			}
		})
	}
}

func TestLevenbergMarquardt_NonFiniteStart(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * math.Pow(x, 1/p[1]) }
	prob := Problem{X: []float64{0, 1, 2}, Y: []float64{0, 1, 2}, Model: model, Init: []float64{1, -1}}

	_, err := LevenbergMarquardt(context.Background(), prob, DefaultSettings())
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}
