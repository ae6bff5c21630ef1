// Package solver implements damped nonlinear least squares for small
// curve-fitting problems.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMaxIterations is returned when the iteration budget runs out before convergence.
	ErrMaxIterations = errors.New("solver did not converge within the iteration budget")
	// ErrSingular is returned when JᵀJ is not positive definite at the solution,
	// i.e. the parameters are not identifiable from the data.
	ErrSingular = errors.New("model is singular for the given data")
	// ErrNonFinite is returned when the model produces NaN or Inf.
	ErrNonFinite = errors.New("model produced a non-finite value")
	// ErrInvalidProblem is returned for malformed inputs.
	ErrInvalidProblem = errors.New("invalid least-squares problem")
)

// maxCondition bounds the condition number of JᵀJ accepted for the covariance.
const maxCondition = 1e15

// Func evaluates the model at x for parameters p.
type Func func(x float64, p []float64) float64

// GradFunc writes the partial derivatives of the model with respect to p into dst.
type GradFunc func(dst []float64, x float64, p []float64)

// Problem describes min_p Σ (Model(X[i], p) - Y[i])².
type Problem struct {
	X, Y     []float64
	Model    Func
	Gradient GradFunc // optional; central differences are used when nil
	Init     []float64
}

// Settings bounds and tunes the solver.
type Settings struct {
	MaxIterations  int
	GradientTol    float64 // stop when ‖Jᵀr‖∞ <= GradientTol
	StepTol        float64 // stop when ‖h‖ <= StepTol(‖p‖ + StepTol)
	InitialDamping float64 // τ, μ0 = τ·max diag(JᵀJ)
	// NumericJacobian forces finite differences even when Gradient is set.
	NumericJacobian bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:  200,
		GradientTol:    1e-12,
		StepTol:        1e-12,
		InitialDamping: 1e-3,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.GradientTol <= 0 {
		s.GradientTol = d.GradientTol
	}
	if s.StepTol <= 0 {
		s.StepTol = d.StepTol
	}
	if s.InitialDamping <= 0 {
		s.InitialDamping = d.InitialDamping
	}
	return s
}

// Result is a converged estimate.
type Result struct {
	Params     []float64
	Covariance *mat.SymDense
	Iterations int
	SSR        float64
}

// LevenbergMarquardt minimizes the squared residuals of prob starting at
// prob.Init. The damping parameter follows Nielsen's update rule.
func LevenbergMarquardt(ctx context.Context, prob Problem, settings Settings) (*Result, error) {
	if err := prob.validate(); err != nil {
		return nil, err
	}
	settings = settings.withDefaults()

	m, n := len(prob.X), len(prob.Init)
	p := make([]float64, n)
	copy(p, prob.Init)

	s := &state{prob: prob, numeric: settings.NumericJacobian || prob.Gradient == nil}
	s.alloc(m, n)
	if err := s.evaluate(p); err != nil {
		return nil, err
	}

	mu := settings.InitialDamping * maxDiag(s.a)
	if mu <= 0 {
		mu = settings.InitialDamping
	}
	nu := 2.0

	var (
		damped = mat.NewSymDense(n, nil)
		chol   mat.Cholesky
		h      = mat.NewVecDense(n, nil)
		negG   = mat.NewVecDense(n, nil)
		trial  = make([]float64, n)
		trialR = mat.NewVecDense(m, nil)
	)

	iter := 0
	found := mat.Norm(s.g, math.Inf(1)) <= settings.GradientTol
	for !found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iter >= settings.MaxIterations {
			return nil, fmt.Errorf("%w (%d iterations, ssr=%g)", ErrMaxIterations, iter, s.ssr())
		}
		iter++

		damped.CopySym(s.a)
		for i := 0; i < n; i++ {
			damped.SetSym(i, i, s.a.At(i, i)+mu)
		}
		if ok := chol.Factorize(damped); !ok {
			mu *= nu
			nu *= 2
			continue
		}
		negG.ScaleVec(-1, s.g)
		if err := chol.SolveVecTo(h, negG); err != nil {
			mu *= nu
			nu *= 2
			continue
		}

		if mat.Norm(h, 2) <= settings.StepTol*(floats.Norm(p, 2)+settings.StepTol) {
			break
		}

		for i := range trial {
			trial[i] = p[i] + h.AtVec(i)
		}
		s.residuals(trialR, trial)

		cost := 0.5 * s.ssr()
		trialCost := 0.5 * mat.Dot(trialR, trialR)
		predicted := 0.5 * (mu*mat.Dot(h, h) - mat.Dot(h, s.g))
		rho := -1.0
		if predicted > 0 && finite(trialR) {
			rho = (cost - trialCost) / predicted
		}

		if rho > 0 {
			copy(p, trial)
			if err := s.evaluate(p); err != nil {
				return nil, err
			}
			found = mat.Norm(s.g, math.Inf(1)) <= settings.GradientTol
			mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
			nu = 2
		} else {
			mu *= nu
			nu *= 2
		}
		if math.IsInf(mu, 0) || math.IsNaN(mu) {
			return nil, fmt.Errorf("%w: damping diverged after %d iterations", ErrSingular, iter)
		}
	}

	if !finiteSlice(p) {
		return nil, ErrNonFinite
	}
	cov, err := covariance(s.a, s.ssr(), m, n)
	if err != nil {
		return nil, err
	}
	return &Result{Params: p, Covariance: cov, Iterations: iter, SSR: s.ssr()}, nil
}

// covariance returns inv(JᵀJ)·SSR/(m-n), or +Inf entries when m <= n.
func covariance(a *mat.SymDense, ssr float64, m, n int) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, ErrSingular
	}
	if cond := chol.Cond(); cond > maxCondition || math.IsInf(cond, 0) {
		return nil, fmt.Errorf("%w (condition number %.3g)", ErrSingular, cond)
	}
	cov := mat.NewSymDense(n, nil)
	if m <= n {
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				cov.SetSym(i, j, math.Inf(1))
			}
		}
		return cov, nil
	}
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	cov.ScaleSym(ssr/float64(m-n), cov)
	return cov, nil
}

func (prob Problem) validate() error {
	switch {
	case prob.Model == nil:
		return fmt.Errorf("%w: model function is nil", ErrInvalidProblem)
	case len(prob.X) == 0:
		return fmt.Errorf("%w: no observations", ErrInvalidProblem)
	case len(prob.X) != len(prob.Y):
		return fmt.Errorf("%w: %d x values but %d y values", ErrInvalidProblem, len(prob.X), len(prob.Y))
	case len(prob.Init) == 0:
		return fmt.Errorf("%w: no parameters", ErrInvalidProblem)
	case !finiteSlice(prob.Init):
		return fmt.Errorf("%w: initial guess %v is not finite", ErrInvalidProblem, prob.Init)
	}
	return nil
}

// state holds the residual vector r = f(p) - y, the Jacobian J and the
// normal-equation terms A = JᵀJ, g = Jᵀr at the current point.
type state struct {
	prob    Problem
	numeric bool
	r       *mat.VecDense
	jac     *mat.Dense
	a       *mat.SymDense
	g       *mat.VecDense
	row     []float64
}

func (s *state) alloc(m, n int) {
	s.r = mat.NewVecDense(m, nil)
	s.jac = mat.NewDense(m, n, nil)
	s.a = mat.NewSymDense(n, nil)
	s.g = mat.NewVecDense(n, nil)
	s.row = make([]float64, n)
}

func (s *state) residuals(dst *mat.VecDense, p []float64) {
	for i, x := range s.prob.X {
		dst.SetVec(i, s.prob.Model(x, p)-s.prob.Y[i])
	}
}

func (s *state) evaluate(p []float64) error {
	s.residuals(s.r, p)
	if !finite(s.r) {
		return fmt.Errorf("%w: residuals at %v", ErrNonFinite, p)
	}

	if s.numeric {
		fd.Jacobian(s.jac, func(y, q []float64) {
			for i, x := range s.prob.X {
				y[i] = s.prob.Model(x, q) - s.prob.Y[i]
			}
		}, p, &fd.JacobianSettings{Formula: fd.Central})
	} else {
		for i, x := range s.prob.X {
			s.prob.Gradient(s.row, x, p)
			s.jac.SetRow(i, s.row)
		}
	}
	r, c := s.jac.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := s.jac.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: jacobian at %v", ErrNonFinite, p)
			}
		}
	}

	s.a.SymOuterK(1, s.jac.T())
	s.g.MulVec(s.jac.T(), s.r)
	return nil
}

func (s *state) ssr() float64 {
	return mat.Dot(s.r, s.r)
}

func maxDiag(a *mat.SymDense) float64 {
	n := a.SymmetricDim()
	best := 0.0
	for i := 0; i < n; i++ {
		best = math.Max(best, a.At(i, i))
	}
	return best
}

func finite(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func finiteSlice(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
