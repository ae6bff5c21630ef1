package isotherm

import (
	"fmt"
	"math"
)

// Model is a two-parameter isotherm Qe = f(Ce; p).
type Model interface {
	Kind() ModelKind
	// Eval returns Qe at concentration ce.
	Eval(ce float64, p []float64) float64
	// Gradient writes dQe/dp into dst.
	Gradient(dst []float64, ce float64, p []float64)
	// ParamNames returns the names of First and Second.
	ParamNames() [2]string
	// Check rejects samples the model is undefined for.
	Check(samples SampleSet) error
}

// Langmuir is Qe = Qmax*b*Ce / (1 + b*Ce).
type Langmuir struct{}

func (Langmuir) Kind() ModelKind { return ModelLangmuir }

func (Langmuir) Eval(ce float64, p []float64) float64 {
	qmax, b := p[0], p[1]
	return qmax * b * ce / (1 + b*ce)
}

func (Langmuir) Gradient(dst []float64, ce float64, p []float64) {
	qmax, b := p[0], p[1]
	den := 1 + b*ce
	dst[0] = b * ce / den
	dst[1] = qmax * ce / (den * den)
}

func (Langmuir) ParamNames() [2]string { return [2]string{"Qmax", "b"} }

func (Langmuir) Check(samples SampleSet) error { return nil }

// Freundlich is Qe = Kf * Ce^(1/n).
type Freundlich struct{}

func (Freundlich) Kind() ModelKind { return ModelFreundlich }

func (Freundlich) Eval(ce float64, p []float64) float64 {
	kf, n := p[0], p[1]
	return kf * math.Pow(ce, 1/n)
}

func (Freundlich) Gradient(dst []float64, ce float64, p []float64) {
	kf, n := p[0], p[1]
	pow := math.Pow(ce, 1/n)
	dst[0] = pow
	if ce == 0 {
		// Ce^(1/n)*ln(Ce) -> 0 as Ce -> 0 for n > 0
		dst[1] = 0
		return
	}
	dst[1] = -kf * pow * math.Log(ce) / (n * n)
}

func (Freundlich) ParamNames() [2]string { return [2]string{"Kf", "n"} }

// Check rejects negative concentrations; a fractional power of a negative
// number is not real.
func (Freundlich) Check(samples SampleSet) error {
	for i, s := range samples {
		if s.Ce < 0 {
			return fmt.Errorf("sample %d: Ce=%g is negative, Ce^(1/n) is undefined", i+1, s.Ce)
		}
	}
	return nil
}

// ModelFor returns the model implementation for kind.
func ModelFor(kind ModelKind) (Model, error) {
	switch kind {
	case ModelLangmuir:
		return Langmuir{}, nil
	case ModelFreundlich:
		return Freundlich{}, nil
	}
	return nil, fmt.Errorf("unknown isotherm model %q", kind)
}

// Predict evaluates m at every Ce of samples.
func Predict(m Model, p Params, samples SampleSet) []float64 {
	out := make([]float64, len(samples))
	v := p.Slice()
	for i, s := range samples {
		out[i] = m.Eval(s.Ce, v)
	}
	return out
}
