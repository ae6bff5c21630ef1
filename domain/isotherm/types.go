package isotherm

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Sample is one equilibrium measurement: Ce in mg/L, Qe in mg/g.
type Sample struct {
	Ce float64 `json:"ce"`
	Qe float64 `json:"qe"`
}

// SampleSet is an ordered, read-only sequence of samples.
type SampleSet []Sample

// Concentrations returns the Ce column.
func (s SampleSet) Concentrations() []float64 {
	out := make([]float64, len(s))
	for i, sample := range s {
		out[i] = sample.Ce
	}
	return out
}

// Uptakes returns the Qe column.
func (s SampleSet) Uptakes() []float64 {
	out := make([]float64, len(s))
	for i, sample := range s {
		out[i] = sample.Qe
	}
	return out
}

// Validate checks that the set is non-empty and every value is finite
func (s SampleSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("sample set is empty")
	}
	for i, sample := range s {
		if math.IsNaN(sample.Ce) || math.IsInf(sample.Ce, 0) {
			return fmt.Errorf("sample %d: Ce is not finite", i+1)
		}
		if math.IsNaN(sample.Qe) || math.IsInf(sample.Qe, 0) {
			return fmt.Errorf("sample %d: Qe is not finite", i+1)
		}
	}
	return nil
}

// ModelKind identifies an isotherm model.
type ModelKind string

const (
	ModelLangmuir   ModelKind = "langmuir"
	ModelFreundlich ModelKind = "freundlich"
)

// Title returns the display name of the model.
func (k ModelKind) Title() string {
	switch k {
	case ModelLangmuir:
		return "Langmuir"
	case ModelFreundlich:
		return "Freundlich"
	}
	return string(k)
}

// Params is a two-parameter estimate. For Langmuir First=Qmax and Second=b,
// for Freundlich First=Kf and Second=n.
type Params struct {
	First  float64 `json:"first"`
	Second float64 `json:"second"`
}

// Slice returns the parameters in solver order.
func (p Params) Slice() []float64 {
	return []float64{p.First, p.Second}
}

// ParamsFromSlice builds Params from a solver vector of length 2.
func ParamsFromSlice(v []float64) Params {
	return Params{First: v[0], Second: v[1]}
}

// FitResult is the outcome of a converged fit.
type FitResult struct {
	Model        ModelKind   `json:"model"`
	Params       Params      `json:"params"`
	Covariance   [][]float64 `json:"covariance"`
	InitialGuess Params      `json:"initial_guess"`
	Iterations   int         `json:"iterations"`
	SSR          float64     `json:"ssr"`
}

// Score is a metric value that may be undefined, e.g. R² of a constant series.
type Score struct {
	Value   float64
	Defined bool
}

// DefinedScore wraps a defined value.
func DefinedScore(v float64) Score {
	return Score{Value: v, Defined: true}
}

// UndefinedScore is the undefined state.
func UndefinedScore() Score {
	return Score{}
}

// Format renders the score with the given verb, or "undefined".
func (s Score) Format(verb string) string {
	if !s.Defined {
		return "undefined"
	}
	return fmt.Sprintf(verb, s.Value)
}

func (s Score) String() string {
	return s.Format("%.4f")
}

// MarshalJSON encodes an undefined score as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON decodes null as undefined.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = UndefinedScore()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = DefinedScore(v)
	return nil
}

// Metrics holds goodness-of-fit statistics over a whole sample set.
type Metrics struct {
	R2   Score   `json:"r2"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// ModelOutcome is the per-model result of a combined fit: either a fit with
// metrics or the error that stopped it.
type ModelOutcome struct {
	Model   ModelKind  `json:"model"`
	Fit     *FitResult `json:"fit,omitempty"`
	Metrics *Metrics   `json:"metrics,omitempty"`
	Err     error      `json:"-"`
	Error   string     `json:"error,omitempty"`
}

// OK reports whether the model was fitted.
func (o ModelOutcome) OK() bool {
	return o.Err == nil && o.Fit != nil
}

// Report groups the Langmuir and Freundlich outcomes for one sample set.
type Report struct {
	Samples    SampleSet    `json:"samples"`
	Langmuir   ModelOutcome `json:"langmuir"`
	Freundlich ModelOutcome `json:"freundlich"`
}

// Outcomes returns both outcomes in display order.
func (r *Report) Outcomes() []ModelOutcome {
	return []ModelOutcome{r.Langmuir, r.Freundlich}
}

// Experiment labels a sample set for charts and reports.
type Experiment struct {
	Adsorbent       string  `json:"adsorbent"`
	Adsorbate       string  `json:"adsorbate"`
	MolecularWeight float64 `json:"molecular_weight"`
	DoseGL          float64 `json:"adsorbent_conc_g_l"`
}

// Title returns "<adsorbent>-<dose>g/L-<adsorbate>-Adsorption Isotherms".
func (e Experiment) Title() string {
	return fmt.Sprintf("%s-%gg/L-%s-Adsorption Isotherms", e.Adsorbent, e.DoseGL, e.Adsorbate)
}

// FitRun is an archived execution of the pipeline.
type FitRun struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Source     string     `json:"source" db:"source"`
	Experiment Experiment `json:"experiment"`
	Report     Report     `json:"report"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// NewFitRun stamps a report with a fresh ID and creation time.
func NewFitRun(source string, exp Experiment, report Report) *FitRun {
	return &FitRun{
		ID:         uuid.New(),
		Source:     source,
		Experiment: exp,
		Report:     report,
		CreatedAt:  time.Now().UTC(),
	}
}
