package report

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"isofit/domain/isotherm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fittedReport() *isotherm.Report {
	return &isotherm.Report{
		Samples: isotherm.SampleSet{{Ce: 1, Qe: 2}, {Ce: 2, Qe: 3.2}, {Ce: 5, Qe: 4.3}},
		Langmuir: isotherm.ModelOutcome{
			Model: isotherm.ModelLangmuir,
			Fit: &isotherm.FitResult{
				Model:      isotherm.ModelLangmuir,
				Params:     isotherm.Params{First: 5.983, Second: 0.5449},
				Covariance: [][]float64{{0.04, 0.001}, {0.001, 0.0009}},
				Iterations: 7,
			},
			Metrics: &isotherm.Metrics{R2: isotherm.DefinedScore(0.99061), RMSE: 0.081, MAE: 0.07},
		},
		Freundlich: isotherm.ModelOutcome{
			Model:   isotherm.ModelFreundlich,
			Fit:     &isotherm.FitResult{Model: isotherm.ModelFreundlich, Params: isotherm.Params{First: 2.2431, Second: 2.3266}},
			Metrics: &isotherm.Metrics{R2: isotherm.UndefinedScore()},
		},
	}
}

func experiment() isotherm.Experiment {
	return isotherm.Experiment{Adsorbent: "TJ700", Adsorbate: "ACP", MolecularWeight: 151.16, DoseGL: 5}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Console(&buf, fittedReport()))
	out := buf.String()

	assert.Contains(t, out, "Langmuir fit parameters:\nQmax = 5.98 mg/g\nb = 0.5449 L/mg\nR² = 0.9906\n")
	assert.Contains(t, out, "Kf = 2.24 (mg/g)^1/n\nn = 2.33\nR² = undefined\n")
}

func TestConsole_FailedModel(t *testing.T) {
	report := fittedReport()
	report.Freundlich = isotherm.ModelOutcome{
		Model: isotherm.ModelFreundlich,
		Err:   stderrors.New("Freundlich fit failed (initial guess [3 1]): singular"),
	}

	var buf bytes.Buffer
	require.NoError(t, Console(&buf, report))
	assert.Contains(t, buf.String(), "Freundlich fit failed: Freundlich fit failed (initial guess [3 1]): singular")
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(Document{
		Experiment: experiment(),
		Source:     "TJ700-ACP-raw.csv",
		Report:     fittedReport(),
		ChartFile:  "TJ700-ACP-raw.csv-Adsorption Isotherms.png",
	}))

	assert.True(t, strings.HasPrefix(md, "# TJ700-5g/L-ACP-Adsorption Isotherms\n"))
	assert.Contains(t, md, "| Langmuir | Qmax=5.983, b=0.5449 | ±0.2, ±0.03 | 0.9906 |")
	assert.Contains(t, md, "| Freundlich | Kf=2.243, n=2.327 | n/a, n/a | undefined |")
	assert.Contains(t, md, "![Adsorption isotherms](<TJ700-ACP-raw.csv-Adsorption Isotherms.png>)")
	assert.Contains(t, md, "| 3 | 5.0000 | 4.3000 |")
}

func TestHTML(t *testing.T) {
	page := string(HTML(Document{Experiment: experiment(), Report: fittedReport()}))

	assert.Contains(t, page, "<title>TJ700-5g/L-ACP-Adsorption Isotherms</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "undefined")
}

func TestWriteFiles(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "TJ700-ACP-raw.csv")

	paths, err := WriteFiles(stem, Document{Experiment: experiment(), Report: fittedReport()})
	require.NoError(t, err)
	require.Equal(t, []string{stem + "-report.md", stem + "-report.html"}, paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	_, err = WriteFiles(stem, Document{})
	assert.Error(t, err)
}
