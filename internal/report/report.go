// Package report renders fit results for people: console text, Markdown and
// a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"isofit/domain/isotherm"
	"isofit/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Document is one report: the experiment, where its data came from and the
// outcome of both fits.
type Document struct {
	Experiment isotherm.Experiment
	Source     string
	Report     *isotherm.Report
	ChartFile  string // relative path embedded as an image, optional
}

// Console prints the fitted parameters in the lab's usual units
func Console(w io.Writer, report *isotherm.Report) error {
	var buf bytes.Buffer
	for i, outcome := range report.Outcomes() {
		if i > 0 {
			buf.WriteString("\n")
		}
		if !outcome.OK() {
			fmt.Fprintf(&buf, "%s fit failed: %s\n", outcome.Model.Title(), failure(outcome))
			continue
		}
		p := outcome.Fit.Params
		fmt.Fprintf(&buf, "%s fit parameters:\n", outcome.Model.Title())
		switch outcome.Model {
		case isotherm.ModelLangmuir:
			fmt.Fprintf(&buf, "Qmax = %.2f mg/g\n", p.First)
			fmt.Fprintf(&buf, "b = %.4f L/mg\n", p.Second)
		case isotherm.ModelFreundlich:
			fmt.Fprintf(&buf, "Kf = %.2f (mg/g)^1/n\n", p.First)
			fmt.Fprintf(&buf, "n = %.2f\n", p.Second)
		}
		if m := outcome.Metrics; m != nil {
			fmt.Fprintf(&buf, "R² = %s\n", m.R2.Format("%.4f"))
			fmt.Fprintf(&buf, "RMSE = %.4f\n", m.RMSE)
			fmt.Fprintf(&buf, "MAE = %.4f\n", m.MAE)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Markdown renders the full report
func Markdown(doc Document) []byte {
	var buf bytes.Buffer
	exp := doc.Experiment

	fmt.Fprintf(&buf, "# %s\n\n", exp.Title())
	if doc.Source != "" {
		fmt.Fprintf(&buf, "Source: `%s`\n\n", doc.Source)
	}

	buf.WriteString("## Experiment\n\n")
	buf.WriteString("| Setting | Value |\n|---|---|\n")
	fmt.Fprintf(&buf, "| Adsorbent | %s |\n", exp.Adsorbent)
	fmt.Fprintf(&buf, "| Adsorbate | %s |\n", exp.Adsorbate)
	fmt.Fprintf(&buf, "| Molecular weight | %g g/mol |\n", exp.MolecularWeight)
	fmt.Fprintf(&buf, "| Adsorbent dosage | %g g/L |\n\n", exp.DoseGL)

	buf.WriteString("## Fits\n\n")
	buf.WriteString("| Model | Parameters | Std. errors | R² | RMSE | MAE | Iterations |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, outcome := range doc.Report.Outcomes() {
		if !outcome.OK() {
			fmt.Fprintf(&buf, "| %s | failed: %s | | | | | |\n", outcome.Model.Title(), failure(outcome))
			continue
		}
		names := paramNames(outcome.Model)
		p := outcome.Fit.Params
		se := standardErrors(outcome.Fit)
		r2, rmse, mae := "undefined", "n/a", "n/a"
		if m := outcome.Metrics; m != nil {
			r2 = m.R2.Format("%.4f")
			rmse = fmt.Sprintf("%.4f", m.RMSE)
			mae = fmt.Sprintf("%.4f", m.MAE)
		}
		fmt.Fprintf(&buf, "| %s | %s=%.4g, %s=%.4g | %s, %s | %s | %s | %s | %d |\n",
			outcome.Model.Title(),
			names[0], p.First, names[1], p.Second,
			se[0], se[1],
			r2, rmse, mae,
			outcome.Fit.Iterations)
	}
	buf.WriteString("\n")

	if doc.ChartFile != "" {
		fmt.Fprintf(&buf, "![Adsorption isotherms](<%s>)\n\n", doc.ChartFile)
	}

	buf.WriteString("## Samples\n\n")
	buf.WriteString("| # | Ce (mg/L) | Qe (mg/g) |\n|---|---|---|\n")
	for i, s := range doc.Report.Samples {
		fmt.Fprintf(&buf, "| %d | %.4f | %.4f |\n", i+1, s.Ce, s.Qe)
	}
	return buf.Bytes()
}

// HTML renders the Markdown report as a complete page
func HTML(doc Document) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	ast := p.Parse(Markdown(doc))

	renderer := html.NewRenderer(html.RendererOptions{
		Title: doc.Experiment.Title(),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(ast, renderer)
}

// WriteFiles writes <stem>-report.md and <stem>-report.html and returns
// their paths.
func WriteFiles(stem string, doc Document) ([]string, error) {
	if doc.Report == nil {
		return nil, errors.InvalidInput("report is empty")
	}
	if doc.ChartFile != "" {
		doc.ChartFile = filepath.Base(doc.ChartFile)
	}

	outputs := []struct {
		path string
		body []byte
	}{
		{stem + "-report.md", Markdown(doc)},
		{stem + "-report.html", HTML(doc)},
	}

	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if err := os.WriteFile(out.path, out.body, 0o644); err != nil {
			return nil, errors.Wrapf(err, "failed to write %s", out.path)
		}
		log.Printf("[Report] Saved %s", out.path)
		paths = append(paths, out.path)
	}
	return paths, nil
}

func failure(outcome isotherm.ModelOutcome) string {
	if outcome.Err != nil {
		return outcome.Err.Error()
	}
	if outcome.Error != "" {
		return outcome.Error
	}
	return "no result"
}

func paramNames(kind isotherm.ModelKind) [2]string {
	model, err := isotherm.ModelFor(kind)
	if err != nil {
		return [2]string{"p1", "p2"}
	}
	return model.ParamNames()
}

// standardErrors are the square roots of the covariance diagonal, or "n/a"
// when the covariance could not be estimated.
func standardErrors(fit *isotherm.FitResult) [2]string {
	out := [2]string{"n/a", "n/a"}
	if len(fit.Covariance) != 2 {
		return out
	}
	for i := range out {
		if v := fit.Covariance[i][i]; v >= 0 && !math.IsInf(v, 0) {
			out[i] = fmt.Sprintf("±%.3g", math.Sqrt(v))
		}
	}
	return out
}
