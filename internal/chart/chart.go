// Package chart draws the Qe-Ce adsorption isotherm figure.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"os"

	"isofit/domain/isotherm"
	"isofit/internal/errors"
	"isofit/internal/fitting"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// Figure size of the saved chart
const (
	Width  = 10 * vg.Inch
	Height = 6 * vg.Inch
)

var (
	langmuirColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	freundlichColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// Input is everything drawn on one figure
type Input struct {
	Title       string
	Report      *isotherm.Report
	CurvePoints int
}

// Build lays out the experimental points and both fitted curves. A model that
// failed to fit, or whose curve has no finite points, is listed in the legend
// without a line.
func Build(in Input) (*plot.Plot, error) {
	if in.Report == nil || len(in.Report.Samples) == 0 {
		return nil, errors.InvalidInput("chart needs at least one sample")
	}

	p := plot.New()
	p.Title.Text = in.Title
	p.X.Label.Text = "Ce (mg/L)"
	p.Y.Label.Text = "Qe (mg/g)"
	p.X.Min = 0
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	points := make(plotter.XYs, len(in.Report.Samples))
	for i, s := range in.Report.Samples {
		points[i].X = s.Ce
		points[i].Y = s.Qe
	}
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "invalid sample points")
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Color = color.Black
	scatter.GlyphStyle.Radius = vg.Points(4)
	p.Add(scatter)
	p.Legend.Add("Experimental Data", scatter)

	maxCe := fitting.MaxConcentration(in.Report.Samples)
	for _, outcome := range in.Report.Outcomes() {
		if !outcome.OK() {
			p.Legend.Add(fmt.Sprintf("%s Fit: failed", outcome.Model.Title()))
			continue
		}
		line, err := curveLine(outcome, maxCe, in.CurvePoints)
		if err != nil {
			return nil, err
		}
		if line == nil {
			log.Printf("[Chart] %s curve has no finite points on [0, %g], drawing legend only", outcome.Model.Title(), maxCe)
			p.Legend.Add(fmt.Sprintf("%s Fit: curve not drawable", outcome.Model.Title()))
			continue
		}
		p.Add(line)
		p.Legend.Add(LegendLabel(outcome), line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = vg.Points(8)
	p.Legend.YOffs = -vg.Points(8)
	return p, nil
}

// curveLine returns nil without an error when fewer than two curve points are finite.
func curveLine(outcome isotherm.ModelOutcome, maxCe float64, n int) (*plotter.Line, error) {
	curve, err := fitting.Curve(outcome.Fit, maxCe, n)
	if err != nil {
		return nil, err
	}
	// Ce^(1/n) with n < 0 is +Inf at Ce = 0; such points are left out.
	xys := make(plotter.XYs, 0, len(curve))
	for _, s := range curve {
		if math.IsNaN(s.Qe) || math.IsInf(s.Qe, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: s.Ce, Y: s.Qe})
	}
	if len(xys) < 2 {
		return nil, nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, errors.Wrapf(errors.InternalError(err.Error()), "%s curve is not drawable", outcome.Model.Title())
	}
	line.LineStyle.Width = vg.Points(1.5)
	switch outcome.Model {
	case isotherm.ModelLangmuir:
		line.LineStyle.Color = langmuirColor
	case isotherm.ModelFreundlich:
		line.LineStyle.Color = freundlichColor
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	}
	return line, nil
}

// LegendLabel describes a fitted curve: equation, parameters and metrics.
func LegendLabel(outcome isotherm.ModelOutcome) string {
	fit := outcome.Fit
	var label string
	switch outcome.Model {
	case isotherm.ModelLangmuir:
		label = fmt.Sprintf("Langmuir Fit: Qe = Qmax·b·Ce / (1 + b·Ce)\nQmax=%.2f, b=%.2f", fit.Params.First, fit.Params.Second)
	case isotherm.ModelFreundlich:
		label = fmt.Sprintf("Freundlich Fit: Qe = Kf·Ce^(1/n)\nKf=%.2f, n=%.2f", fit.Params.First, fit.Params.Second)
	default:
		label = outcome.Model.Title()
	}
	if m := outcome.Metrics; m != nil {
		label += fmt.Sprintf("\nR²=%s, RMSE=%.3f, MAE=%.3f", m.R2.Format("%.3f"), m.RMSE, m.MAE)
	}
	return label
}

// Render writes the chart to w in the given format (png, svg or pdf)
func Render(w io.Writer, format string, in Input) error {
	p, err := Build(in)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return errors.Wrapf(errors.InvalidInput(err.Error()), "unsupported chart format %q", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to encode chart")
	}
	return nil
}

// Save renders the chart into a file
func Save(path, format string, in Input) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create chart file %s", path)
	}
	if err := Render(file, format, in); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close chart file %s", path)
	}
	log.Printf("[Chart] Saved %s", path)
	return nil
}
