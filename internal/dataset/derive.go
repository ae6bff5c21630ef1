// Package dataset turns raw HPLC adsorption rows into equilibrium samples.
//
// Each row carries the initial adsorbate concentration C0 (mM), the peak area
// before adsorption A0 and the peak area after adsorption A1:
//
//	Removal Ratio R = 1 - A1/A0
//	Ce (mg/L)       = (1 - R) * C0 * MW
//	Qe (mg/g)       = C0 * R * MW / dosage
package dataset

import (
	"log"
	"math"
	"strconv"
	"strings"

	"isofit/adapters/excel"
	"isofit/domain/isotherm"
	"isofit/internal/errors"
)

// Names of the columns appended to the raw table
const (
	RemovalRatioColumn = "Removal Ratio"
	CeColumn           = "Ce(mg/L)"
	QeColumn           = "Qe(mg/g)"
)

// Columns names the raw table headers
type Columns struct {
	InitialConc     string
	InitialPeakArea string
	AfterPeakArea   string
}

// Constants are the per-experiment conversion factors
type Constants struct {
	MolecularWeight float64 // g/mol
	AdsorbentConcGL float64 // g/L
}

// Validate rejects non-positive constants
func (k Constants) Validate() error {
	if !(k.MolecularWeight > 0) || math.IsInf(k.MolecularWeight, 0) {
		return errors.InvalidInputf("molecular weight must be a positive number, got %v", k.MolecularWeight)
	}
	if !(k.AdsorbentConcGL > 0) || math.IsInf(k.AdsorbentConcGL, 0) {
		return errors.InvalidInputf("adsorbent concentration must be a positive number, got %v", k.AdsorbentConcGL)
	}
	return nil
}

// Row is one derived measurement
type Row struct {
	Line            int     `json:"line,omitempty"`
	InitialConc     float64 `json:"initial_conc"`
	InitialPeakArea float64 `json:"initial_peak_area"`
	AfterPeakArea   float64 `json:"after_peak_area"`
	RemovalRatio    float64 `json:"removal_ratio"`
	Ce              float64 `json:"ce"`
	Qe              float64 `json:"qe"`
}

// Derived is a raw table together with its derived rows
type Derived struct {
	Source *excel.Table
	Rows   []Row
}

// DeriveRow computes removal ratio, Ce and Qe for one measurement
func DeriveRow(c0, a0, a1 float64, k Constants) (Row, error) {
	if a0 == 0 {
		return Row{}, errors.InvalidInput("initial peak area is zero")
	}
	removal := 1 - a1/a0
	row := Row{
		InitialConc:     c0,
		InitialPeakArea: a0,
		AfterPeakArea:   a1,
		RemovalRatio:    removal,
		Ce:              (1 - removal) * c0 * k.MolecularWeight,
		Qe:              c0 * removal * k.MolecularWeight / k.AdsorbentConcGL,
	}
	if !finite(row.RemovalRatio, row.Ce, row.Qe) {
		return Row{}, errors.InvalidInput("derived values are not finite")
	}
	return row, nil
}

// Derive processes every row of the table. The first bad cell fails the whole
// load; nothing is partially derived.
func Derive(table *excel.Table, cols Columns, k Constants) (*Derived, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if table == nil || len(table.Rows) == 0 {
		return nil, errors.InvalidInput("table has no data rows")
	}
	for _, col := range []string{cols.InitialConc, cols.InitialPeakArea, cols.AfterPeakArea} {
		if !table.HasColumn(col) {
			return nil, errors.InvalidInputf("missing column %q (have %s)", col, strings.Join(table.Headers, ", "))
		}
	}

	out := &Derived{Source: table, Rows: make([]Row, 0, len(table.Rows))}
	for i, raw := range table.Rows {
		line := table.Line(i)

		c0, err := parseCell(raw, cols.InitialConc, line)
		if err != nil {
			return nil, err
		}
		a0, err := parseCell(raw, cols.InitialPeakArea, line)
		if err != nil {
			return nil, err
		}
		a1, err := parseCell(raw, cols.AfterPeakArea, line)
		if err != nil {
			return nil, err
		}

		if a0 == 0 {
			return nil, errors.InvalidInputf("line %d, column %q: initial peak area is zero", line, cols.InitialPeakArea)
		}
		row, err := DeriveRow(c0, a0, a1, k)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		row.Line = line
		out.Rows = append(out.Rows, row)
	}

	log.Printf("[Dataset] Derived %d samples (MW=%.2f, dosage=%.2fg/L)", len(out.Rows), k.MolecularWeight, k.AdsorbentConcGL)
	return out, nil
}

// Samples returns the (Ce, Qe) pairs in table order
func (d *Derived) Samples() isotherm.SampleSet {
	out := make(isotherm.SampleSet, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = isotherm.Sample{Ce: r.Ce, Qe: r.Qe}
	}
	return out
}

// Sheet returns the augmented table: every source column as read, followed by
// the removal ratio, Ce and Qe columns.
func (d *Derived) Sheet() *excel.Sheet {
	var headers []string
	if d.Source != nil {
		headers = append(headers, d.Source.Headers...)
	}
	headers = append(headers, RemovalRatioColumn, CeColumn, QeColumn)

	sheet := &excel.Sheet{Headers: headers, Rows: make([][]any, len(d.Rows))}
	for i, r := range d.Rows {
		cells := make([]any, 0, len(headers))
		if d.Source != nil {
			for _, h := range d.Source.Headers {
				cells = append(cells, cellValue(d.Source.Rows[i][h]))
			}
		} else {
			cells = append(cells, r.InitialConc, r.InitialPeakArea, r.AfterPeakArea)
		}
		sheet.Rows[i] = append(cells, r.RemovalRatio, r.Ce, r.Qe)
	}
	return sheet
}

func parseCell(raw excel.RawRowData, column string, line int) (float64, error) {
	text := strings.TrimSpace(raw[column])
	if text == "" {
		return 0, errors.InvalidInputf("line %d, column %q: empty cell", line, column)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, errors.InvalidInputf("line %d, column %q: %q is not a number", line, column, text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.InvalidInputf("line %d, column %q: %q is not finite", line, column, text)
	}
	return v, nil
}

// cellValue keeps numeric source cells numeric in the XLSX output
func cellValue(text string) any {
	if v, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return text
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
