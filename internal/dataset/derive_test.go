package dataset

import (
	"testing"

	"isofit/adapters/excel"
	"isofit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	defaultColumns = Columns{
		InitialConc:     "initial_conc(mM)",
		InitialPeakArea: "initial_peak_area",
		AfterPeakArea:   "after_peak_area",
	}
	acpOnTJ700 = Constants{MolecularWeight: 151.16, AdsorbentConcGL: 5}
)

func rawTable(rows ...[3]string) *excel.Table {
	table := &excel.Table{Headers: []string{"initial_conc(mM)", "initial_peak_area", "after_peak_area"}}
	for i, r := range rows {
		table.Rows = append(table.Rows, excel.RawRowData{
			"initial_conc(mM)":  r[0],
			"initial_peak_area": r[1],
			"after_peak_area":   r[2],
		})
		table.Lines = append(table.Lines, i+2)
	}
	return table
}

func TestDerive_ExampleRows(t *testing.T) {
	table := rawTable(
		[3]string{"0.1", "1234567", "1234"},
		[3]string{"0.2", "1345678", "1567"},
		[3]string{"0.3", "1456789", "3456"},
		[3]string{"0.4", "1567890", "12345"},
		[3]string{"0.5", "1678901", "98765"},
	)

	derived, err := Derive(table, defaultColumns, acpOnTJ700)
	require.NoError(t, err)
	require.Len(t, derived.Rows, 5)

	expected := []Row{
		{RemovalRatio: 0.9990004592703353, Ce: 0.015109057669611348, Qe: 3.020178188466078},
		{RemovalRatio: 0.9988355312340693, Ce: 0.035204219731616374, Qe: 6.039359156053677},
		{RemovalRatio: 0.9976276591874321, Ce: 0.10758091116832796, Qe: 9.048083817766333},
		{RemovalRatio: 0.9921263609054206, Ce: 0.4760717142146481, Qe: 11.997585657157071},
		{RemovalRatio: 0.9411728267479739, Ce: 4.446157754388135, Qe: 14.226768449122371},
	}
	for i, want := range expected {
		got := derived.Rows[i]
		assert.InDelta(t, want.RemovalRatio, got.RemovalRatio, 1e-12, "row %d", i)
		assert.InDelta(t, want.Ce, got.Ce, 1e-12, "row %d", i)
		assert.InDelta(t, want.Qe, got.Qe, 1e-12, "row %d", i)
		assert.Equal(t, i+2, got.Line)
	}

	samples := derived.Samples()
	require.Len(t, samples, 5)
	assert.Equal(t, derived.Rows[4].Ce, samples[4].Ce)
	assert.Equal(t, derived.Rows[4].Qe, samples[4].Qe)
}

func TestDerive_Sheet(t *testing.T) {
	table := rawTable([3]string{"0.1", "1234567", "1234"})
	table.Headers = append(table.Headers, "note")
	table.Rows[0]["note"] = "batch A"

	derived, err := Derive(table, defaultColumns, acpOnTJ700)
	require.NoError(t, err)

	sheet := derived.Sheet()
	assert.Equal(t, []string{"initial_conc(mM)", "initial_peak_area", "after_peak_area", "note",
		RemovalRatioColumn, CeColumn, QeColumn}, sheet.Headers)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, 0.1, sheet.Rows[0][0])
	assert.Equal(t, "batch A", sheet.Rows[0][3])
	assert.Equal(t, derived.Rows[0].Qe, sheet.Rows[0][6])
}

func TestDerive_ZeroInitialPeakArea(t *testing.T) {
	table := rawTable(
		[3]string{"0.1", "1234567", "1234"},
		[3]string{"0.2", "0", "1567"},
	)

	derived, err := Derive(table, defaultColumns, acpOnTJ700)
	assert.Nil(t, derived)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "initial_peak_area")
}

func TestDerive_OverflowingDerivedValues(t *testing.T) {
	_, err := Derive(rawTable([3]string{"1e308", "100", "25"}), defaultColumns, acpOnTJ700)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "derived values are not finite")
	assert.NotContains(t, err.Error(), "initial_peak_area")
}

func TestDerive_BadCells(t *testing.T) {
	cases := map[string]struct {
		row  [3]string
		want string
	}{
		"non-numeric": {[3]string{"abc", "1234567", "1234"}, `"abc" is not a number`},
		"empty":       {[3]string{"0.1", "", "1234"}, "empty cell"},
		"infinite":    {[3]string{"0.1", "1234567", "Inf"}, "not finite"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Derive(rawTable(tc.row), defaultColumns, acpOnTJ700)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestDerive_MissingColumn(t *testing.T) {
	cols := defaultColumns
	cols.AfterPeakArea = "area_after"

	_, err := Derive(rawTable([3]string{"0.1", "1234567", "1234"}), cols, acpOnTJ700)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "area_after"`)
}

func TestDerive_InvalidConstants(t *testing.T) {
	_, err := Derive(rawTable([3]string{"0.1", "1234567", "1234"}), defaultColumns, Constants{MolecularWeight: 151.16})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestDeriveRow(t *testing.T) {
	row, err := DeriveRow(1, 100, 25, Constants{MolecularWeight: 10, AdsorbentConcGL: 2})
	require.NoError(t, err)
	assert.Equal(t, 0.75, row.RemovalRatio)
	assert.InDelta(t, 2.5, row.Ce, 1e-12)
	assert.InDelta(t, 3.75, row.Qe, 1e-12)

	_, err = DeriveRow(1, 0, 25, Constants{MolecularWeight: 10, AdsorbentConcGL: 2})
	assert.Error(t, err)
}
