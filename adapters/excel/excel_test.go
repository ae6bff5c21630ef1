package excel

import (
	"os"
	"path/filepath"
	"testing"

	"isofit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadData_CSV(t *testing.T) {
	path := writeFile(t, "raw.csv", "initial_conc(mM),initial_peak_area,after_peak_area\n"+
		"0.1, 1234567,1234\n"+
		",,\n"+
		"0.2,1345678,1567\n")

	table, err := NewDataReader(path).ReadData()
	require.NoError(t, err)

	assert.Equal(t, []string{"initial_conc(mM)", "initial_peak_area", "after_peak_area"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1234567", table.Rows[0]["initial_peak_area"])
	assert.Equal(t, 2, table.Line(0))
	assert.Equal(t, 4, table.Line(1), "blank rows keep the source line numbering")
	assert.True(t, table.HasColumn("after_peak_area"))
	assert.False(t, table.HasColumn("Ce(mg/L)"))
}

func TestReadData_CSVWithByteOrderMark(t *testing.T) {
	path := writeFile(t, "excel-export.csv", "\uFEFFinitial_conc(mM),initial_peak_area,after_peak_area\n0.1,1234567,1234\n")

	table, err := NewDataReader(path).ReadData()
	require.NoError(t, err)

	assert.Equal(t, "initial_conc(mM)", table.Headers[0])
	assert.True(t, table.HasColumn("initial_conc(mM)"))
	assert.Equal(t, "0.1", table.Rows[0]["initial_conc(mM)"])
}

func TestReadData_Errors(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "missing.csv")).ReadData()
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	headerOnly := writeFile(t, "header.csv", "a,b,c\n")
	_, err = NewDataReader(headerOnly).ReadData()
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	blank := writeFile(t, "blank.csv", "a,b\n,\n")
	_, err = NewDataReader(blank).ReadData()
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sheet := &Sheet{
		Headers: []string{"label", "Ce(mg/L)", "Qe(mg/g)"},
		Rows: [][]any{
			{"a", 0.0151, 3.02},
			{"b", 2.5, 7},
		},
	}
	require.NoError(t, WriteCSV(path, sheet))

	table, err := NewDataReader(path).ReadData()
	require.NoError(t, err)
	assert.Equal(t, sheet.Headers, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "0.0151", table.Rows[0]["Ce(mg/L)"])
	assert.Equal(t, "7", table.Rows[1]["Qe(mg/g)"])
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	sheet := &Sheet{
		Headers: []string{"initial_conc(mM)", "Removal Ratio"},
		Rows: [][]any{
			{0.1, 0.999},
			{0.2, 0.5},
		},
	}
	require.NoError(t, WriteXLSX(path, sheet))

	table, err := NewDataReader(path).ReadData()
	require.NoError(t, err)
	assert.Equal(t, sheet.Headers, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "0.999", table.Rows[0]["Removal Ratio"])
	assert.Equal(t, "0.2", table.Rows[1]["initial_conc(mM)"])
}
