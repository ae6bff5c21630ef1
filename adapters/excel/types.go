package excel

// RawRowData represents a row of raw table data as header -> cell text
type RawRowData map[string]string

// Table is a header-ordered dataset read from a CSV or XLSX file
type Table struct {
	Headers []string     // Column headers in file order
	Rows    []RawRowData // Data rows
	Lines   []int        // 1-based source line of each row, for error messages
}

// HasColumn reports whether header is present
func (t *Table) HasColumn(header string) bool {
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Line returns the source line of row i
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}
